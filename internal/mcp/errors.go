package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/fieldlog/internal/errs"
)

// toolError renders err as a tool error whose text is "code: message".
func toolError(logger *slog.Logger, tool string, err error) *sdkmcp.CallToolResult {
	classified := errs.Classify(err)
	if classified.Code == errs.CodeInternal {
		logger.Error("mcp tool failed", "tool", tool, "error", err)
	}
	text := classified.Error()
	if len(classified.Details) > 0 {
		if details, mErr := json.Marshal(classified.Details); mErr == nil {
			text = fmt.Sprintf("%s %s", text, details)
		}
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}
}

// jsonResult renders v as the JSON text content of a tool result.
func jsonResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}
