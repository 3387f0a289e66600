package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/errs"
	"github.com/rpggio/fieldlog/internal/metrics"
	"github.com/rpggio/fieldlog/internal/paging"
)

type toolFunc[In any] func(ctx context.Context, actorID string, in In) (any, error)

// addTool registers a typed tool. Errors become "code: message" tool errors and
// results are rendered as JSON text.
func addTool[In any](server *sdkmcp.Server, logger *slog.Logger, name, description string, fn toolFunc[In]) {
	sdkmcp.AddTool[In, any](server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			out, err := fn(ctx, getActorID(ctx), in)
			if err != nil {
				return toolError(logger, name, err), nil, nil
			}
			res, err := jsonResult(out)
			return res, nil, err
		})
}

func registerTools(server *sdkmcp.Server, svc Services, logger *slog.Logger) {
	addTool(server, logger, "list_projects",
		"List projects, newest first, with their progress per method",
		func(ctx context.Context, _ string, in ListProjectsParams) (any, error) {
			return svc.Projects.List(ctx, project.ListRequest{
				Search: in.Search,
				Client: in.Client,
				Page:   pageParams(in.Mode, in.Page, in.Limit, in.Cursor),
			})
		})

	addTool(server, logger, "get_project",
		"Get a project with totals, completed points, max depth and overall percent",
		func(ctx context.Context, _ string, in GetProjectParams) (any, error) {
			return svc.Projects.Get(ctx, in.ProjectID)
		})

	addTool(server, logger, "get_daily_progress",
		"Get your daily progress report for a date; data is null when none exists",
		func(ctx context.Context, actorID string, in GetDailyProgressParams) (any, error) {
			return svc.Progress.Get(ctx, progress.GetRequest{
				ProjectID: in.ProjectID,
				ActorID:   actorID,
				LocalDate: in.LocalDate,
			})
		})

	addTool(server, logger, "upsert_daily_progress",
		"Create or replace your daily progress report for a date with the full list of items",
		func(ctx context.Context, actorID string, in UpsertDailyProgressParams) (any, error) {
			var raw json.RawMessage
			if in.Items != nil {
				data, err := json.Marshal(in.Items)
				if err != nil {
					return nil, errs.Invalid("items must be a JSON array")
				}
				raw = data
			}
			res, err := svc.Progress.Upsert(ctx, progress.UpsertRequest{
				ProjectID:    in.ProjectID,
				ActorID:      actorID,
				LocalDate:    in.LocalDate,
				Notes:        in.Notes,
				Items:        progress.DecodeItems(raw),
				ConfirmClear: in.ConfirmClear,
			})
			return ledgerOutcome("upsert", "Daily progress saved", res, err)
		})

	addTool(server, logger, "delete_daily_progress",
		"Delete your daily progress report for a date and withdraw its points",
		func(ctx context.Context, actorID string, in DeleteDailyProgressParams) (any, error) {
			res, err := svc.Progress.Delete(ctx, progress.DeleteRequest{
				ProjectID: in.ProjectID,
				ActorID:   actorID,
				LocalDate: in.LocalDate,
			})
			return ledgerOutcome("delete", "Daily progress deleted", res, err)
		})

	addTool(server, logger, "list_daily_progress",
		"List a project's daily progress reports, newest date first",
		func(ctx context.Context, actorID string, in ListDailyProgressParams) (any, error) {
			return svc.Progress.List(ctx, progress.ListRequest{
				ProjectID: in.ProjectID,
				ActorID:   actorID,
				From:      in.From,
				To:        in.To,
				Author:    in.Author,
				Page:      pageParams(in.Mode, in.Page, in.Limit, in.Cursor),
			})
		})

	addTool(server, logger, "search_daily_progress",
		"Full-text search over the notes of a project's daily progress reports",
		func(ctx context.Context, _ string, in SearchDailyProgressParams) (any, error) {
			results, err := svc.Progress.Search(ctx, progress.SearchRequest{
				ProjectID: in.ProjectID,
				Query:     in.Query,
				Limit:     in.Limit,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"items": results}, nil
		})
}

type ledgerBody struct {
	Message string `json:"message"`
	*progress.Result
}

// ledgerOutcome counts a ledger write and shapes its result.
func ledgerOutcome(op, message string, res *progress.Result, err error) (any, error) {
	if err != nil {
		metrics.RecordLedgerOperation(op, string(errs.Classify(err).Code))
		return nil, err
	}
	metrics.RecordLedgerOperation(op, "ok")
	for _, m := range res.Recomputed {
		metrics.RecordMaxDepthRecompute(string(m))
	}
	return ledgerBody{Message: message, Result: res}, nil
}

func pageParams(mode string, page, limit int, cursor string) paging.Params {
	return paging.Params{Mode: paging.Mode(mode), Page: page, Limit: limit, Cursor: cursor}
}
