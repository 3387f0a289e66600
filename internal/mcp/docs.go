package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `fieldlog keeps the daily survey progress of field crews: Projects → Daily progress reports.

Core concepts:
- Project: a survey job with per-method totals (sondir, bor, cptu), cumulative completed points and the deepest reading.
- Daily progress: one report per employee, project and local date (YYYY-MM-DD). Saving a report replaces it.
- The project aggregate always equals the sum of its reports. Every save and delete returns the new project_progress.

Default workflow:
1) Orient: list_projects, then get_project for totals, window (start_date/end_date) and overall_percent.
2) Read: get_daily_progress for your report on a date; list_daily_progress / search_daily_progress to browse.
3) Write: upsert_daily_progress with the FULL list of items for that date. Items you omit are removed.
   - Sending an empty items list on an existing report clears it and needs confirm_clear=true.
   - bounds_violation means completed points would exceed the project total; fix the item counts.
   - conflict is retryable: read the report again and resubmit.
4) delete_daily_progress removes your report and withdraws its points.

Docs:
- fieldlog://docs/ledger (ledger rules and error codes)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "fieldlog://docs/ledger",
		Name:        "docs_ledger",
		Title:       "Daily progress ledger rules",
		Description: "How reports change the project aggregate, and what each error code means.",
		Content: `# Daily progress ledger

## Items

Each item is ` + "`{method, points_done, depth_reached}`" + `. Methods are ` + "`sondir`" + `, ` + "`bor`" + ` and ` + "`cptu`" + `;
other methods are ignored. Quantities may be numbers or numeric strings; negative or unparseable values count as 0.
Points are whole numbers (fractions are truncated).

## Aggregate

- completed_points of a method is the sum of points_done over every report of the project.
- max_depth of a method is the deepest depth_reached over every report.
- Saving the same items twice changes nothing.
- completed_points never exceeds total_points and never drops below 0.

## Dates

Local dates are ` + "`YYYY-MM-DD`" + ` and must fall inside the project window (start_date to end_date, inclusive).

## Error codes

| code | meaning |
|---|---|
| invalid_input | malformed date, missing items, bad pagination |
| not_found | project or report does not exist |
| out_of_range | date before start_date or after end_date |
| confirmation_required | clearing a report needs confirm_clear=true |
| bounds_violation | completed points would leave [0, total_points] |
| conflict | concurrent write; retry |
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
