package mcp

type ListProjectsParams struct {
	Search string `json:"search,omitempty" jsonschema:"substring of name, location or client"`
	Client string `json:"client,omitempty" jsonschema:"exact client name"`
	Mode   string `json:"mode,omitempty" jsonschema:"paging (default) or cursor"`
	Page   int    `json:"page,omitempty" jsonschema:"1-based page number in paging mode"`
	Limit  int    `json:"limit,omitempty" jsonschema:"page size"`
	Cursor string `json:"cursor,omitempty" jsonschema:"next_cursor of the previous page in cursor mode"`
}

type GetProjectParams struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
}

type GetDailyProgressParams struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	LocalDate string `json:"local_date" jsonschema:"report date, YYYY-MM-DD"`
}

type UpsertDailyProgressParams struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	LocalDate string `json:"local_date" jsonschema:"report date, YYYY-MM-DD"`
	Notes     string `json:"notes,omitempty" jsonschema:"free text notes of the day"`
	// Items stays untyped so lenient quantities (numeric strings, null) reach the ledger.
	Items        any  `json:"items,omitempty" jsonschema:"full list of {method, points_done, depth_reached} for the day"`
	ConfirmClear bool `json:"confirm_clear,omitempty" jsonschema:"required to save an empty list over an existing report"`
}

type DeleteDailyProgressParams struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	LocalDate string `json:"local_date" jsonschema:"report date, YYYY-MM-DD"`
}

type ListDailyProgressParams struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	From      string `json:"from,omitempty" jsonschema:"first date, YYYY-MM-DD"`
	To        string `json:"to,omitempty" jsonschema:"last date, YYYY-MM-DD"`
	Author    string `json:"author,omitempty" jsonschema:"employee id, or me"`
	Mode      string `json:"mode,omitempty" jsonschema:"paging (default) or cursor"`
	Page      int    `json:"page,omitempty" jsonschema:"1-based page number in paging mode"`
	Limit     int    `json:"limit,omitempty" jsonschema:"page size"`
	Cursor    string `json:"cursor,omitempty" jsonschema:"next_cursor of the previous page in cursor mode"`
}

type SearchDailyProgressParams struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
	Query     string `json:"query" jsonschema:"words to find in report notes"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}
