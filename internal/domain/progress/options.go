package progress

// Cursor is the keyset position of a record in list order.
type Cursor struct {
	LocalDate string
	ID        string
}

// ListOptions filters and bounds a record listing. Records are ordered by
// local_date DESC, id DESC.
type ListOptions struct {
	ProjectID string
	AuthorID  string
	From      string
	To        string
	Limit     int
	Offset    int
	After     *Cursor
}

// SearchOptions bounds a notes search within one project.
type SearchOptions struct {
	ProjectID string
	Query     string
	Limit     int
}
