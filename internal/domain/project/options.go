package project

import "time"

// Cursor is the keyset position of a project in list order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ListOptions filters and bounds a project listing. Projects are ordered by
// created_at DESC, id DESC.
type ListOptions struct {
	Search string
	Client string
	Limit  int
	Offset int
	After  *Cursor
}
