// Package paging implements the two list styles exposed by the API: offset based
// "paging" and keyset based "cursor" pagination.
package paging

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Mode selects the pagination style.
type Mode string

const (
	ModePaging Mode = "paging"
	ModeCursor Mode = "cursor"
)

var (
	// ErrInvalidMode is returned for an unknown pagination mode.
	ErrInvalidMode = errors.New("invalid pagination mode")
	// ErrInvalidCursor is returned when a cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

const cursorSeparator = "\x1f"

// Params are the pagination inputs of a list request.
type Params struct {
	Mode   Mode
	Page   int
	Limit  int
	Cursor string
}

// Normalize applies defaults and clamps the limit to maxLimit.
func (p Params) Normalize(defaultLimit, maxLimit int) (Params, error) {
	if p.Mode == "" {
		p.Mode = ModePaging
	}
	if p.Mode != ModePaging && p.Mode != ModeCursor {
		return Params{}, ErrInvalidMode
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p, nil
}

// Offset returns the row offset of the current page.
func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Result is one page of items.
type Result[T any] struct {
	Mode       Mode   `json:"mode"`
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit"`
	TotalItems int    `json:"total_items"`
	TotalPages int    `json:"total_pages"`
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// NewPage builds an offset-mode result.
func NewPage[T any](p Params, items []T, total int) *Result[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return &Result[T]{
		Mode:       ModePaging,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalItems: total,
		TotalPages: pages,
		Items:      items,
		HasMore:    p.Page < pages,
	}
}

// NewCursorPage builds a cursor-mode result from up to limit+1 rows. key returns the
// keyset tuple of an item and is used to encode the next cursor.
func NewCursorPage[T any](p Params, rows []T, key func(T) []string) *Result[T] {
	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	if rows == nil {
		rows = []T{}
	}
	res := &Result[T]{
		Mode:    ModeCursor,
		Limit:   p.Limit,
		Items:   rows,
		HasMore: hasMore,
	}
	if hasMore && len(rows) > 0 {
		res.NextCursor = EncodeCursor(key(rows[len(rows)-1])...)
	}
	return res
}

// EncodeCursor packs a keyset tuple into an opaque token.
func EncodeCursor(parts ...string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(parts, cursorSeparator)))
}

// DecodeCursor unpacks a token produced by EncodeCursor. The tuple must have exactly n
// parts.
func DecodeCursor(token string, n int) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	parts := strings.Split(string(raw), cursorSeparator)
	if len(parts) != n {
		return nil, ErrInvalidCursor
	}
	for _, part := range parts {
		if part == "" {
			return nil, ErrInvalidCursor
		}
	}
	return parts, nil
}
