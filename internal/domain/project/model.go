package project

import (
	"math"
	"time"
)

// Method is a survey technique whose points are tracked per project.
type Method string

const (
	MethodSondir Method = "sondir"
	MethodBor    Method = "bor"
	MethodCPTU   Method = "cptu"
)

// Methods lists every tracked method in display order.
var Methods = []Method{MethodSondir, MethodBor, MethodCPTU}

// ParseMethod returns the method named by s, if it is tracked.
func ParseMethod(s string) (Method, bool) {
	m := Method(s)
	return m, m.Valid()
}

// Valid reports whether m is one of the tracked methods.
func (m Method) Valid() bool {
	switch m {
	case MethodSondir, MethodBor, MethodCPTU:
		return true
	}
	return false
}

// Label is the human readable name used in messages.
func (m Method) Label() string {
	switch m {
	case MethodSondir:
		return "Sondir"
	case MethodBor:
		return "Bor"
	case MethodCPTU:
		return "CPTU"
	}
	return string(m)
}

// MethodProgress holds the aggregate counters of one method.
type MethodProgress struct {
	TotalPoints     int64   `json:"total_points"`
	CompletedPoints int64   `json:"completed_points"`
	MaxDepth        float64 `json:"max_depth"`
}

// Progress maps each method to its aggregate counters.
type Progress map[Method]MethodProgress

// Snapshot returns a copy that always carries all tracked methods.
func (p Progress) Snapshot() Progress {
	out := make(Progress, len(Methods))
	for _, m := range Methods {
		out[m] = p[m]
	}
	return out
}

// Project is the aggregate root holding cumulative per-method progress.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	Client    string    `json:"client,omitempty"`
	StartDate string    `json:"start_date"`
	EndDate   *string   `json:"end_date"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OverallPercent is the share of completed points over all methods, rounded.
func (p *Project) OverallPercent() int {
	var total, done int64
	for _, m := range Methods {
		total += p.Progress[m].TotalPoints
		done += p.Progress[m].CompletedPoints
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// Before reports whether localDate precedes the project start.
func (p *Project) Before(localDate string) bool {
	return p.StartDate != "" && localDate < p.StartDate
}

// After reports whether localDate follows the project end.
func (p *Project) After(localDate string) bool {
	return p.EndDate != nil && *p.EndDate != "" && localDate > *p.EndDate
}

// Detail is the read model returned to clients.
type Detail struct {
	*Project
	OverallPercent int `json:"overall_percent"`
}

// NewDetail wraps a project with its derived fields.
func NewDetail(p *Project) *Detail {
	p.Progress = p.Progress.Snapshot()
	return &Detail{Project: p, OverallPercent: p.OverallPercent()}
}
