package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeProjectCreated     ActivityType = "project_created"
	TypeTotalsUpdated      ActivityType = "totals_updated"
	TypeProgressSaved      ActivityType = "daily_progress_saved"
	TypeProgressCleared    ActivityType = "daily_progress_cleared"
	TypeProgressDeleted    ActivityType = "daily_progress_deleted"
	TypeMaxDepthRecomputed ActivityType = "max_depth_recomputed"
	TypeAggregateRepaired  ActivityType = "aggregate_repaired"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	ProjectID    string       `json:"project_id"`
	RecordID     *string      `json:"record_id,omitempty"`
	ActorID      string       `json:"actor_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
