package types

import (
	"database/sql"
	"time"
)

// TriggerResponse reports the outcome of a manual health-check trigger.
type TriggerResponse struct {
	Checked    int   `json:"checked"`
	DurationMs int64 `json:"duration_ms"`
}

// EntityTriggerResponse reports the outcome of a manual probe of one entity.
type EntityTriggerResponse struct {
	EntityID   uint   `json:"entity_id"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

// CheckStatus is one row of the consolidated health-check status listing.
type CheckStatus struct {
	EntityID            uint         `json:"entity_id"`
	Kind                EntityKind   `json:"kind"`
	Name                string       `json:"name"`
	Slug                string       `json:"slug"`
	ParentID            *uint        `json:"parent_id,omitempty"`
	Status              EntityStatus `json:"status"`
	CheckEnabled        bool         `json:"check_enabled"`
	CheckType           CheckType    `json:"check_type"`
	InheritCheck        bool         `json:"inherit_check"`
	LastCheckAt         sql.NullTime `json:"last_check_at"`
	LastCheckSuccess    bool         `json:"last_check_success"`
	LastCheckMessage    string       `json:"last_check_message"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
}

// BackfillRequest asks for uptime records to be recomputed for the last N days.
type BackfillRequest struct {
	Days int `json:"days"`
}

// BackfillResponse reports how many days were successfully recomputed.
type BackfillResponse struct {
	DaysProcessed int `json:"days_processed"`
}

// RecomputeRequest asks for uptime records to be recomputed for one past date.
type RecomputeRequest struct {
	Date string `json:"date"`
}

// RecomputeResponse reports how many entities were recomputed for the date.
type RecomputeResponse struct {
	Date              string `json:"date"`
	EntitiesProcessed int    `json:"entities_processed"`
}

// UpdateSettingsRequest carries settings key/value updates.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings"`
}

// RecordDateLayout is the canonical wire format for uptime record dates.
const RecordDateLayout = "2006-01-02"

// FormatRecordDate renders a record date in the canonical wire format.
func FormatRecordDate(t time.Time) string {
	return t.Format(RecordDateLayout)
}
