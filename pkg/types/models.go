package types

import (
	"database/sql"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SystemActor is the CreatedBy/ResolvedBy marker for records produced by the
// probing engine rather than a human operator.
const SystemActor = "system"

// MonitoredEntity is a platform, app, or component subject to availability
// probing. Components reference their owning app through ParentID, apps
// reference their platform the same way.
type MonitoredEntity struct {
	gorm.Model
	Kind     EntityKind `json:"kind" gorm:"column:kind;not null;index"`
	Name     string     `json:"name" gorm:"column:name;not null"`
	Slug     string     `json:"slug" gorm:"column:slug;not null;uniqueIndex"`
	ParentID *uint      `json:"parent_id,omitempty" gorm:"column:parent_id;index"`

	Status EntityStatus `json:"status" gorm:"column:status;not null;default:operational"`

	// Check configuration. A component with InheritCheck set is probed with
	// its parent app's configuration and never scheduled from its own fields.
	CheckEnabled     bool      `json:"check_enabled" gorm:"column:check_enabled;not null;default:false"`
	CheckType        CheckType `json:"check_type" gorm:"column:check_type;not null;default:none"`
	CheckTarget      string    `json:"check_target" gorm:"column:check_target"`
	IntervalSeconds  int       `json:"interval_seconds" gorm:"column:interval_seconds"`
	TimeoutSeconds   int       `json:"timeout_seconds" gorm:"column:timeout_seconds"`
	ExpectedStatus   int       `json:"expected_status" gorm:"column:expected_status"`
	FailureThreshold int       `json:"failure_threshold" gorm:"column:failure_threshold"`
	InheritCheck     bool      `json:"inherit_check" gorm:"column:inherit_check;not null;default:false"`

	// Runtime check-result fields, written only by the probing engine.
	LastCheckAt         sql.NullTime `json:"last_check_at" gorm:"column:last_check_at"`
	LastCheckSuccess    bool         `json:"last_check_success" gorm:"column:last_check_success"`
	LastCheckMessage    string       `json:"last_check_message" gorm:"column:last_check_message;type:text"`
	ConsecutiveFailures int          `json:"consecutive_failures" gorm:"column:consecutive_failures;not null;default:0"`
}

// Validate validates the entity and returns an error message and whether it's valid.
// Returns an empty string and true if valid, otherwise returns an aggregated error message and false.
func (e *MonitoredEntity) Validate() (string, bool) {
	var validationErrors []string

	if e.Name == "" {
		validationErrors = append(validationErrors, "Name is required")
	}

	if !IsValidEntityKind(string(e.Kind)) {
		validationErrors = append(validationErrors, "Invalid kind. Must be one of: platform, app, component")
	}

	if !IsValidCheckType(string(e.CheckType)) {
		validationErrors = append(validationErrors, "Invalid check type. Must be one of: none, ping, http_get, tcp_port, service_health")
	}

	if e.CheckEnabled && e.CheckType != CheckTypeNone && !e.InheritCheck && e.CheckTarget == "" {
		validationErrors = append(validationErrors, "CheckTarget is required when checks are enabled")
	}

	if e.FailureThreshold < 0 {
		validationErrors = append(validationErrors, "FailureThreshold cannot be negative")
	}

	if len(validationErrors) > 0 {
		return strings.Join(validationErrors, "; "), false
	}

	return "", true
}

// Incident represents a service disruption for an entity. Incidents with
// CreatedBy == SystemActor are opened and resolved by the probing engine;
// at most one of those may be open per entity at a time.
type Incident struct {
	gorm.Model
	EntityID    uint           `json:"entity_id" gorm:"column:entity_id;not null;index"`
	Status      IncidentStatus `json:"status" gorm:"column:status;not null"`
	Severity    Severity       `json:"severity" gorm:"column:severity;not null"`
	Title       string         `json:"title" gorm:"column:title;not null"`
	Description string         `json:"description" gorm:"column:description;type:text"`
	StartedAt   time.Time      `json:"started_at" gorm:"column:started_at;not null;index"`
	ResolvedAt  sql.NullTime   `json:"resolved_at" gorm:"column:resolved_at;index"`
	CreatedBy   string         `json:"created_by" gorm:"column:created_by;not null"`
	ResolvedBy  *string        `json:"resolved_by,omitempty" gorm:"column:resolved_by"`

	Components []IncidentComponentLink `json:"components,omitempty" gorm:"foreignKey:IncidentID"`
}

// Validate validates the incident and returns an error message and whether it's valid.
func (i *Incident) Validate() (string, bool) {
	var validationErrors []string

	if i.EntityID == 0 {
		validationErrors = append(validationErrors, "EntityID is required")
	}

	if i.Severity == "" {
		validationErrors = append(validationErrors, "Severity is required")
	} else if !IsValidSeverity(string(i.Severity)) {
		validationErrors = append(validationErrors, "Invalid severity. Must be one of: critical, major, minor")
	}

	if i.StartedAt.IsZero() {
		validationErrors = append(validationErrors, "StartedAt is required")
	}

	if i.CreatedBy == "" {
		validationErrors = append(validationErrors, "CreatedBy is required")
	}

	if len(validationErrors) > 0 {
		return strings.Join(validationErrors, "; "), false
	}

	return "", true
}

// IsOpen reports whether the incident has not been resolved yet.
func (i *Incident) IsOpen() bool {
	return !i.ResolvedAt.Valid
}

// IncidentComponentLink records the status of one affected component during an incident.
type IncidentComponentLink struct {
	gorm.Model
	IncidentID      uint         `json:"-" gorm:"column:incident_id;not null;index"`
	ComponentID     uint         `json:"component_id" gorm:"column:component_id;not null;index"`
	ComponentStatus EntityStatus `json:"component_status" gorm:"column:component_status;not null"`
}

// MaintenanceWindow is a planned window during which an entity is under maintenance.
type MaintenanceWindow struct {
	gorm.Model
	EntityID uint              `json:"entity_id" gorm:"column:entity_id;not null;index"`
	Status   MaintenanceStatus `json:"status" gorm:"column:status;not null"`
	Title    string            `json:"title" gorm:"column:title"`
	StartsAt time.Time         `json:"starts_at" gorm:"column:starts_at;not null;index"`
	EndsAt   time.Time         `json:"ends_at" gorm:"column:ends_at;not null;index"`

	Components []MaintenanceComponentLink `json:"components,omitempty" gorm:"foreignKey:WindowID"`
}

// MaintenanceComponentLink marks a component as affected by a maintenance window.
type MaintenanceComponentLink struct {
	gorm.Model
	WindowID    uint `json:"-" gorm:"column:window_id;not null;index"`
	ComponentID uint `json:"component_id" gorm:"column:component_id;not null;index"`
}

// UptimeRecord is the persisted daily availability summary for one entity.
// Exactly one record exists per (entity, date); recomputation overwrites it.
type UptimeRecord struct {
	gorm.Model
	EntityID   uint      `json:"entity_id" gorm:"column:entity_id;not null;index;uniqueIndex:idx_entity_record_date"`
	RecordDate time.Time `json:"record_date" gorm:"column:record_date;not null;uniqueIndex:idx_entity_record_date"`

	Status             EntityStatus `json:"status" gorm:"column:status;not null"`
	UptimePercentage   float64      `json:"uptime_percentage" gorm:"column:uptime_percentage;not null"`
	TotalMinutes       int          `json:"total_minutes" gorm:"column:total_minutes;not null"`
	OperationalMinutes int          `json:"operational_minutes" gorm:"column:operational_minutes;not null"`
	DegradedMinutes    int          `json:"degraded_minutes" gorm:"column:degraded_minutes;not null"`
	OutageMinutes      int          `json:"outage_minutes" gorm:"column:outage_minutes;not null"`
	MaintenanceMinutes int          `json:"maintenance_minutes" gorm:"column:maintenance_minutes;not null"`
	IncidentCount      int          `json:"incident_count" gorm:"column:incident_count;not null"`
	MaintenanceCount   int          `json:"maintenance_count" gorm:"column:maintenance_count;not null"`
}

// Setting is a single runtime-adjustable key/value pair read by the scheduler.
type Setting struct {
	gorm.Model
	Key   string `json:"key" gorm:"column:key;not null;uniqueIndex"`
	Value string `json:"value" gorm:"column:value;not null"`
}
