package types

// EntityKind identifies what level of the hierarchy a monitored entity sits at.
type EntityKind string

const (
	KindPlatform  EntityKind = "platform"
	KindApp       EntityKind = "app"
	KindComponent EntityKind = "component"
)

// IsValidEntityKind checks if the provided kind string is a known entity kind.
func IsValidEntityKind(kind string) bool {
	switch EntityKind(kind) {
	case KindPlatform, KindApp, KindComponent:
		return true
	default:
		return false
	}
}

// EntityStatus is the operational status of a monitored entity.
type EntityStatus string

const (
	StatusOperational   EntityStatus = "operational"
	StatusDegraded      EntityStatus = "degraded"
	StatusPartialOutage EntityStatus = "partial_outage"
	StatusMajorOutage   EntityStatus = "major_outage"
)

// IsValidEntityStatus checks if the provided status string is a known entity status.
func IsValidEntityStatus(status string) bool {
	switch EntityStatus(status) {
	case StatusOperational, StatusDegraded, StatusPartialOutage, StatusMajorOutage:
		return true
	default:
		return false
	}
}

// GetStatusLevel returns a numeric value for status comparison (higher = worse).
func GetStatusLevel(status EntityStatus) int {
	switch status {
	case StatusMajorOutage:
		return 3
	case StatusPartialOutage:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// CheckType represents the type of availability probe to perform.
type CheckType string

const (
	CheckTypeNone          CheckType = "none"
	CheckTypePing          CheckType = "ping"
	CheckTypeHTTPGet       CheckType = "http_get"
	CheckTypeTCPPort       CheckType = "tcp_port"
	CheckTypeServiceHealth CheckType = "service_health"
)

// IsValidCheckType checks if the provided check type string is known.
func IsValidCheckType(checkType string) bool {
	switch CheckType(checkType) {
	case CheckTypeNone, CheckTypePing, CheckTypeHTTPGet, CheckTypeTCPPort, CheckTypeServiceHealth:
		return true
	default:
		return false
	}
}

// Severity is the severity of an incident.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// IsValidSeverity checks if the provided severity string is a valid severity level.
func IsValidSeverity(severity string) bool {
	switch Severity(severity) {
	case SeverityCritical, SeverityMajor, SeverityMinor:
		return true
	default:
		return false
	}
}

// GetSeverityLevel returns a numeric value for severity comparison (higher = more critical).
func GetSeverityLevel(severity Severity) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// IncidentStatus is the lifecycle status of an incident.
type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

// MaintenanceStatus is the lifecycle status of a maintenance window.
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)
