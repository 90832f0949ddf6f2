package repositories

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"status-probe-engine/pkg/types"
)

// IncidentRepository defines the interface for incident database operations.
// The probing engine creates and resolves system-tagged incidents only; it
// has read access to all incidents for uptime aggregation.
type IncidentRepository interface {
	CreateIncident(incident *types.Incident) error
	SaveIncident(incident *types.Incident) error

	GetOpenSystemIncident(entityID uint) (*types.Incident, error)
	ListIncidentsIntersecting(entityID uint, from, to time.Time) ([]types.Incident, error)
}

// gormIncidentRepository is a GORM implementation of IncidentRepository.
type gormIncidentRepository struct {
	db *gorm.DB
}

// NewGORMIncidentRepository creates a new GORM-based IncidentRepository.
func NewGORMIncidentRepository(db *gorm.DB) IncidentRepository {
	return &gormIncidentRepository{db: db}
}

// roundIncidentTimes rounds the incident interval to the nearest second.
func roundIncidentTimes(incident *types.Incident) {
	incident.StartedAt = incident.StartedAt.Round(time.Second)
	if incident.ResolvedAt.Valid {
		incident.ResolvedAt = sql.NullTime{
			Time:  incident.ResolvedAt.Time.Round(time.Second),
			Valid: true,
		}
	}
}

// CreateIncident creates a new incident together with its component links.
func (r *gormIncidentRepository) CreateIncident(incident *types.Incident) error {
	roundIncidentTimes(incident)
	return r.db.Create(incident).Error
}

// SaveIncident updates an existing incident record.
func (r *gormIncidentRepository) SaveIncident(incident *types.Incident) error {
	roundIncidentTimes(incident)
	return r.db.Save(incident).Error
}

// GetOpenSystemIncident retrieves the unresolved system-created incident for
// an entity, or nil if none exists. At most one can be open at a time; if
// more than one exists the oldest is returned.
func (r *gormIncidentRepository) GetOpenSystemIncident(entityID uint) (*types.Incident, error) {
	var incident types.Incident
	err := r.db.
		Where("entity_id = ? AND created_by = ? AND resolved_at IS NULL", entityID, types.SystemActor).
		Order("started_at ASC").
		First(&incident).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// ListIncidentsIntersecting retrieves all incidents whose interval
// [started_at, resolved_at or open) intersects [from, to) and which affect
// the entity, either directly or through a component link.
func (r *gormIncidentRepository) ListIncidentsIntersecting(entityID uint, from, to time.Time) ([]types.Incident, error) {
	linkedIncidentIDs := r.db.Model(&types.IncidentComponentLink{}).
		Select("incident_id").
		Where("component_id = ?", entityID)

	var incidents []types.Incident
	err := r.db.
		Where("(entity_id = ? OR id IN (?)) AND started_at < ? AND (resolved_at IS NULL OR resolved_at > ?)",
			entityID, linkedIncidentIDs, to, from).
		Order("started_at ASC").
		Find(&incidents).Error
	return incidents, err
}
