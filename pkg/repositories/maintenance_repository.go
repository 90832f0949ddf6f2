package repositories

import (
	"time"

	"gorm.io/gorm"

	"status-probe-engine/pkg/types"
)

// MaintenanceRepository defines read access to maintenance windows.
// Maintenance CRUD belongs to the surrounding application; the engine only
// reads windows for uptime aggregation.
type MaintenanceRepository interface {
	ListWindowsIntersecting(entityID uint, from, to time.Time) ([]types.MaintenanceWindow, error)
}

// gormMaintenanceRepository is a GORM implementation of MaintenanceRepository.
type gormMaintenanceRepository struct {
	db *gorm.DB
}

// NewGORMMaintenanceRepository creates a new GORM-based MaintenanceRepository.
func NewGORMMaintenanceRepository(db *gorm.DB) MaintenanceRepository {
	return &gormMaintenanceRepository{db: db}
}

// ListWindowsIntersecting retrieves non-cancelled maintenance windows whose
// [starts_at, ends_at) interval intersects [from, to) and which affect the
// entity directly or through a component link.
func (r *gormMaintenanceRepository) ListWindowsIntersecting(entityID uint, from, to time.Time) ([]types.MaintenanceWindow, error) {
	linkedWindowIDs := r.db.Model(&types.MaintenanceComponentLink{}).
		Select("window_id").
		Where("component_id = ?", entityID)

	var windows []types.MaintenanceWindow
	err := r.db.
		Where("(entity_id = ? OR id IN (?)) AND status <> ? AND starts_at < ? AND ends_at > ?",
			entityID, linkedWindowIDs, types.MaintenanceCancelled, to, from).
		Order("starts_at ASC").
		Find(&windows).Error
	return windows, err
}
