package repositories

import (
	"gorm.io/gorm"

	"status-probe-engine/pkg/types"
)

// EntityFilter narrows entity listings. Nil fields are ignored.
type EntityFilter struct {
	Kind         *types.EntityKind
	PlatformID   *uint
	Status       *types.EntityStatus
	CheckEnabled *bool
}

// EntityRepository defines the interface for monitored entity database operations.
// The probing engine only ever writes the runtime check-result fields; entity
// CRUD belongs to the surrounding application.
type EntityRepository interface {
	ListEntities(filter EntityFilter) ([]types.MonitoredEntity, error)
	GetEntityByID(id uint) (*types.MonitoredEntity, error)
	ListComponentsForApp(appID uint) ([]types.MonitoredEntity, error)

	SaveCheckResult(entity *types.MonitoredEntity) error
}

// gormEntityRepository is a GORM implementation of EntityRepository.
type gormEntityRepository struct {
	db *gorm.DB
}

// NewGORMEntityRepository creates a new GORM-based EntityRepository.
func NewGORMEntityRepository(db *gorm.DB) EntityRepository {
	return &gormEntityRepository{db: db}
}

// ListEntities retrieves entities matching the filter, ordered by kind then name.
// A PlatformID filter matches the platform itself, its apps, and the
// components of those apps.
func (r *gormEntityRepository) ListEntities(filter EntityFilter) ([]types.MonitoredEntity, error) {
	query := r.db.Model(&types.MonitoredEntity{})

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CheckEnabled != nil {
		query = query.Where("check_enabled = ?", *filter.CheckEnabled)
	}
	if filter.PlatformID != nil {
		appIDs := r.db.Model(&types.MonitoredEntity{}).
			Select("id").
			Where("parent_id = ?", *filter.PlatformID)
		query = query.Where("id = ? OR parent_id = ? OR parent_id IN (?)", *filter.PlatformID, *filter.PlatformID, appIDs)
	}

	var entities []types.MonitoredEntity
	err := query.Order("kind, name").Find(&entities).Error
	return entities, err
}

// GetEntityByID retrieves one entity. Returns gorm.ErrRecordNotFound if it does not exist.
func (r *gormEntityRepository) GetEntityByID(id uint) (*types.MonitoredEntity, error) {
	var entity types.MonitoredEntity
	err := r.db.First(&entity, id).Error
	return &entity, err
}

// ListComponentsForApp retrieves all components owned by an app.
func (r *gormEntityRepository) ListComponentsForApp(appID uint) ([]types.MonitoredEntity, error) {
	var components []types.MonitoredEntity
	err := r.db.
		Where("kind = ? AND parent_id = ?", types.KindComponent, appID).
		Order("name").
		Find(&components).Error
	return components, err
}

// SaveCheckResult persists only the runtime check-result fields and the
// derived status of an entity, leaving its configuration untouched.
func (r *gormEntityRepository) SaveCheckResult(entity *types.MonitoredEntity) error {
	return r.db.Model(entity).
		Select("status", "last_check_at", "last_check_success", "last_check_message", "consecutive_failures").
		Updates(map[string]interface{}{
			"status":               entity.Status,
			"last_check_at":        entity.LastCheckAt,
			"last_check_success":   entity.LastCheckSuccess,
			"last_check_message":   entity.LastCheckMessage,
			"consecutive_failures": entity.ConsecutiveFailures,
		}).Error
}
