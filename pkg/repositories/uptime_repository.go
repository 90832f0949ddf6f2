package repositories

import (
	"time"

	"gorm.io/gorm"

	"status-probe-engine/pkg/types"
)

// UptimeRepository defines the interface for daily uptime record operations.
type UptimeRepository interface {
	UpsertRecord(record *types.UptimeRecord) error
	GetRecord(entityID uint, date time.Time) (*types.UptimeRecord, error)
}

// gormUptimeRepository is a GORM implementation of UptimeRepository.
type gormUptimeRepository struct {
	db *gorm.DB
}

// NewGORMUptimeRepository creates a new GORM-based UptimeRepository.
func NewGORMUptimeRepository(db *gorm.DB) UptimeRepository {
	return &gormUptimeRepository{db: db}
}

// UpsertRecord creates or overwrites the uptime record for the record's
// (entity, date) key. The unique index on (entity_id, record_date) ensures a
// single record per key at the database level.
func (r *gormUptimeRepository) UpsertRecord(record *types.UptimeRecord) error {
	var existing types.UptimeRecord
	result := r.db.
		Where("entity_id = ? AND record_date = ?", record.EntityID, record.RecordDate).
		First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		err := r.db.Create(record).Error
		// Two overlapping recomputes for the same key can race between the
		// lookup and the create. Fall back to overwriting the winner's row.
		if err == gorm.ErrDuplicatedKey {
			var winner types.UptimeRecord
			if findErr := r.db.
				Where("entity_id = ? AND record_date = ?", record.EntityID, record.RecordDate).
				First(&winner).Error; findErr == nil {
				record.ID = winner.ID
				record.CreatedAt = winner.CreatedAt
				return r.db.Save(record).Error
			}
			return err
		}
		return err
	} else if result.Error != nil {
		return result.Error
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	return r.db.Save(record).Error
}

// GetRecord retrieves the uptime record for an (entity, date) key.
// Returns nil if no record exists.
func (r *gormUptimeRepository) GetRecord(entityID uint, date time.Time) (*types.UptimeRecord, error) {
	var record types.UptimeRecord
	err := r.db.
		Where("entity_id = ? AND record_date = ?", entityID, date).
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
