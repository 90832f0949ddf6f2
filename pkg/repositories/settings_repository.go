package repositories

import (
	"gorm.io/gorm"

	"status-probe-engine/pkg/types"
)

// SettingsRepository defines key/value access to the runtime settings table.
type SettingsRepository interface {
	GetAll() (map[string]string, error)
	Set(key, value string) error
}

// gormSettingsRepository is a GORM implementation of SettingsRepository.
type gormSettingsRepository struct {
	db *gorm.DB
}

// NewGORMSettingsRepository creates a new GORM-based SettingsRepository.
func NewGORMSettingsRepository(db *gorm.DB) SettingsRepository {
	return &gormSettingsRepository{db: db}
}

// GetAll retrieves all settings as a key/value map.
func (r *gormSettingsRepository) GetAll() (map[string]string, error) {
	var settings []types.Setting
	if err := r.db.Find(&settings).Error; err != nil {
		return nil, err
	}

	values := make(map[string]string, len(settings))
	for _, setting := range settings {
		values[setting.Key] = setting.Value
	}
	return values, nil
}

// Set creates or updates a single setting. The unique index on key ensures
// one row per key at the database level.
func (r *gormSettingsRepository) Set(key, value string) error {
	var existing types.Setting
	result := r.db.Where("key = ?", key).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		err := r.db.Create(&types.Setting{Key: key, Value: value}).Error
		// Another writer may create the row between the lookup and the
		// create; update the existing row in that case.
		if err == gorm.ErrDuplicatedKey {
			var winner types.Setting
			if findErr := r.db.Where("key = ?", key).First(&winner).Error; findErr == nil {
				winner.Value = value
				return r.db.Save(&winner).Error
			}
			return err
		}
		return err
	} else if result.Error != nil {
		return result.Error
	}

	existing.Value = value
	return r.db.Save(&existing).Error
}
