package repositories

import (
	"time"

	"gorm.io/gorm"

	"status-probe-engine/pkg/types"
)

// MockEntityRepository is a mock implementation of EntityRepository for testing.
type MockEntityRepository struct {
	Entities       []types.MonitoredEntity
	ListError      error
	GetError       error
	SaveResultErr  error
	SaveCheckFn    func(*types.MonitoredEntity)
	ComponentsErr  error
	ComponentsByID map[uint][]types.MonitoredEntity
	// Captured data for assertions
	SavedResults []types.MonitoredEntity
}

func (m *MockEntityRepository) ListEntities(filter EntityFilter) ([]types.MonitoredEntity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	var matched []types.MonitoredEntity
	for _, entity := range m.Entities {
		if filter.Kind != nil && entity.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && entity.Status != *filter.Status {
			continue
		}
		if filter.CheckEnabled != nil && entity.CheckEnabled != *filter.CheckEnabled {
			continue
		}
		matched = append(matched, entity)
	}
	return matched, nil
}

func (m *MockEntityRepository) GetEntityByID(id uint) (*types.MonitoredEntity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	for i := range m.Entities {
		if m.Entities[i].ID == id {
			entity := m.Entities[i]
			return &entity, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockEntityRepository) ListComponentsForApp(appID uint) ([]types.MonitoredEntity, error) {
	if m.ComponentsErr != nil {
		return nil, m.ComponentsErr
	}
	if m.ComponentsByID != nil {
		return m.ComponentsByID[appID], nil
	}
	var components []types.MonitoredEntity
	for _, entity := range m.Entities {
		if entity.Kind == types.KindComponent && entity.ParentID != nil && *entity.ParentID == appID {
			components = append(components, entity)
		}
	}
	return components, nil
}

func (m *MockEntityRepository) SaveCheckResult(entity *types.MonitoredEntity) error {
	m.SavedResults = append(m.SavedResults, *entity)
	if m.SaveCheckFn != nil {
		m.SaveCheckFn(entity)
	}
	if m.SaveResultErr != nil {
		return m.SaveResultErr
	}
	// Keep the in-memory state coherent for multi-tick scenarios.
	for i := range m.Entities {
		if m.Entities[i].ID == entity.ID {
			m.Entities[i].Status = entity.Status
			m.Entities[i].LastCheckAt = entity.LastCheckAt
			m.Entities[i].LastCheckSuccess = entity.LastCheckSuccess
			m.Entities[i].LastCheckMessage = entity.LastCheckMessage
			m.Entities[i].ConsecutiveFailures = entity.ConsecutiveFailures
		}
	}
	return nil
}

// MockIncidentRepository is a mock implementation of IncidentRepository for testing.
type MockIncidentRepository struct {
	OpenIncidents map[uint]*types.Incident
	OpenLookupErr error
	CreateError   error
	SaveError     error
	Intersecting  []types.Incident
	ListError     error
	// Captured data for assertions
	CreatedIncidents []*types.Incident
	SavedIncidents   []*types.Incident
}

func (m *MockIncidentRepository) CreateIncident(incident *types.Incident) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	incidentCopy := *incident
	m.CreatedIncidents = append(m.CreatedIncidents, &incidentCopy)
	if m.OpenIncidents == nil {
		m.OpenIncidents = make(map[uint]*types.Incident)
	}
	m.OpenIncidents[incident.EntityID] = &incidentCopy
	return nil
}

func (m *MockIncidentRepository) SaveIncident(incident *types.Incident) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	incidentCopy := *incident
	m.SavedIncidents = append(m.SavedIncidents, &incidentCopy)
	if incident.ResolvedAt.Valid && m.OpenIncidents != nil {
		delete(m.OpenIncidents, incident.EntityID)
	}
	return nil
}

func (m *MockIncidentRepository) GetOpenSystemIncident(entityID uint) (*types.Incident, error) {
	if m.OpenLookupErr != nil {
		return nil, m.OpenLookupErr
	}
	if incident, ok := m.OpenIncidents[entityID]; ok {
		incidentCopy := *incident
		return &incidentCopy, nil
	}
	return nil, nil
}

func (m *MockIncidentRepository) ListIncidentsIntersecting(entityID uint, from, to time.Time) ([]types.Incident, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.Intersecting, nil
}

// MockMaintenanceRepository is a mock implementation of MaintenanceRepository for testing.
type MockMaintenanceRepository struct {
	Windows   []types.MaintenanceWindow
	ListError error
}

func (m *MockMaintenanceRepository) ListWindowsIntersecting(entityID uint, from, to time.Time) ([]types.MaintenanceWindow, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.Windows, nil
}

// MockUptimeRepository is a mock implementation of UptimeRepository for testing.
type MockUptimeRepository struct {
	UpsertError error
	// Captured data for assertions
	UpsertedRecords []*types.UptimeRecord
}

func (m *MockUptimeRepository) UpsertRecord(record *types.UptimeRecord) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	recordCopy := *record
	m.UpsertedRecords = append(m.UpsertedRecords, &recordCopy)
	return nil
}

func (m *MockUptimeRepository) GetRecord(entityID uint, date time.Time) (*types.UptimeRecord, error) {
	for i := len(m.UpsertedRecords) - 1; i >= 0; i-- {
		record := m.UpsertedRecords[i]
		if record.EntityID == entityID && record.RecordDate.Equal(date) {
			recordCopy := *record
			return &recordCopy, nil
		}
	}
	return nil, nil
}

// MockSettingsRepository is a mock implementation of SettingsRepository for testing.
type MockSettingsRepository struct {
	Values   map[string]string
	GetError error
	SetError error
	// Captured data for assertions
	SetCalls []struct{ Key, Value string }
}

func (m *MockSettingsRepository) GetAll() (map[string]string, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	values := make(map[string]string, len(m.Values))
	for key, value := range m.Values {
		values[key] = value
	}
	return values, nil
}

func (m *MockSettingsRepository) Set(key, value string) error {
	m.SetCalls = append(m.SetCalls, struct{ Key, Value string }{key, value})
	if m.SetError != nil {
		return m.SetError
	}
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	m.Values[key] = value
	return nil
}
