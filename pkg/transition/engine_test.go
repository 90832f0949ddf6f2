package transition

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"status-probe-engine/pkg/probes"
	"status-probe-engine/pkg/registry"
	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/types"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testEntity() *types.MonitoredEntity {
	entity := &types.MonitoredEntity{
		Kind:             types.KindApp,
		Name:             "Payments API",
		Slug:             "payments-api",
		Status:           types.StatusOperational,
		CheckEnabled:     true,
		CheckType:        types.CheckTypeHTTPGet,
		CheckTarget:      "https://payments.example.com/healthz",
		FailureThreshold: 3,
	}
	entity.ID = 42
	return entity
}

func testCheck() registry.EffectiveCheck {
	return registry.EffectiveCheck{
		Type:             types.CheckTypeHTTPGet,
		Target:           "https://payments.example.com/healthz",
		Interval:         60 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
	}
}

func TestApplyFailureBelowThreshold(t *testing.T) {
	entityRepo := &repositories.MockEntityRepository{}
	incidentRepo := &repositories.MockIncidentRepository{}
	engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

	entity := testEntity()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 2; i++ {
		err := engine.Apply(entity, testCheck(), probes.Outcome{Success: false, Message: "Network error: connection refused"}, now)
		require.NoError(t, err)
		assert.Equal(t, i, entity.ConsecutiveFailures)
	}

	assert.Equal(t, types.StatusOperational, entity.Status, "status must not change before the threshold is reached")
	assert.Empty(t, incidentRepo.CreatedIncidents)
	assert.False(t, entity.LastCheckSuccess)
	assert.Equal(t, "Network error: connection refused", entity.LastCheckMessage)
	assert.True(t, entity.LastCheckAt.Valid)
	assert.Len(t, entityRepo.SavedResults, 2)
}

func TestApplyFailureAtThresholdOpensIncident(t *testing.T) {
	app := testEntity()
	parentID := app.ID
	component := types.MonitoredEntity{
		Kind:     types.KindComponent,
		Name:     "Payments DB",
		Slug:     "payments-db",
		ParentID: &parentID,
	}
	component.ID = 43

	entityRepo := &repositories.MockEntityRepository{Entities: []types.MonitoredEntity{*app, component}}
	incidentRepo := &repositories.MockIncidentRepository{}
	engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	app.ConsecutiveFailures = 2

	err := engine.Apply(app, testCheck(), probes.Outcome{Success: false, Message: "Status code 503 (expected 200)"}, now)
	require.NoError(t, err)

	assert.Equal(t, types.StatusMajorOutage, app.Status)
	require.Len(t, incidentRepo.CreatedIncidents, 1)

	incident := incidentRepo.CreatedIncidents[0]
	assert.Equal(t, app.ID, incident.EntityID)
	assert.Equal(t, types.IncidentInvestigating, incident.Status)
	assert.Equal(t, types.SeverityCritical, incident.Severity)
	assert.Equal(t, "Payments API is down", incident.Title)
	assert.Equal(t, types.SystemActor, incident.CreatedBy)
	assert.Equal(t, now, incident.StartedAt)
	assert.False(t, incident.ResolvedAt.Valid)

	require.Len(t, incident.Components, 1)
	assert.Equal(t, component.ID, incident.Components[0].ComponentID)
	assert.Equal(t, types.StatusMajorOutage, incident.Components[0].ComponentStatus)
}

func TestApplyFailureBeyondThresholdDoesNotDuplicate(t *testing.T) {
	entityRepo := &repositories.MockEntityRepository{}
	incidentRepo := &repositories.MockIncidentRepository{}
	engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

	entity := testEntity()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := engine.Apply(entity, testCheck(), probes.Outcome{Success: false, Message: "timed out"}, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	assert.Equal(t, 5, entity.ConsecutiveFailures)
	assert.Equal(t, types.StatusMajorOutage, entity.Status)
	assert.Len(t, incidentRepo.CreatedIncidents, 1, "only the threshold-crossing failure opens an incident")
}

func TestApplySuccessResolvesIncident(t *testing.T) {
	entityRepo := &repositories.MockEntityRepository{}
	incidentRepo := &repositories.MockIncidentRepository{}
	engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

	entity := testEntity()
	outageStart := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, engine.Apply(entity, testCheck(), probes.Outcome{Success: false, Message: "down"}, outageStart.Add(time.Duration(i)*time.Minute)))
	}
	require.Len(t, incidentRepo.CreatedIncidents, 1)
	require.Equal(t, types.StatusMajorOutage, entity.Status)

	recoveredAt := outageStart.Add(10 * time.Minute)
	err := engine.Apply(entity, testCheck(), probes.Outcome{Success: true, Message: "Status code 200"}, recoveredAt)
	require.NoError(t, err)

	assert.Equal(t, types.StatusOperational, entity.Status)
	assert.Equal(t, 0, entity.ConsecutiveFailures)
	assert.True(t, entity.LastCheckSuccess)

	require.Len(t, incidentRepo.SavedIncidents, 1)
	resolved := incidentRepo.SavedIncidents[0]
	assert.Equal(t, types.IncidentResolved, resolved.Status)
	require.True(t, resolved.ResolvedAt.Valid)
	assert.Equal(t, recoveredAt, resolved.ResolvedAt.Time)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, types.SystemActor, *resolved.ResolvedBy)
	assert.Empty(t, incidentRepo.OpenIncidents)
}

func TestApplySuccessAfterSingleFailure(t *testing.T) {
	entityRepo := &repositories.MockEntityRepository{}
	incidentRepo := &repositories.MockIncidentRepository{}
	engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

	entity := testEntity()
	entity.ConsecutiveFailures = 1
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	err := engine.Apply(entity, testCheck(), probes.Outcome{Success: true, Message: "Status code 200"}, now)
	require.NoError(t, err)

	// Counter resets but there was never an incident to resolve.
	assert.Equal(t, 0, entity.ConsecutiveFailures)
	assert.Equal(t, types.StatusOperational, entity.Status)
	assert.Empty(t, incidentRepo.SavedIncidents)
}

func TestApplySuccessWhenAlreadyHealthy(t *testing.T) {
	entityRepo := &repositories.MockEntityRepository{}
	incidentRepo := &repositories.MockIncidentRepository{
		OpenLookupErr: errors.New("should not be queried"),
	}
	engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

	entity := testEntity()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	err := engine.Apply(entity, testCheck(), probes.Outcome{Success: true, Message: "Status code 200"}, now)
	require.NoError(t, err)
	assert.Len(t, entityRepo.SavedResults, 1)
}

func TestApplyDoesNotResetManuallyResolvedState(t *testing.T) {
	// An operator may resolve the automated incident by hand while the check
	// is still failing. Recovery must not fail when nothing is open.
	entityRepo := &repositories.MockEntityRepository{}
	incidentRepo := &repositories.MockIncidentRepository{}
	engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

	entity := testEntity()
	entity.Status = types.StatusMajorOutage
	entity.ConsecutiveFailures = 4
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	err := engine.Apply(entity, testCheck(), probes.Outcome{Success: true, Message: "Status code 200"}, now)
	require.NoError(t, err)

	assert.Equal(t, 0, entity.ConsecutiveFailures)
	assert.Empty(t, incidentRepo.SavedIncidents)
	// No open incident means the recovery path leaves status alone.
	assert.Equal(t, types.StatusMajorOutage, entity.Status)
}

func TestApplyPersistenceErrors(t *testing.T) {
	t.Run("save check result error is returned", func(t *testing.T) {
		entityRepo := &repositories.MockEntityRepository{SaveResultErr: errors.New("connection lost")}
		incidentRepo := &repositories.MockIncidentRepository{}
		engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

		entity := testEntity()
		err := engine.Apply(entity, testCheck(), probes.Outcome{Success: true}, time.Now())
		assert.ErrorContains(t, err, "failed to persist check result")
	})

	t.Run("incident creation error is returned", func(t *testing.T) {
		entityRepo := &repositories.MockEntityRepository{}
		incidentRepo := &repositories.MockIncidentRepository{CreateError: errors.New("connection lost")}
		engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

		entity := testEntity()
		entity.ConsecutiveFailures = 2
		err := engine.Apply(entity, testCheck(), probes.Outcome{Success: false, Message: "down"}, time.Now())
		assert.ErrorContains(t, err, "failed to create incident")
	})

	t.Run("component listing error does not block the incident", func(t *testing.T) {
		entityRepo := &repositories.MockEntityRepository{ComponentsErr: errors.New("connection lost")}
		incidentRepo := &repositories.MockIncidentRepository{}
		engine := NewEngine(entityRepo, incidentRepo, newTestLogger())

		entity := testEntity()
		entity.ConsecutiveFailures = 2
		err := engine.Apply(entity, testCheck(), probes.Outcome{Success: false, Message: "down"}, time.Now())
		require.NoError(t, err)
		require.Len(t, incidentRepo.CreatedIncidents, 1)
		assert.Empty(t, incidentRepo.CreatedIncidents[0].Components)
	})
}
