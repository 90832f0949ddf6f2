package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"status-probe-engine/pkg/config"
	"status-probe-engine/pkg/probes"
	"status-probe-engine/pkg/registry"
	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/settings"
	"status-probe-engine/pkg/transition"
	"status-probe-engine/pkg/types"
)

// repositoriesMockBundle groups the mock repositories a scheduler test needs.
type repositoriesMockBundle struct {
	Entities  *repositories.MockEntityRepository
	Incidents *repositories.MockIncidentRepository
}

func newMockBundle(entities ...types.MonitoredEntity) *repositoriesMockBundle {
	return &repositoriesMockBundle{
		Entities:  &repositories.MockEntityRepository{Entities: entities},
		Incidents: &repositories.MockIncidentRepository{},
	}
}

type fakeProber struct {
	outcome probes.Outcome
	delay   time.Duration
	onStart func()
	onDone  func()
}

func (f *fakeProber) Probe(ctx context.Context) probes.Outcome {
	if f.onStart != nil {
		f.onStart()
	}
	if f.onDone != nil {
		defer f.onDone()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return probes.Outcome{Success: false, Message: "probe canceled"}
		}
	}
	return f.outcome
}

// recordingFactory builds fake probers and records which targets were asked
// for, so tests can assert on dispatch behavior.
type recordingFactory struct {
	mu       sync.Mutex
	targets  []string
	outcomes map[string]probes.Outcome
	delay    time.Duration
	onStart  func()
	onDone   func()
	buildErr error
}

func (f *recordingFactory) build(cfg probes.Config) (probes.Prober, error) {
	f.mu.Lock()
	f.targets = append(f.targets, cfg.Target)
	f.mu.Unlock()
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	outcome := probes.Outcome{Success: true, Message: "ok"}
	if f.outcomes != nil {
		if configured, ok := f.outcomes[cfg.Target]; ok {
			outcome = configured
		}
	}
	return &fakeProber{outcome: outcome, delay: f.delay, onStart: f.onStart, onDone: f.onDone}, nil
}

func (f *recordingFactory) probedTargets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.targets...)
}

func testScheduler(t *testing.T, mocks *repositoriesMockBundle, factory ProberFactory, settingValues map[string]string) *Scheduler {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := settings.NewStore(&repositories.MockSettingsRepository{Values: settingValues}, config.NewStatic(types.DefaultEngineConfig(), logger), logger)
	reg := registry.New(mocks.Entities, logger)
	engine := transition.NewEngine(mocks.Entities, mocks.Incidents, logger)
	metrics := NewMetrics(prometheus.NewRegistry())

	return New(reg, engine, store, factory, 2*time.Second, metrics, logger)
}

func enabledEntity(id uint, slug, target string) types.MonitoredEntity {
	entity := types.MonitoredEntity{
		Kind:             types.KindApp,
		Name:             slug,
		Slug:             slug,
		Status:           types.StatusOperational,
		CheckEnabled:     true,
		CheckType:        types.CheckTypeHTTPGet,
		CheckTarget:      target,
		IntervalSeconds:  60,
		TimeoutSeconds:   5,
		FailureThreshold: 3,
	}
	entity.ID = id
	return entity
}

func TestTriggerAllProbesEveryEnabledEntity(t *testing.T) {
	entityRepo := newMockBundle(
		enabledEntity(1, "api", "https://api.example.com/healthz"),
		enabledEntity(2, "web", "https://web.example.com/healthz"),
	)
	disabled := enabledEntity(3, "batch", "https://batch.example.com/healthz")
	disabled.CheckEnabled = false
	entityRepo.Entities.Entities = append(entityRepo.Entities.Entities, disabled)

	factory := &recordingFactory{}
	sched := testScheduler(t, entityRepo, factory.build, nil)

	response, err := sched.TriggerAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, response.Checked)
	assert.ElementsMatch(t, []string{
		"https://api.example.com/healthz",
		"https://web.example.com/healthz",
	}, factory.probedTargets())
	assert.Len(t, entityRepo.Entities.SavedResults, 2)
}

func TestTickSkipsEntitiesNotDue(t *testing.T) {
	recentlyChecked := enabledEntity(1, "api", "https://api.example.com/healthz")
	recentlyChecked.LastCheckAt = sql.NullTime{Time: time.Now().Add(-10 * time.Second), Valid: true}
	dueEntity := enabledEntity(2, "web", "https://web.example.com/healthz")
	dueEntity.LastCheckAt = sql.NullTime{Time: time.Now().Add(-5 * time.Minute), Valid: true}
	neverChecked := enabledEntity(3, "db", "tcp://db.example.com:5432")
	neverChecked.CheckType = types.CheckTypeTCPPort
	neverChecked.CheckTarget = "db.example.com:5432"

	entityRepo := newMockBundle(recentlyChecked, dueEntity, neverChecked)
	factory := &recordingFactory{}
	sched := testScheduler(t, entityRepo, factory.build, nil)

	checked := sched.runTick(context.Background(), sched.settings.Snapshot())

	assert.Equal(t, 2, checked)
	assert.ElementsMatch(t, []string{
		"https://web.example.com/healthz",
		"db.example.com:5432",
	}, factory.probedTargets())
}

func TestDispatchRespectsPoolSize(t *testing.T) {
	var entities []types.MonitoredEntity
	for i := uint(1); i <= 8; i++ {
		entities = append(entities, enabledEntity(i, string(rune('a'+i)), "https://example.com/healthz"))
	}
	entityRepo := newMockBundle(entities...)

	var inFlight, maxInFlight int64
	factory := &recordingFactory{
		delay: 20 * time.Millisecond,
		onStart: func() {
			current := atomic.AddInt64(&inFlight, 1)
			for {
				observed := atomic.LoadInt64(&maxInFlight)
				if current <= observed || atomic.CompareAndSwapInt64(&maxInFlight, observed, current) {
					break
				}
			}
		},
		onDone: func() {
			atomic.AddInt64(&inFlight, -1)
		},
	}

	sched := testScheduler(t, entityRepo, factory.build, map[string]string{
		settings.KeyThreadPoolSize: "2",
	})

	response, err := sched.TriggerAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, response.Checked)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(2))
}

func TestFailuresAcrossTicksOpenOneIncident(t *testing.T) {
	entity := enabledEntity(1, "api", "https://api.example.com/healthz")
	entityRepo := newMockBundle(entity)
	factory := &recordingFactory{
		outcomes: map[string]probes.Outcome{
			"https://api.example.com/healthz": {Success: false, Message: "Status code 503 (expected 200)"},
		},
	}
	sched := testScheduler(t, entityRepo, factory.build, nil)

	for i := 0; i < 4; i++ {
		response, err := sched.TriggerAll(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, response.Checked)
	}

	require.Len(t, entityRepo.Incidents.CreatedIncidents, 1)
	incident := entityRepo.Incidents.CreatedIncidents[0]
	assert.Equal(t, entity.ID, incident.EntityID)
	assert.Equal(t, types.SystemActor, incident.CreatedBy)
	assert.Equal(t, types.StatusMajorOutage, entityRepo.Entities.Entities[0].Status)
}

func TestTriggerEntity(t *testing.T) {
	entityRepo := newMockBundle(enabledEntity(7, "api", "https://api.example.com/healthz"))
	factory := &recordingFactory{}
	sched := testScheduler(t, entityRepo, factory.build, nil)

	response, err := sched.TriggerEntity(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, uint(7), response.EntityID)
	assert.True(t, response.Success)
	assert.Equal(t, "ok", response.Message)
	assert.Len(t, entityRepo.Entities.SavedResults, 1)
}

func TestTriggerEntityUnknown(t *testing.T) {
	entityRepo := newMockBundle()
	sched := testScheduler(t, entityRepo, (&recordingFactory{}).build, nil)

	_, err := sched.TriggerEntity(context.Background(), 99)
	assert.Error(t, err)
}

func TestProberBuildErrorDoesNotAbortTick(t *testing.T) {
	entityRepo := newMockBundle(
		enabledEntity(1, "api", "https://api.example.com/healthz"),
	)
	factory := &recordingFactory{buildErr: errors.New("unsupported check type")}
	sched := testScheduler(t, entityRepo, factory.build, nil)

	response, err := sched.TriggerAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, response.Checked)
	assert.Empty(t, entityRepo.Entities.SavedResults, "no outcome to apply when the prober cannot be built")
}

func TestRunSkipsTicksWhenDisabled(t *testing.T) {
	entityRepo := newMockBundle(enabledEntity(1, "api", "https://api.example.com/healthz"))
	factory := &recordingFactory{}
	sched := testScheduler(t, entityRepo, factory.build, map[string]string{
		settings.KeyEnabled:             "false",
		settings.KeySchedulerIntervalMs: "10",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	assert.Empty(t, factory.probedTargets())
}

func TestRunStopsOnCancel(t *testing.T) {
	entityRepo := newMockBundle(enabledEntity(1, "api", "https://api.example.com/healthz"))
	factory := &recordingFactory{}
	sched := testScheduler(t, entityRepo, factory.build, map[string]string{
		settings.KeySchedulerIntervalMs: "10",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}

	assert.NotEmpty(t, factory.probedTargets())
}
