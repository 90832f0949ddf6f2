// Package scheduler runs the probing loop: every tick it re-reads the
// runtime settings, collects the entities whose checks are due, dispatches
// probes through a bounded worker pool, and drains the pool before the next
// tick starts.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"status-probe-engine/pkg/probes"
	"status-probe-engine/pkg/registry"
	"status-probe-engine/pkg/settings"
	"status-probe-engine/pkg/transition"
	"status-probe-engine/pkg/types"
)

// ProberFactory builds a prober for an effective check configuration. Tests
// substitute fakes here; production wiring passes probes.New.
type ProberFactory func(cfg probes.Config) (probes.Prober, error)

// Scheduler drives the periodic probing of registered entities.
type Scheduler struct {
	registry  *registry.Registry
	engine    *transition.Engine
	settings  *settings.Store
	newProber ProberFactory
	grace     time.Duration
	metrics   *Metrics
	log       *logrus.Logger

	// inflight coalesces concurrent probes of the same entity, so a manual
	// trigger that races the tick dispatch shares one execution.
	inflight singleflight.Group

	now func() time.Time
}

// New creates a scheduler. grace is added on top of each probe's timeout
// when deriving the per-probe context deadline, so the prober itself is the
// component that times out under normal conditions.
func New(reg *registry.Registry, engine *transition.Engine, store *settings.Store, newProber ProberFactory, grace time.Duration, metrics *Metrics, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		registry:  reg,
		engine:    engine,
		settings:  store,
		newProber: newProber,
		grace:     grace,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Run executes ticks until the context is canceled. Each tick fully drains
// its worker pool before the next one is scheduled, so a slow tick delays
// subsequent ticks rather than overlapping them.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			s.log.Warn("Context canceled, stopping scheduler")
			return
		}

		snapshot := s.settings.Snapshot()
		startTime := s.now()

		if snapshot.Enabled {
			checked := s.runTick(ctx, snapshot)
			elapsed := time.Since(startTime)
			s.metrics.TickDuration.Observe(elapsed.Seconds())
			s.metrics.LastTickUnix.Set(float64(s.now().Unix()))
			if checked > 0 {
				s.log.WithFields(logrus.Fields{
					"checked": checked,
					"elapsed": elapsed.String(),
				}).Info("Tick completed")
			}
		} else {
			s.metrics.TicksSkipped.Inc()
			s.log.Debug("Scheduler disabled, skipping tick")
		}

		if !s.sleepUntilNextTick(ctx, snapshot.TickInterval, time.Since(startTime)) {
			return
		}
	}
}

// runTick probes every due entity and returns how many probes ran.
func (s *Scheduler) runTick(ctx context.Context, snapshot settings.SchedulerSettings) int {
	candidates, err := s.registry.ListDueCandidates(s.now(), registry.Defaults{
		Interval: snapshot.DefaultInterval,
		Timeout:  snapshot.DefaultTimeout,
	})
	if err != nil {
		s.log.Errorf("Failed to collect due entities: %v", err)
		return 0
	}
	s.metrics.CandidatesDue.Set(float64(len(candidates)))
	if len(candidates) == 0 {
		return 0
	}

	s.dispatch(ctx, candidates, snapshot.PoolSize)
	return len(candidates)
}

// dispatch runs the candidates through a worker pool of the given size and
// blocks until every probe has finished.
func (s *Scheduler) dispatch(ctx context.Context, candidates []registry.Candidate, poolSize int) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(poolSize)

	for _, candidate := range candidates {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			if _, err := s.probeOnce(groupCtx, candidate); err != nil {
				s.log.WithFields(logrus.Fields{
					"entity": candidate.Entity.Slug,
					"error":  err,
				}).Error("Probe cycle failed")
			}
			return nil
		})
	}

	// Workers swallow their own errors, so Wait only drains the pool.
	_ = group.Wait()
}

// probeOnce executes one probe for a candidate and applies the outcome. The
// singleflight group guarantees at most one execution per entity at a time.
func (s *Scheduler) probeOnce(ctx context.Context, candidate registry.Candidate) (probes.Outcome, error) {
	key := fmt.Sprintf("%d", candidate.Entity.ID)
	result, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		return s.execute(ctx, candidate)
	})
	if err != nil {
		return probes.Outcome{}, err
	}
	return result.(probes.Outcome), nil
}

func (s *Scheduler) execute(ctx context.Context, candidate registry.Candidate) (probes.Outcome, error) {
	prober, err := s.newProber(probes.Config{
		Type:           candidate.Check.Type,
		Target:         candidate.Check.Target,
		Timeout:        candidate.Check.Timeout,
		ExpectedStatus: candidate.Check.ExpectedStatus,
	})
	if err != nil {
		return probes.Outcome{}, fmt.Errorf("failed to build prober for entity %d: %w", candidate.Entity.ID, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, candidate.Check.Timeout+s.grace)
	defer cancel()

	startTime := s.now()
	outcome := prober.Probe(probeCtx)
	s.metrics.ProbeDuration.Observe(time.Since(startTime).Seconds())
	s.metrics.ProbesTotal.WithLabelValues(resultLabel(outcome.Success)).Inc()

	entity := candidate.Entity
	if err := s.engine.Apply(&entity, candidate.Check, outcome, s.now()); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// TriggerAll probes every entity with an enabled check, regardless of
// whether it is due, and waits for all probes to complete.
func (s *Scheduler) TriggerAll(ctx context.Context) (*types.TriggerResponse, error) {
	snapshot := s.settings.Snapshot()
	candidates, err := s.registry.ListCandidates(registry.Defaults{
		Interval: snapshot.DefaultInterval,
		Timeout:  snapshot.DefaultTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect entities: %w", err)
	}

	startTime := s.now()
	s.dispatch(ctx, candidates, snapshot.PoolSize)
	return &types.TriggerResponse{
		Checked:    len(candidates),
		DurationMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// TriggerEntity probes one entity immediately. If a probe of the same
// entity is already in flight its result is shared instead of duplicated.
func (s *Scheduler) TriggerEntity(ctx context.Context, entityID uint) (*types.EntityTriggerResponse, error) {
	snapshot := s.settings.Snapshot()
	candidate, err := s.registry.ResolveEntity(entityID, registry.Defaults{
		Interval: snapshot.DefaultInterval,
		Timeout:  snapshot.DefaultTimeout,
	})
	if err != nil {
		return nil, err
	}

	startTime := s.now()
	outcome, err := s.probeOnce(ctx, *candidate)
	if err != nil {
		return nil, err
	}
	return &types.EntityTriggerResponse{
		EntityID:   entityID,
		Success:    outcome.Success,
		Message:    outcome.Message,
		DurationMs: time.Since(startTime).Milliseconds(),
	}, nil
}

func (s *Scheduler) sleepUntilNextTick(ctx context.Context, interval, elapsed time.Duration) bool {
	sleepDuration := interval - elapsed
	if sleepDuration <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		s.log.Warn("Context canceled during sleep, stopping scheduler")
		return false
	case <-time.After(sleepDuration):
		return true
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
