// Package registry enumerates checkable entities and resolves their
// effective probe configuration, including the component-inherits-from-app
// rule. Downstream components only ever see already-resolved configs.
package registry

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/types"
)

// DefaultFailureThreshold is used when an entity has no threshold configured.
const DefaultFailureThreshold = 3

// Defaults carries the settings-derived fallbacks for entities without an
// explicit interval or timeout.
type Defaults struct {
	Interval time.Duration
	Timeout  time.Duration
}

// EffectiveCheck is a fully resolved probe configuration.
type EffectiveCheck struct {
	Type             types.CheckType
	Target           string
	Interval         time.Duration
	Timeout          time.Duration
	ExpectedStatus   int
	FailureThreshold int
	// SourceEntityID is the entity whose configuration was used: the parent
	// app for inheriting components, the entity itself otherwise.
	SourceEntityID uint
}

// Candidate pairs an entity with its effective check configuration.
type Candidate struct {
	Entity types.MonitoredEntity
	Check  EffectiveCheck
}

// Registry resolves which entities are checkable and when they are due.
type Registry struct {
	entities repositories.EntityRepository
	logger   *logrus.Logger
}

// New creates a Registry backed by the entity repository.
func New(entities repositories.EntityRepository, logger *logrus.Logger) *Registry {
	return &Registry{
		entities: entities,
		logger:   logger,
	}
}

// ListDueCandidates enumerates every checkable entity that is due for a
// probe at now: never-checked entities are always due, others when the time
// since their last check has reached the effective interval.
func (r *Registry) ListDueCandidates(now time.Time, defaults Defaults) ([]Candidate, error) {
	candidates, err := r.ListCandidates(defaults)
	if err != nil {
		return nil, err
	}

	due := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if !candidate.Entity.LastCheckAt.Valid || now.Sub(candidate.Entity.LastCheckAt.Time) >= candidate.Check.Interval {
			due = append(due, candidate)
		}
	}
	return due, nil
}

// ListCandidates enumerates every checkable entity with its resolved
// configuration, regardless of due time. Manual triggers use this to bypass
// the due check.
func (r *Registry) ListCandidates(defaults Defaults) ([]Candidate, error) {
	entities, err := r.entities.ListEntities(repositories.EntityFilter{})
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]types.MonitoredEntity, len(entities))
	for _, entity := range entities {
		byID[entity.ID] = entity
	}

	var candidates []Candidate
	for _, entity := range entities {
		check, ok := r.resolve(entity, byID, defaults)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Entity: entity, Check: check})
	}
	return candidates, nil
}

// ResolveEntity resolves one entity's effective check configuration for a
// manual trigger. Only apps and components can be triggered individually; it
// returns an error for platforms, unknown ids, and entities without an
// enabled check.
func (r *Registry) ResolveEntity(id uint, defaults Defaults) (*Candidate, error) {
	entity, err := r.entities.GetEntityByID(id)
	if err != nil {
		return nil, err
	}
	if entity.Kind == types.KindPlatform {
		return nil, fmt.Errorf("entity %d (%s) is a platform; only apps and components can be triggered", entity.ID, entity.Name)
	}

	byID := map[uint]types.MonitoredEntity{entity.ID: *entity}
	if entity.InheritCheck && entity.ParentID != nil {
		parent, err := r.entities.GetEntityByID(*entity.ParentID)
		if err != nil {
			return nil, err
		}
		byID[parent.ID] = *parent
	}

	check, ok := r.resolve(*entity, byID, defaults)
	if !ok {
		return nil, fmt.Errorf("entity %d (%s) has no enabled check", entity.ID, entity.Name)
	}
	return &Candidate{Entity: *entity, Check: check}, nil
}

// resolve produces the effective check configuration for an entity, applying
// the inheritance rule for components. An inheriting component is never
// scheduled from its own fields, even when they are populated.
func (r *Registry) resolve(entity types.MonitoredEntity, byID map[uint]types.MonitoredEntity, defaults Defaults) (EffectiveCheck, bool) {
	source := entity

	if entity.Kind == types.KindComponent && entity.InheritCheck {
		if entity.ParentID == nil {
			r.logger.WithFields(logrus.Fields{
				"entity": entity.Slug,
			}).Warn("Component inherits its check but has no parent app, skipping")
			return EffectiveCheck{}, false
		}
		parent, ok := byID[*entity.ParentID]
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"entity":    entity.Slug,
				"parent_id": *entity.ParentID,
			}).Warn("Component inherits its check from an unknown app, skipping")
			return EffectiveCheck{}, false
		}
		source = parent
	}

	if !source.CheckEnabled || source.CheckType == types.CheckTypeNone {
		return EffectiveCheck{}, false
	}

	check := EffectiveCheck{
		Type:             source.CheckType,
		Target:           source.CheckTarget,
		Interval:         time.Duration(source.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(source.TimeoutSeconds) * time.Second,
		ExpectedStatus:   source.ExpectedStatus,
		FailureThreshold: source.FailureThreshold,
		SourceEntityID:   source.ID,
	}
	if check.Interval <= 0 {
		check.Interval = defaults.Interval
	}
	if check.Timeout <= 0 {
		check.Timeout = defaults.Timeout
	}
	if check.FailureThreshold <= 0 {
		check.FailureThreshold = DefaultFailureThreshold
	}
	return check, true
}
