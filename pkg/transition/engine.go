// Package transition applies probe outcomes to entity state: it maintains
// the consecutive-failure counters, decides status transitions, and opens or
// resolves system-created incidents.
package transition

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"status-probe-engine/pkg/probes"
	"status-probe-engine/pkg/registry"
	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/types"
)

// Engine consumes probe outcomes and updates entity status and incidents.
// Callers must serialize Apply per entity; the scheduler guarantees this by
// probing each entity at most once concurrently.
type Engine struct {
	entities  repositories.EntityRepository
	incidents repositories.IncidentRepository
	logger    *logrus.Logger
}

// NewEngine creates a transition engine.
func NewEngine(entities repositories.EntityRepository, incidents repositories.IncidentRepository, logger *logrus.Logger) *Engine {
	return &Engine{
		entities:  entities,
		incidents: incidents,
		logger:    logger,
	}
}

// Apply records one probe outcome for an entity and performs the resulting
// status transition. The entity is mutated in place and persisted through
// the check-result write path.
func (e *Engine) Apply(entity *types.MonitoredEntity, check registry.EffectiveCheck, outcome probes.Outcome, now time.Time) error {
	logger := e.logger.WithFields(logrus.Fields{
		"entity":  entity.Slug,
		"kind":    entity.Kind,
		"success": outcome.Success,
	})

	entity.LastCheckAt = sql.NullTime{Time: now, Valid: true}
	entity.LastCheckSuccess = outcome.Success
	entity.LastCheckMessage = outcome.Message

	if outcome.Success {
		wasFailing := entity.ConsecutiveFailures > 0
		entity.ConsecutiveFailures = 0

		if wasFailing {
			if err := e.recoverFromOutage(entity, now, logger); err != nil {
				return err
			}
		}
	} else {
		entity.ConsecutiveFailures++
		logger = logger.WithField("consecutive_failures", entity.ConsecutiveFailures)

		// Edge-triggered: the incident opens exactly when the threshold is
		// reached, never again on subsequent failures.
		if entity.ConsecutiveFailures == check.FailureThreshold {
			if err := e.enterOutage(entity, now, logger); err != nil {
				return err
			}
		}
	}

	if err := e.entities.SaveCheckResult(entity); err != nil {
		return fmt.Errorf("failed to persist check result for entity %d: %w", entity.ID, err)
	}
	return nil
}

// recoverFromOutage resolves the entity's open system incident, if any, and
// restores its status to operational.
func (e *Engine) recoverFromOutage(entity *types.MonitoredEntity, now time.Time, logger *logrus.Entry) error {
	incident, err := e.incidents.GetOpenSystemIncident(entity.ID)
	if err != nil {
		return fmt.Errorf("failed to look up open incident for entity %d: %w", entity.ID, err)
	}
	if incident == nil {
		return nil
	}

	resolvedBy := types.SystemActor
	incident.Status = types.IncidentResolved
	incident.ResolvedAt = sql.NullTime{Time: now, Valid: true}
	incident.ResolvedBy = &resolvedBy
	if err := e.incidents.SaveIncident(incident); err != nil {
		return fmt.Errorf("failed to resolve incident %d: %w", incident.ID, err)
	}

	entity.Status = types.StatusOperational
	logger.WithField("incident_id", incident.ID).Info("Entity recovered, resolved automated incident")
	return nil
}

// enterOutage marks the entity as fully down and opens a system incident,
// unless one is already open.
func (e *Engine) enterOutage(entity *types.MonitoredEntity, now time.Time, logger *logrus.Entry) error {
	entity.Status = types.StatusMajorOutage

	existing, err := e.incidents.GetOpenSystemIncident(entity.ID)
	if err != nil {
		return fmt.Errorf("failed to look up open incident for entity %d: %w", entity.ID, err)
	}
	if existing != nil {
		logger.WithField("incident_id", existing.ID).Debug("Automated incident already open, skipping creation")
		return nil
	}

	incident := types.Incident{
		EntityID:    entity.ID,
		Status:      types.IncidentInvestigating,
		Severity:    types.SeverityCritical,
		Title:       fmt.Sprintf("%s is down", entity.Name),
		Description: fmt.Sprintf("Automated health check failed %d consecutive times: %s", entity.ConsecutiveFailures, entity.LastCheckMessage),
		StartedAt:   now,
		CreatedBy:   types.SystemActor,
	}

	if entity.Kind == types.KindApp {
		components, err := e.entities.ListComponentsForApp(entity.ID)
		if err != nil {
			logger.WithField("error", err).Error("Failed to list components for incident links")
		} else {
			for _, component := range components {
				incident.Components = append(incident.Components, types.IncidentComponentLink{
					ComponentID:     component.ID,
					ComponentStatus: types.StatusMajorOutage,
				})
			}
		}
	}

	if message, valid := incident.Validate(); !valid {
		return fmt.Errorf("invalid automated incident for entity %d: %s", entity.ID, message)
	}

	if err := e.incidents.CreateIncident(&incident); err != nil {
		return fmt.Errorf("failed to create incident for entity %d: %w", entity.ID, err)
	}

	logger.WithFields(logrus.Fields{
		"incident_id":     incident.ID,
		"component_links": len(incident.Components),
	}).Warn("Opened automated incident")
	return nil
}
