package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/scheduler"
	"status-probe-engine/pkg/settings"
	"status-probe-engine/pkg/types"
	"status-probe-engine/pkg/uptime"
)

// Handlers contains the HTTP request handlers for the probe engine API.
type Handlers struct {
	logger     *logrus.Logger
	entities   repositories.EntityRepository
	settings   *settings.Store
	scheduler  *scheduler.Scheduler
	aggregator *uptime.Aggregator
}

// NewHandlers creates a new Handlers instance with the provided dependencies.
func NewHandlers(logger *logrus.Logger, entities repositories.EntityRepository, store *settings.Store, sched *scheduler.Scheduler, aggregator *uptime.Aggregator) *Handlers {
	return &Handlers{
		logger:     logger,
		entities:   entities,
		settings:   store,
		scheduler:  sched,
		aggregator: aggregator,
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data) // Best effort - can't return error after writing headers
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// HealthJSON returns the health status of the probe engine itself.
func (h *Handlers) HealthJSON(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	respondWithJSON(w, http.StatusOK, response)
}

// GetChecksJSON returns the consolidated check status of monitored entities,
// optionally narrowed by kind, platform, status, or check enablement.
func (h *Handlers) GetChecksJSON(w http.ResponseWriter, r *http.Request) {
	filter := repositories.EntityFilter{}
	query := r.URL.Query()

	if raw := query.Get("kind"); raw != "" {
		if !types.IsValidEntityKind(raw) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown entity kind: %s", raw))
			return
		}
		kind := types.EntityKind(raw)
		filter.Kind = &kind
	}
	if raw := query.Get("status"); raw != "" {
		if !types.IsValidEntityStatus(raw) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown entity status: %s", raw))
			return
		}
		status := types.EntityStatus(raw)
		filter.Status = &status
	}
	if raw := query.Get("platform_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "platform_id must be a positive integer")
			return
		}
		platformID := uint(id)
		filter.PlatformID = &platformID
	}
	if raw := query.Get("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "enabled must be a boolean")
			return
		}
		filter.CheckEnabled = &enabled
	}

	entities, err := h.entities.ListEntities(filter)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list entities")
		respondWithError(w, http.StatusInternalServerError, "Failed to list checks")
		return
	}

	statuses := make([]types.CheckStatus, 0, len(entities))
	for _, entity := range entities {
		statuses = append(statuses, types.CheckStatus{
			EntityID:            entity.ID,
			Kind:                entity.Kind,
			Name:                entity.Name,
			Slug:                entity.Slug,
			ParentID:            entity.ParentID,
			Status:              entity.Status,
			CheckEnabled:        entity.CheckEnabled,
			CheckType:           entity.CheckType,
			InheritCheck:        entity.InheritCheck,
			LastCheckAt:         entity.LastCheckAt,
			LastCheckSuccess:    entity.LastCheckSuccess,
			LastCheckMessage:    entity.LastCheckMessage,
			ConsecutiveFailures: entity.ConsecutiveFailures,
		})
	}
	respondWithJSON(w, http.StatusOK, statuses)
}

// TriggerAllChecksJSON probes every entity with an enabled check immediately.
func (h *Handlers) TriggerAllChecksJSON(w http.ResponseWriter, r *http.Request) {
	if !h.settings.Snapshot().Enabled {
		respondWithError(w, http.StatusConflict, "Health checking is disabled")
		return
	}

	response, err := h.scheduler.TriggerAll(r.Context())
	if err != nil {
		h.logger.WithField("error", err).Error("Manual check run failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to run checks")
		return
	}
	respondWithJSON(w, http.StatusOK, response)
}

// TriggerEntityCheckJSON probes one entity immediately and returns the outcome.
func (h *Handlers) TriggerEntityCheckJSON(w http.ResponseWriter, r *http.Request) {
	if !h.settings.Snapshot().Enabled {
		respondWithError(w, http.StatusConflict, "Health checking is disabled")
		return
	}

	entityID, err := strconv.ParseUint(mux.Vars(r)["entityId"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid entity id")
		return
	}

	response, err := h.scheduler.TriggerEntity(r.Context(), uint(entityID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondWithError(w, http.StatusNotFound, "Entity not found")
			return
		}
		h.logger.WithFields(logrus.Fields{
			"entity_id": entityID,
			"error":     err,
		}).Warn("Manual entity check rejected")
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, response)
}

// BackfillUptimeJSON recomputes uptime records for the last N days.
func (h *Handlers) BackfillUptimeJSON(w http.ResponseWriter, r *http.Request) {
	var request types.BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.Days < 1 || request.Days > uptime.MaxBackfillDays {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", uptime.MaxBackfillDays))
		return
	}

	daysProcessed, err := h.aggregator.Backfill(request.Days)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"days_requested": request.Days,
			"days_processed": daysProcessed,
			"error":          err,
		}).Error("Uptime backfill finished with errors")
		respondWithError(w, http.StatusInternalServerError, "Backfill finished with errors")
		return
	}
	respondWithJSON(w, http.StatusOK, types.BackfillResponse{DaysProcessed: daysProcessed})
}

// RecomputeUptimeJSON recomputes uptime records for one past date.
func (h *Handlers) RecomputeUptimeJSON(w http.ResponseWriter, r *http.Request) {
	var request types.RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := h.aggregator.ParseDate(request.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("date must be formatted as %s", types.RecordDateLayout))
		return
	}
	if err := h.aggregator.ValidateDate(date); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	processed, err := h.aggregator.RunForDate(date)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"date":  request.Date,
			"error": err,
		}).Error("Uptime recompute finished with errors")
		respondWithError(w, http.StatusInternalServerError, "Recompute finished with errors")
		return
	}
	respondWithJSON(w, http.StatusOK, types.RecomputeResponse{
		Date:              types.FormatRecordDate(date),
		EntitiesProcessed: processed,
	})
}

// RunDailyUptimeJSON runs the daily aggregation for yesterday on demand.
func (h *Handlers) RunDailyUptimeJSON(w http.ResponseWriter, r *http.Request) {
	date, processed, err := h.aggregator.RunForYesterday()
	if err != nil {
		h.logger.WithField("error", err).Error("Daily uptime aggregation finished with errors")
		respondWithError(w, http.StatusInternalServerError, "Daily aggregation finished with errors")
		return
	}
	respondWithJSON(w, http.StatusOK, types.RecomputeResponse{
		Date:              types.FormatRecordDate(date),
		EntitiesProcessed: processed,
	})
}

// GetSettingsJSON returns the persisted runtime settings.
func (h *Handlers) GetSettingsJSON(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.GetAll()
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to read settings")
		respondWithError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	respondWithJSON(w, http.StatusOK, values)
}

// UpdateSettingsJSON validates and persists runtime settings updates. Changes
// take effect on the scheduler's next tick.
func (h *Handlers) UpdateSettingsJSON(w http.ResponseWriter, r *http.Request) {
	var request types.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(request.Settings) == 0 {
		respondWithError(w, http.StatusBadRequest, "No settings provided")
		return
	}

	for key, value := range request.Settings {
		if err := h.settings.Set(key, value); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	user, _ := GetUserFromContext(r.Context())
	h.logger.WithFields(logrus.Fields{
		"user": user,
		"keys": len(request.Settings),
	}).Info("Runtime settings updated")

	values, err := h.settings.GetAll()
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to read settings after update")
		respondWithError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	respondWithJSON(w, http.StatusOK, values)
}
