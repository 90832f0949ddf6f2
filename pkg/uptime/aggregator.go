// Package uptime reconstructs per-minute availability timelines from the
// incident and maintenance history and persists daily summary records.
package uptime

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/types"
)

// MaxBackfillDays caps how far back a single backfill request may reach.
const MaxBackfillDays = 365

// minuteClass is the classification of one minute of an entity's day.
type minuteClass int

const (
	classOperational minuteClass = iota
	classMaintenance
	classDegraded
	classOutage
)

// interval is a half-open [Start, End) time range with a classification.
type interval struct {
	Start time.Time
	End   time.Time
	Class minuteClass
}

// Aggregator computes daily uptime records for monitored entities.
type Aggregator struct {
	entities       repositories.EntityRepository
	incidents      repositories.IncidentRepository
	maintenance    repositories.MaintenanceRepository
	records        repositories.UptimeRepository
	location       *time.Location
	degradedWeight float64
	log            *logrus.Logger

	now func() time.Time
}

// NewAggregator creates an uptime aggregator. location is the reference
// timezone in which calendar days are delimited; degradedWeight is the
// fraction of downtime credit a degraded minute carries in the percentage.
func NewAggregator(entities repositories.EntityRepository, incidents repositories.IncidentRepository, maintenance repositories.MaintenanceRepository, records repositories.UptimeRepository, location *time.Location, degradedWeight float64, log *logrus.Logger) *Aggregator {
	return &Aggregator{
		entities:       entities,
		incidents:      incidents,
		maintenance:    maintenance,
		records:        records,
		location:       location,
		degradedWeight: degradedWeight,
		log:            log,
		now:            time.Now,
	}
}

// CalculateForDate computes and upserts the uptime record for one entity and
// one fully-elapsed calendar date. Requests for the current day or future
// dates are rejected without writing anything.
func (a *Aggregator) CalculateForDate(entity types.MonitoredEntity, date time.Time) (*types.UptimeRecord, error) {
	dayStart, dayEnd, err := a.dayBounds(date)
	if err != nil {
		return nil, err
	}

	incidents, err := a.incidents.ListIncidentsIntersecting(entity.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents for entity %d on %s: %w", entity.ID, types.FormatRecordDate(dayStart), err)
	}
	windows, err := a.maintenance.ListWindowsIntersecting(entity.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance windows for entity %d on %s: %w", entity.ID, types.FormatRecordDate(dayStart), err)
	}

	intervals := a.buildIntervals(incidents, windows, dayStart, dayEnd)

	totalMinutes := int(dayEnd.Sub(dayStart).Minutes())
	var operational, degraded, outage, maintenance int
	for minute := 0; minute < totalMinutes; minute++ {
		instant := dayStart.Add(time.Duration(minute) * time.Minute)
		switch classifyMinute(instant, intervals) {
		case classOutage:
			outage++
		case classDegraded:
			degraded++
		case classMaintenance:
			maintenance++
		default:
			operational++
		}
	}

	if operational+degraded+outage+maintenance != totalMinutes {
		return nil, fmt.Errorf("minute classification for entity %d on %s does not cover the day: %d+%d+%d+%d != %d",
			entity.ID, types.FormatRecordDate(dayStart), operational, degraded, outage, maintenance, totalMinutes)
	}

	record := &types.UptimeRecord{
		EntityID:           entity.ID,
		RecordDate:         dayStart,
		Status:             dayStatus(outage, degraded),
		UptimePercentage:   a.percentage(totalMinutes, outage, degraded),
		TotalMinutes:       totalMinutes,
		OperationalMinutes: operational,
		DegradedMinutes:    degraded,
		OutageMinutes:      outage,
		MaintenanceMinutes: maintenance,
		IncidentCount:      len(incidents),
		MaintenanceCount:   len(windows),
	}

	if err := a.records.UpsertRecord(record); err != nil {
		return nil, fmt.Errorf("failed to upsert uptime record for entity %d on %s: %w", entity.ID, types.FormatRecordDate(dayStart), err)
	}
	return record, nil
}

// RunForDate computes uptime records for every entity for one date. It keeps
// going past per-entity failures and reports them together.
func (a *Aggregator) RunForDate(date time.Time) (int, error) {
	entities, err := a.entities.ListEntities(repositories.EntityFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list entities: %w", err)
	}

	var processed int
	var entityErrors []error
	for _, entity := range entities {
		if _, err := a.CalculateForDate(entity, date); err != nil {
			entityErrors = append(entityErrors, err)
			continue
		}
		processed++
	}
	return processed, utilerrors.NewAggregate(entityErrors)
}

// Backfill recomputes uptime records for the last N fully-elapsed days,
// oldest first so an interrupted run can resume without gaps. It returns the
// number of days that processed without error.
func (a *Aggregator) Backfill(days int) (int, error) {
	if days < 1 || days > MaxBackfillDays {
		return 0, fmt.Errorf("backfill days must be between 1 and %d, got %d", MaxBackfillDays, days)
	}

	today := a.today()
	var daysProcessed int
	var dayErrors []error
	for offset := days; offset >= 1; offset-- {
		date := today.AddDate(0, 0, -offset)
		processed, err := a.RunForDate(date)
		if err != nil {
			dayErrors = append(dayErrors, fmt.Errorf("date %s: %w", types.FormatRecordDate(date), err))
			continue
		}
		daysProcessed++
		a.log.WithFields(logrus.Fields{
			"date":     types.FormatRecordDate(date),
			"entities": processed,
		}).Info("Backfilled uptime records")
	}
	return daysProcessed, utilerrors.NewAggregate(dayErrors)
}

// RunForYesterday computes uptime records for the most recent fully-elapsed
// day in the reference timezone and returns that day alongside the processed
// count. The daily job calls this shortly after midnight.
func (a *Aggregator) RunForYesterday() (time.Time, int, error) {
	date := a.today().AddDate(0, 0, -1)
	processed, err := a.RunForDate(date)
	return date, processed, err
}

// ParseDate parses a wire-format record date in the reference timezone.
func (a *Aggregator) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(types.RecordDateLayout, value, a.location)
}

// ValidateDate rejects dates whose day has not fully elapsed yet.
func (a *Aggregator) ValidateDate(date time.Time) error {
	_, _, err := a.dayBounds(date)
	return err
}

// dayBounds normalizes date to its calendar-day bounds in the reference
// timezone and rejects days that have not fully elapsed.
func (a *Aggregator) dayBounds(date time.Time) (time.Time, time.Time, error) {
	local := date.In(a.location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	if dayEnd.After(a.now()) {
		return time.Time{}, time.Time{}, fmt.Errorf("cannot compute uptime for %s: the day has not fully elapsed", types.FormatRecordDate(dayStart))
	}
	return dayStart, dayEnd, nil
}

func (a *Aggregator) today() time.Time {
	local := a.now().In(a.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.location)
}

// buildIntervals converts the day's incidents and maintenance windows into
// classified intervals clipped to the day. An unresolved incident extends to
// now at most, never into the future.
func (a *Aggregator) buildIntervals(incidents []types.Incident, windows []types.MaintenanceWindow, dayStart, dayEnd time.Time) []interval {
	now := a.now()
	var intervals []interval

	for _, incident := range incidents {
		end := now
		if incident.ResolvedAt.Valid {
			end = incident.ResolvedAt.Time
		}
		clipped, ok := clip(incident.StartedAt, end, dayStart, dayEnd)
		if !ok {
			continue
		}
		clipped.Class = classDegraded
		if types.GetSeverityLevel(incident.Severity) >= types.GetSeverityLevel(types.SeverityMajor) {
			clipped.Class = classOutage
		}
		intervals = append(intervals, clipped)
	}

	for _, window := range windows {
		clipped, ok := clip(window.StartsAt, window.EndsAt, dayStart, dayEnd)
		if !ok {
			continue
		}
		clipped.Class = classMaintenance
		intervals = append(intervals, clipped)
	}

	return intervals
}

// classifyMinute picks the highest-precedence classification active at the
// given instant. Overlapping conditions never double-count a minute.
func classifyMinute(instant time.Time, intervals []interval) minuteClass {
	class := classOperational
	for _, candidate := range intervals {
		if instant.Before(candidate.Start) || !instant.Before(candidate.End) {
			continue
		}
		if candidate.Class > class {
			class = candidate.Class
		}
	}
	return class
}

// percentage computes the uptime percentage with outage minutes as full
// downtime and degraded minutes weighted by the configured fraction,
// rounded to three decimals. Maintenance minutes are neutral.
func (a *Aggregator) percentage(totalMinutes, outage, degraded int) float64 {
	if totalMinutes == 0 {
		return 100.0
	}
	down := float64(outage) + a.degradedWeight*float64(degraded)
	value := 100.0 * (float64(totalMinutes) - down) / float64(totalMinutes)
	return math.Round(value*1000) / 1000
}

// dayStatus derives the worst status observed during the day.
func dayStatus(outage, degraded int) types.EntityStatus {
	switch {
	case outage > 0:
		return types.StatusMajorOutage
	case degraded > 0:
		return types.StatusDegraded
	default:
		return types.StatusOperational
	}
}

func clip(start, end, dayStart, dayEnd time.Time) (interval, bool) {
	if start.Before(dayStart) {
		start = dayStart
	}
	if end.After(dayEnd) {
		end = dayEnd
	}
	if !start.Before(end) {
		return interval{}, false
	}
	return interval{Start: start, End: end}, true
}
