package uptime

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"status-probe-engine/pkg/types"
)

// midnightDelay keeps the daily run clear of clock skew and of incidents
// resolved in the final seconds of the day.
const midnightDelay = 5 * time.Minute

// DailyJob triggers aggregation for the previous day shortly after each
// local midnight.
type DailyJob struct {
	aggregator *Aggregator
	log        *logrus.Logger
}

// NewDailyJob creates a daily aggregation job.
func NewDailyJob(aggregator *Aggregator, log *logrus.Logger) *DailyJob {
	return &DailyJob{aggregator: aggregator, log: log}
}

// Run blocks until the context is canceled, aggregating yesterday's uptime
// once per day. Failures are logged and retried at the next midnight.
func (j *DailyJob) Run(ctx context.Context) {
	for {
		wait := j.untilNextRun()
		j.log.WithField("wait", wait.String()).Info("Next daily uptime aggregation scheduled")

		select {
		case <-ctx.Done():
			j.log.Warn("Context canceled, stopping daily uptime job")
			return
		case <-time.After(wait):
		}

		date, processed, err := j.aggregator.RunForYesterday()
		if err != nil {
			j.log.Errorf("Daily uptime aggregation finished with errors: %v", err)
		}
		j.log.WithFields(logrus.Fields{
			"date":     types.FormatRecordDate(date),
			"entities": processed,
		}).Info("Daily uptime aggregation completed")
	}
}

func (j *DailyJob) untilNextRun() time.Duration {
	now := j.aggregator.now().In(j.aggregator.location)
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, j.aggregator.location).AddDate(0, 0, 1)
	return nextMidnight.Add(midnightDelay).Sub(now)
}
