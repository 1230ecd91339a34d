package retrieval

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"quiz-pipeline-service/internal/logger"
)

// Refresher re-runs ingestion on a fixed interval.
type Refresher struct {
	sched gocron.Scheduler
}

// StartRefresher schedules coord.Ingest every interval. Overlapping runs are
// rescheduled rather than stacked.
func StartRefresher(coord *Coordinator, interval time.Duration, log *logger.Logger) (*Refresher, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "Refresher")

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := coord.Ingest(ctx); err != nil {
				log.Warn("scheduled ingestion failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	log.Info("refresher started", "interval", interval.String())
	return &Refresher{sched: sched}, nil
}

func (r *Refresher) Stop() error {
	return r.sched.Shutdown()
}
