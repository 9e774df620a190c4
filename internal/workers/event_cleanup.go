package workers

import (
	"context"
	"time"

	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/robfig/cron/v3"
)

// ExpiredEventPurger deletes processed-event rows past their retention
// window.
type ExpiredEventPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// EventCleanupWorker periodically purges expired processed events so the
// idempotency table does not grow without bound.
type EventCleanupWorker struct {
	purger   ExpiredEventPurger
	schedule string
	cron     *cron.Cron
	logger   *logger.Logger
}

func NewEventCleanupWorker(purger ExpiredEventPurger, schedule string, log *logger.Logger) *EventCleanupWorker {
	return &EventCleanupWorker{
		purger:   purger,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log,
	}
}

// Start registers the cron entry and begins the schedule.
func (w *EventCleanupWorker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, w.run)
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("event cleanup worker started", "schedule", w.schedule)
	return nil
}

// Stop halts the schedule and waits for a running purge to finish.
func (w *EventCleanupWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("event cleanup worker stopped")
}

func (w *EventCleanupWorker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := w.purger.DeleteExpired(ctx)
	if err != nil {
		w.logger.Error("expired event purge failed", "error", err)
		return
	}
	if deleted > 0 {
		w.logger.Info("expired events purged", "count", deleted)
	}
}
