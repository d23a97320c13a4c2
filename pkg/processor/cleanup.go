package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// DefaultRetention is how long processed events are kept before the retention
// task purges them.
const DefaultRetention = 30 * 24 * time.Hour

// Cleanup purges processed trigger events older than the retention window on
// a daily schedule. Pending events are never purged, regardless of age.
type Cleanup struct {
	events    persistence.EventRepository
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewCleanup creates the retention task.
func NewCleanup(events persistence.EventRepository, retention time.Duration, logger *slog.Logger) *Cleanup {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Cleanup{
		events:    events,
		retention: retention,
		schedule:  "@daily",
		logger:    logger.With("module", "event_cleanup"),
	}
}

// Start schedules the daily purge.
func (c *Cleanup) Start(ctx context.Context) error {
	c.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := c.cron.AddFunc(c.schedule, func() {
		c.Run(ctx)
	})
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Starting retention task", "schedule", c.schedule, "retention", c.retention)
	c.cron.Start()

	return nil
}

// Stop halts the schedule and waits for an in-progress purge to finish.
func (c *Cleanup) Stop() {
	if c.cron == nil {
		return
	}

	<-c.cron.Stop().Done()
}

// Run performs one purge pass.
func (c *Cleanup) Run(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.retention)

	deleted, err := c.events.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to purge processed events", "error", err)

		return
	}

	if deleted > 0 {
		c.logger.InfoContext(ctx, "Purged processed events", "deleted", deleted, "cutoff", cutoff)
	}
}
