// Package jobs runs periodic background work on a robfig/cron scheduler.
package jobs

import (
	"context"
	"fmt"
	"time"

	"estoque-backend/internal/logging"
	"estoque-backend/internal/stockcache"

	"github.com/robfig/cron/v3"
)

const defaultTimeout = 2 * time.Minute

// Job holds a schedule and the function it runs.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// StockRefresh forces a warehouse fetch on schedule. A failed fetch leaves the
// previous snapshot published, so the error is only logged.
func StockRefresh(cache *stockcache.Cache, schedule string) Job {
	return Job{
		Name:     "stock-refresh",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			snap, err := cache.Refresh(ctx, true)
			if err != nil {
				return err
			}
			logging.Module("jobs").WithFields(map[string]any{
				"items": len(snap.Items),
				"stale": snap.Stale,
			}).Debug("scheduled stock refresh done")
			return nil
		},
	}
}

func (j Job) exec() {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := j.Run(ctx); err != nil {
		logging.LogError("jobs", j.Name, "scheduled run", nil, err)
	}
}

// Start registers every job and starts the scheduler. Jobs with an empty
// schedule are skipped.
func Start(jobs ...Job) (*cron.Cron, error) {
	c := cron.New()
	for _, j := range jobs {
		if j.Schedule == "" {
			logging.Module("jobs").WithField("job", j.Name).Info("no schedule, job disabled")
			continue
		}
		if _, err := c.AddFunc(j.Schedule, j.exec); err != nil {
			return nil, fmt.Errorf("register job %s: %w", j.Name, err)
		}
	}
	c.Start()
	return c, nil
}
