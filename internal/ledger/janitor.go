package ledger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bowerhall/tourcam/internal/logger"
)

// Janitor prunes old ledger entries on a cron schedule.
type Janitor struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
}

func NewJanitor(store *Store, schedule string, retention time.Duration) (*Janitor, error) {
	j := &Janitor{
		store:     store,
		retention: retention,
		cron:      cron.New(),
	}

	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
	logger.Debug("ledger janitor started", "retention", j.retention)
}

// Stop halts the schedule and waits for a running prune to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce prunes everything older than the retention window.
func (j *Janitor) RunOnce() (int64, error) {
	return j.store.Prune(time.Now().Add(-j.retention))
}

func (j *Janitor) run() {
	n, err := j.RunOnce()
	if err != nil {
		logger.Error("ledger prune failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("ledger pruned", "removed", n, "retention", j.retention)
	}
}
