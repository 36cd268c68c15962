package checkpoint

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule runs retention cleanup every six hours.
const DefaultPruneSchedule = "@every 6h"

// Pruner periodically drops checkpoints nobody resumed within the retention window.
type Pruner struct {
	store     *FileStore
	retention time.Duration
	runner    *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner creates a pruner. A non-positive retention disables pruning.
func NewPruner(store *FileStore, retention time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:     store,
		retention: retention,
		runner:    cron.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs one pass immediately and then on schedule.
func (p *Pruner) Start(schedule string) error {
	if p.retention <= 0 {
		return nil
	}
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}

	if _, err := p.runner.AddFunc(schedule, func() { p.RunOnce() }); err != nil {
		return fmt.Errorf("schedule checkpoint pruning %q: %w", schedule, err)
	}
	p.RunOnce()
	p.runner.Start()
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (p *Pruner) Stop() {
	<-p.runner.Stop().Done()
}

// RunOnce prunes snapshots older than the retention window.
func (p *Pruner) RunOnce() int {
	if p.retention <= 0 {
		return 0
	}

	cutoff := p.now().Add(-p.retention)
	removed, err := p.store.Prune(cutoff)
	if err != nil {
		p.logger.Warn("checkpoint prune incomplete", "dir", p.store.Dir(), "removed", removed, "error", err)
		return removed
	}
	if removed > 0 {
		p.logger.Info("pruned stale checkpoints", "dir", p.store.Dir(), "removed", removed)
	}
	return removed
}
