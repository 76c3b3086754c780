package history

import (
	"context"
	"time"
)

// DefaultPruneInterval is how often the Pruner runs.
const DefaultPruneInterval = 24 * time.Hour

// Logger defines the logging interface used by the Pruner.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pruner deletes events older than the retention period, once at start
// and then every interval.
type Pruner struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	logger    Logger
}

// NewPruner creates a pruner. A zero interval means DefaultPruneInterval.
func NewPruner(store *Store, retention, interval time.Duration, logger Logger) *Pruner {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pruner{store: store, retention: retention, interval: interval, logger: logger}
}

// Run prunes until ctx is done. A non-positive retention disables pruning.
func (p *Pruner) Run(ctx context.Context) error {
	if p.retention <= 0 {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		n, err := p.store.Prune(ctx, p.retention)
		switch {
		case err != nil && ctx.Err() == nil:
			p.logger.Error("event log prune failed", "error", err)
		case n > 0:
			p.logger.Info("event log pruned", "deleted", n, "retention", p.retention)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
