package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// DefaultQueueSize is the event buffer used when none is configured.
const DefaultQueueSize = 256

// drainTimeout bounds delivery of queued events at shutdown.
const drainTimeout = 2 * time.Second

// Sink consumes controller events.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev fridge.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, ev fridge.Event) error
}

// Name returns the sink name used in logs.
func (s SinkFunc) Name() string { return s.SinkName }

// Handle calls Fn.
func (s SinkFunc) Handle(ctx context.Context, ev fridge.Event) error { return s.Fn(ctx, ev) }

// Logger defines the logging interface used by Fanout.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Stats are cumulative fan-out counters.
type Stats struct {
	Delivered  uint64 `json:"delivered"`
	Dropped    uint64 `json:"dropped"`
	SinkErrors uint64 `json:"sink_errors"`
}

// Fanout queues events and delivers them to sinks on one worker.
type Fanout struct {
	queue  chan fridge.Event
	sinks  []Sink
	logger Logger

	delivered  atomic.Uint64
	dropped    atomic.Uint64
	sinkErrors atomic.Uint64
}

// NewFanout creates a fan-out with the given queue size.
func NewFanout(queueSize int, logger Logger, sinks ...Sink) *Fanout {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Fanout{
		queue:  make(chan fridge.Event, queueSize),
		sinks:  sinks,
		logger: logger,
	}
}

// Notify enqueues ev without blocking.
func (f *Fanout) Notify(ev fridge.Event) {
	select {
	case f.queue <- ev:
	default:
		if f.dropped.Add(1)%100 == 1 {
			f.logger.Warn("telemetry queue full, dropping events", "kind", ev.Kind, "dropped", f.dropped.Load())
		}
	}
}

// Run delivers events until ctx is done, then flushes what is queued.
func (f *Fanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return nil
		case ev := <-f.queue:
			f.deliver(ctx, ev)
		}
	}
}

func (f *Fanout) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-f.queue:
			f.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, ev fridge.Event) {
	for _, s := range f.sinks {
		if err := s.Handle(ctx, ev); err != nil {
			f.sinkErrors.Add(1)
			f.logger.Warn("telemetry sink failed", "sink", s.Name(), "kind", ev.Kind, "error", err)
		}
	}
	f.delivered.Add(1)
}

// Stats returns the current counters.
func (f *Fanout) Stats() Stats {
	return Stats{
		Delivered:  f.delivered.Load(),
		Dropped:    f.dropped.Load(),
		SinkErrors: f.sinkErrors.Load(),
	}
}

var _ fridge.Notifier = (*Fanout)(nil)
