package buzzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// DefaultCommandTimeout bounds a single driver write.
const DefaultCommandTimeout = 500 * time.Millisecond

// ErrNoDriver is returned by NewOutput without a driver.
var ErrNoDriver = errors.New("buzzer: driver is required")

// Driver switches the physical buzzer.
type Driver interface {
	Set(ctx context.Context, on bool) error
}

// Logger defines the logging interface used by Output.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures an Output.
type Options struct {
	Driver Driver

	// CommandTimeout defaults to DefaultCommandTimeout.
	CommandTimeout time.Duration

	Logger Logger
}

// Output is the idempotent alarm output.
//
// Thread Safety: all methods are safe for concurrent use.
type Output struct {
	driver  Driver
	timeout time.Duration
	logger  Logger

	mu      sync.Mutex
	desired bool
	applied bool
	known   bool // applied reflects the hardware

	wake     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	failures atomic.Uint64
}

// NewOutput creates an output. Call Start to begin applying state.
func NewOutput(opts Options) (*Output, error) {
	if opts.Driver == nil {
		return nil, ErrNoDriver
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Output{
		driver:  opts.Driver,
		timeout: opts.CommandTimeout,
		logger:  opts.Logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the worker. The buzzer is driven off once at start so
// the hardware matches the controller's boot state.
func (o *Output) Start(ctx context.Context) {
	o.wg.Add(1)
	go o.run(ctx)
	o.poke()
}

// Sound requests the buzzer on. It never blocks.
func (o *Output) Sound() error {
	o.request(true)
	return nil
}

// Silence requests the buzzer off. It never blocks.
func (o *Output) Silence() error {
	o.request(false)
	return nil
}

// Sounding reports whether the hardware was last confirmed on.
func (o *Output) Sounding() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.known && o.applied
}

// Failures returns the number of failed driver writes.
func (o *Output) Failures() uint64 {
	return o.failures.Load()
}

// Stop ends the worker and switches the buzzer off.
func (o *Output) Stop() {
	o.stopOnce.Do(func() {
		close(o.done)
		o.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		if err := o.driver.Set(ctx, false); err != nil {
			o.logger.Warn("buzzer off at shutdown failed", "error", err)
		}
	})
}

func (o *Output) request(on bool) {
	o.mu.Lock()
	o.desired = on
	o.mu.Unlock()
	o.poke()
}

func (o *Output) poke() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Output) run(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case <-o.wake:
			o.apply(ctx)
		}
	}
}

func (o *Output) apply(ctx context.Context) {
	o.mu.Lock()
	want := o.desired
	if o.known && o.applied == want {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	setCtx, cancel := context.WithTimeout(ctx, o.timeout)
	err := o.driver.Set(setCtx, want)
	cancel()

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		// Unknown hardware state: the next request is written through.
		o.known = false
		o.failures.Add(1)
		o.logger.Error("buzzer write failed", "on", want, "error", fmt.Errorf("buzzer: %w", err))
		return
	}
	o.applied = want
	o.known = true
	o.logger.Debug("buzzer set", "on", want)
}

var _ fridge.Buzzer = (*Output)(nil)
