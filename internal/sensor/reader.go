package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// Sampling defaults.
const (
	DefaultPeriod  = 2 * time.Second
	DefaultTimeout = time.Second
)

// Physical limits of the sensor. Values outside are treated as faults.
const (
	MinTemperatureC = -40.0
	MaxTemperatureC = 80.0
	MinHumidityPct  = 0.0
	MaxHumidityPct  = 100.0
)

// ErrImplausible is wrapped into the fault for out-of-range values.
var ErrImplausible = errors.New("sensor: implausible value")

// Source reads one sample from the physical sensor.
type Source interface {
	Read(ctx context.Context) (fridge.SensorReading, error)
}

// Sink receives sampling results. *fridge.Controller implements it.
type Sink interface {
	IngestReading(ctx context.Context, r fridge.SensorReading) error
	ReportSensorFault(ctx context.Context, cause error) error
}

// Logger defines the logging interface used by the Reader.
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

// Options configures a Reader.
type Options struct {
	Source Source
	Sink   Sink

	// Period defaults to DefaultPeriod, Timeout to DefaultTimeout.
	Period  time.Duration
	Timeout time.Duration

	Logger Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Reader runs the periodic sampling loop.
type Reader struct {
	source  Source
	sink    Sink
	period  time.Duration
	timeout time.Duration
	logger  Logger
	now     func() time.Time

	mu      sync.RWMutex
	last    fridge.SensorReading
	hasLast bool

	samples atomic.Uint64
	faults  atomic.Uint64
}

// NewReader creates a reader. The timeout must be shorter than the period.
func NewReader(opts Options) (*Reader, error) {
	if opts.Source == nil {
		return nil, errors.New("sensor: source is required")
	}
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Timeout >= opts.Period {
		return nil, fmt.Errorf("sensor: timeout %s must be shorter than period %s", opts.Timeout, opts.Period)
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Reader{
		source:  opts.Source,
		sink:    opts.Sink,
		period:  opts.Period,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     opts.Now,
	}, nil
}

// Run samples immediately and then once per period until ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	r.logger.Info("sensor sampling started", "period", r.period, "timeout", r.timeout)
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sensor sampling stopped")
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reader) tick(ctx context.Context) {
	reading, err := r.Sample(ctx)
	if ctx.Err() != nil {
		return
	}
	if r.sink == nil {
		return
	}

	if err != nil {
		r.logger.Warn("sensor sample failed", "error", err, "last_good_at", reading.At)
		if perr := r.sink.ReportSensorFault(ctx, err); perr != nil {
			r.logger.Error("reporting sensor fault failed", "error", perr)
		}
		return
	}

	if perr := r.sink.IngestReading(ctx, reading); perr != nil {
		r.logger.Error("publishing reading failed", "error", perr)
	}
}

// Sample takes one bounded reading. The result is stamped with the local
// clock whatever time the source reported.
//
// Returns:
//   - fridge.SensorReading: the fresh reading, or on failure the last
//     known-good reading tagged Stale (zero if there never was one)
//   - error: nil, or an error wrapping fridge.ErrSensorFault
func (r *Reader) Sample(ctx context.Context) (fridge.SensorReading, error) {
	r.samples.Add(1)

	reading, err := r.read(ctx)
	if err == nil {
		err = Validate(reading)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.faults.Add(1)
		if !errors.Is(err, fridge.ErrSensorFault) {
			err = fmt.Errorf("%w: %w", fridge.ErrSensorFault, err)
		}
		return r.last.AsStale(), err
	}

	reading.At = r.now()
	reading.Stale = false
	r.last = reading
	r.hasLast = true
	return reading, nil
}

// read calls the source with the timeout applied, even if the source
// itself ignores its context.
func (r *Reader) read(ctx context.Context) (fridge.SensorReading, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		reading fridge.SensorReading
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		reading, err := r.source.Read(ctx)
		ch <- result{reading, err}
	}()

	select {
	case res := <-ch:
		return res.reading, res.err
	case <-ctx.Done():
		return fridge.SensorReading{}, fmt.Errorf("sensor did not respond within %s: %w", r.timeout, ctx.Err())
	}
}

// Latest returns the last good reading, if any.
func (r *Reader) Latest() (fridge.SensorReading, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.hasLast
}

// Stats returns the number of sample attempts and of faults.
func (r *Reader) Stats() (samples, faults uint64) {
	return r.samples.Load(), r.faults.Load()
}

// Validate rejects readings outside the sensor's physical range.
func Validate(r fridge.SensorReading) error {
	switch {
	case math.IsNaN(r.TemperatureC) || math.IsInf(r.TemperatureC, 0):
		return fmt.Errorf("%w: temperature %v", ErrImplausible, r.TemperatureC)
	case math.IsNaN(r.HumidityPct) || math.IsInf(r.HumidityPct, 0):
		return fmt.Errorf("%w: humidity %v", ErrImplausible, r.HumidityPct)
	case r.TemperatureC < MinTemperatureC || r.TemperatureC > MaxTemperatureC:
		return fmt.Errorf("%w: temperature %.1f outside [%.0f, %.0f]", ErrImplausible, r.TemperatureC, MinTemperatureC, MaxTemperatureC)
	case r.HumidityPct < MinHumidityPct || r.HumidityPct > MaxHumidityPct:
		return fmt.Errorf("%w: humidity %.1f outside [%.0f, %.0f]", ErrImplausible, r.HumidityPct, MinHumidityPct, MaxHumidityPct)
	}
	return nil
}
