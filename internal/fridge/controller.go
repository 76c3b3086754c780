package fridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Latch is the actuator the controller drives. Lock and Unlock must return
// without waiting for the mechanism; the result arrives later through
// Controller.HandleLatchCompletion.
type Latch interface {
	Lock() error
	Unlock() error
}

// Buzzer is the audible alarm output. Both calls are idempotent and must
// not block.
type Buzzer interface {
	Sound() error
	Silence() error
}

// Notifier receives every controller event. Notify is called on the
// controller loop and must not block.
type Notifier interface {
	Notify(Event)
}

// Logger defines the logging interface used by the Controller.
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

// Options configures a Controller.
type Options struct {
	Thresholds Thresholds
	Latch      Latch
	Buzzer     Buzzer

	// Notifier may be nil.
	Notifier Notifier
	Logger   Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller owns the lock and alarm state of one fridge.
//
// All state lives on a single loop goroutine started by Run. Sensor ticks,
// API requests and latch callbacks are posted to the loop as closures, so
// every operation observes and leaves a consistent composite state.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Controller struct {
	thresholds Thresholds
	latch      Latch
	buzzer     Buzzer
	notifier   Notifier
	logger     Logger
	now        func() time.Time

	ops     chan func()
	done    chan struct{}
	running atomic.Bool

	// Loop-owned state. Never touched outside an op.
	lock          LockState
	confirmed     LockState
	pendingTarget LockState
	waiters       []chan Outcome
	lockFault     error
	alarm         AlarmState
	breach        Breach
	reading       SensorReading
	hasReading    bool
	sensorFault   error
	counters      Counters
}

// NewController creates a controller in its boot state: unlocked, idle,
// no reading yet.
func NewController(opts Options) (*Controller, error) {
	if opts.Latch == nil {
		return nil, errors.New("fridge: latch is required")
	}
	if opts.Buzzer == nil {
		return nil, errors.New("fridge: buzzer is required")
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("fridge: invalid thresholds: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		thresholds: opts.Thresholds,
		latch:      opts.Latch,
		buzzer:     opts.Buzzer,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		now:        opts.Now,
		ops:        make(chan func()),
		done:       make(chan struct{}),
		lock:       LockUnlocked,
		confirmed:  LockUnlocked,
		alarm:      AlarmIdle,
	}, nil
}

// Run processes operations until ctx is cancelled. It may be called once.
// Pending lock requests are resolved with ErrStopped on exit.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	c.logger.Info("controller started", "lock", c.lock, "alarm", c.alarm)

	for {
		select {
		case <-ctx.Done():
			c.resolveWaiters(Outcome{Target: c.pendingTarget, State: c.confirmed, Err: ErrStopped})
			c.logger.Info("controller stopped")
			return nil
		case op := <-c.ops:
			op()
		}
	}
}

// do runs fn on the loop and waits for it to finish. Once the loop has
// accepted fn it always runs to completion, so callers only give up while
// waiting for the loop to pick it up.
func (c *Controller) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	op := func() {
		fn()
		close(finished)
	}

	select {
	case c.ops <- op:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-finished
	return nil
}

// IngestReading feeds a fresh sample into the state machine and evaluates
// the alarm. Stale or out-of-order samples are discarded.
func (c *Controller) IngestReading(ctx context.Context, r SensorReading) error {
	return c.do(ctx, func() { c.ingest(r) })
}

// ReportSensorFault records a failed sample. The last good reading is kept
// and marked stale; the alarm is not re-evaluated.
func (c *Controller) ReportSensorFault(ctx context.Context, cause error) error {
	return c.do(ctx, func() { c.sensorFailed(cause) })
}

// RequestLock asks the latch to lock. See RequestMove.
func (c *Controller) RequestLock(ctx context.Context) (<-chan Outcome, error) {
	return c.RequestMove(ctx, LockLocked)
}

// RequestUnlock asks the latch to unlock. See RequestMove.
func (c *Controller) RequestUnlock(ctx context.Context) (<-chan Outcome, error) {
	return c.RequestMove(ctx, LockUnlocked)
}

// RequestMove drives the latch toward target.
//
// Returns:
//   - <-chan Outcome: receives exactly one Outcome once the move resolves.
//     If the latch is already confirmed at target the Outcome is ready
//     immediately with NoOp set.
//   - error: ErrBusy while another move is in flight (state unchanged),
//     ErrInvalidTarget, ErrStopped, or the context error.
func (c *Controller) RequestMove(ctx context.Context, target LockState) (<-chan Outcome, error) {
	if !target.IsPosition() {
		return nil, ErrInvalidTarget
	}

	var (
		ch     <-chan Outcome
		reqErr error
	)
	if err := c.do(ctx, func() { ch, reqErr = c.move(target) }); err != nil {
		return nil, err
	}
	return ch, reqErr
}

// RequestSilence silences a sounding alarm. It is a no-op in any other
// state. Returns the alarm state after the request.
func (c *Controller) RequestSilence(ctx context.Context) (AlarmState, error) {
	var state AlarmState
	err := c.do(ctx, func() { state = c.silence() })
	return state, err
}

// HandleLatchCompletion is the actuator callback for a finished command.
// It must not be called from inside Latch.Lock or Latch.Unlock.
func (c *Controller) HandleLatchCompletion(ctx context.Context, comp LatchCompletion) error {
	return c.do(ctx, func() { c.latchCompleted(comp) })
}

// HandleLatchFeedback records a position reported by the mechanism outside
// any command, such as the answer to the start-up query or a manual move.
func (c *Controller) HandleLatchFeedback(ctx context.Context, pos LockState) error {
	if !pos.IsPosition() {
		return ErrInvalidTarget
	}
	return c.do(ctx, func() { c.latchReported(pos) })
}

// Snapshot returns a copy of the current composite state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() { snap = c.snapshot() })
	return snap, err
}

// Counters returns cumulative statistics.
func (c *Controller) Counters(ctx context.Context) (Counters, error) {
	var out Counters
	err := c.do(ctx, func() { out = c.counters })
	return out, err
}

// Thresholds returns the configured alarm envelope.
func (c *Controller) Thresholds() Thresholds {
	return c.thresholds
}

// --- loop-side operations -------------------------------------------------

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		Reading:     c.reading,
		HasReading:  c.hasReading,
		Lock:        c.lock,
		Alarm:       c.alarm,
		Breach:      c.breach,
		SensorFault: c.sensorFault != nil,
		LockFault:   c.lockFault != nil,
		TakenAt:     c.now(),
	}
	if c.lockFault != nil {
		snap.LockFaultReason = c.lockFault.Error()
	}
	return snap
}

func (c *Controller) emit(kind EventKind, detail string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		At:       c.now(),
		Detail:   detail,
		Snapshot: c.snapshot(),
	})
}

func (c *Controller) ingest(r SensorReading) {
	if r.Stale {
		c.counters.ReadingsDropped++
		return
	}
	if c.hasReading && r.At.Before(c.reading.At) {
		c.counters.ReadingsDropped++
		c.logger.Debug("discarding out-of-order reading", "at", r.At, "latest", c.reading.At)
		return
	}

	c.reading = r
	c.hasReading = true
	c.sensorFault = nil
	c.counters.ReadingsIngested++

	c.breach = c.thresholds.Evaluate(r, c.breach)
	c.evaluateAlarm()
	c.emit(EventReading, c.breach.String())
}

func (c *Controller) evaluateAlarm() {
	prev := c.alarm

	switch {
	case !c.breach.None() && c.alarm != AlarmSounding:
		// Idle trips; Silenced re-arms while the breach persists.
		c.alarm = AlarmSounding
		c.counters.AlarmActivations++
		if err := c.buzzer.Sound(); err != nil {
			c.logger.Error("buzzer sound failed", "error", err)
		}
	case c.breach.None() && c.alarm != AlarmIdle:
		c.alarm = AlarmIdle
		if err := c.buzzer.Silence(); err != nil {
			c.logger.Error("buzzer silence failed", "error", err)
		}
	}

	if c.alarm != prev {
		c.logger.Info("alarm state changed", "from", prev, "to", c.alarm, "breach", c.breach.String())
		c.emit(EventAlarmChanged, fmt.Sprintf("%s->%s", prev, c.alarm))
	}
}

func (c *Controller) sensorFailed(cause error) {
	if cause == nil {
		cause = ErrSensorFault
	}
	c.counters.SensorFaults++

	first := c.sensorFault == nil
	c.sensorFault = cause
	if c.hasReading {
		c.reading = c.reading.AsStale()
	}

	if first {
		c.logger.Warn("sensor fault, holding last reading", "error", cause)
	}
	c.emit(EventSensorFault, cause.Error())
}

func (c *Controller) silence() AlarmState {
	c.counters.SilenceRequests++
	if c.alarm != AlarmSounding {
		return c.alarm
	}

	c.alarm = AlarmSilenced
	if err := c.buzzer.Silence(); err != nil {
		c.logger.Error("buzzer silence failed", "error", err)
	}
	c.logger.Info("alarm silenced by operator", "breach", c.breach.String())
	c.emit(EventAlarmChanged, fmt.Sprintf("%s->%s", AlarmSounding, AlarmSilenced))
	return c.alarm
}

func (c *Controller) move(target LockState) (<-chan Outcome, error) {
	c.counters.LockRequests++

	if c.lock == LockTransitioning {
		c.counters.BusyRejections++
		return nil, ErrBusy
	}

	ch := make(chan Outcome, 1)

	// After a failed move the last confirmed position is unverified, so
	// the command is driven even when it names that position.
	if c.confirmed == target && c.lockFault == nil {
		ch <- Outcome{Target: target, State: target, NoOp: true}
		return ch, nil
	}

	var err error
	if target == LockLocked {
		err = c.latch.Lock()
	} else {
		err = c.latch.Unlock()
	}
	if err != nil {
		if errors.Is(err, ErrBusy) {
			c.counters.BusyRejections++
			return nil, ErrBusy
		}
		// The command never left; the confirmed position still stands.
		c.counters.ActuatorFaults++
		c.lockFault = fmt.Errorf("%w: %w", ErrActuatorFault, err)
		c.logger.Error("latch command failed", "target", target, "error", err)
		c.emit(EventLockFault, c.lockFault.Error())
		ch <- Outcome{Target: target, State: c.confirmed, Err: c.lockFault}
		return ch, nil
	}

	c.lock = LockTransitioning
	c.pendingTarget = target
	c.waiters = append(c.waiters, ch)
	c.logger.Info("latch moving", "from", c.confirmed, "to", target)
	c.emit(EventLockTransition, fmt.Sprintf("%s->%s", c.confirmed, target))
	return ch, nil
}

func (c *Controller) latchCompleted(comp LatchCompletion) {
	if c.lock != LockTransitioning || comp.Target != c.pendingTarget {
		c.logger.Debug("ignoring stale latch completion", "target", comp.Target, "command_id", comp.CommandID)
		return
	}

	if comp.Err == nil {
		c.confirmed = comp.Target
		c.lock = comp.Target
		c.lockFault = nil
		c.logger.Info("latch confirmed", "position", c.lock, "command_id", comp.CommandID)
		c.emit(EventLockConfirmed, string(c.lock))
		c.resolveWaiters(Outcome{Target: comp.Target, State: c.lock})
		return
	}

	// Roll back to the last verified position, or to what the mechanism
	// reported if it reported anything.
	if comp.Position.IsPosition() {
		c.confirmed = comp.Position
	}
	c.lock = c.confirmed
	c.counters.ActuatorFaults++

	err := comp.Err
	if !errors.Is(err, ErrActuatorFault) {
		err = fmt.Errorf("%w: %w", ErrActuatorFault, err)
	}
	c.lockFault = err

	c.logger.Error("latch move failed", "target", comp.Target, "position", c.lock, "command_id", comp.CommandID, "error", err)
	c.emit(EventLockFault, err.Error())
	c.resolveWaiters(Outcome{Target: comp.Target, State: c.lock, Err: err})
}

func (c *Controller) latchReported(pos LockState) {
	if c.lock == LockTransitioning {
		// The actuator resolves in-flight commands itself.
		return
	}
	if pos == c.confirmed {
		return
	}

	c.logger.Info("latch position reported", "from", c.confirmed, "to", pos)
	c.confirmed = pos
	c.lock = pos
	c.emit(EventLockConfirmed, string(pos))
}

func (c *Controller) resolveWaiters(o Outcome) {
	for _, w := range c.waiters {
		w <- o
	}
	c.waiters = nil
	c.pendingTarget = ""
}
