package latch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// DefaultConfirmTimeout bounds how long a command may wait for feedback.
const DefaultConfirmTimeout = time.Second

// Driver moves the physical latch.
type Driver interface {
	// Drive hands a command to the mechanism. It returns once the command
	// is sent, not when the latch has moved.
	Drive(ctx context.Context, cmd Command) error

	// Listen registers the feedback handler. It is called once, before
	// any Drive.
	Listen(ctx context.Context, fn func(Feedback) error) error
}

// Logger defines the logging interface used by the Actuator.
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

// Options configures an Actuator.
type Options struct {
	Driver Driver

	// ConfirmTimeout defaults to DefaultConfirmTimeout.
	ConfirmTimeout time.Duration

	Logger Logger
}

// Actuator tracks one pending latch command and resolves it from
// feedback or timeout. It implements fridge.Latch.
//
// Thread Safety: all methods are safe for concurrent use. Callbacks are
// never invoked while internal locks are held, and never from inside
// Lock or Unlock.
type Actuator struct {
	driver  Driver
	timeout time.Duration
	logger  Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	position   fridge.LockState
	pending    *pendingCommand
	closed     bool
	onComplete func(fridge.LatchCompletion)
	onPosition func(fridge.LockState)
}

type pendingCommand struct {
	cmd   Command
	timer *time.Timer
}

// NewActuator creates an actuator. Call Start before issuing commands.
func NewActuator(opts Options) (*Actuator, error) {
	if opts.Driver == nil {
		return nil, fmt.Errorf("latch: driver is required")
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Actuator{
		driver:  opts.Driver,
		timeout: opts.ConfirmTimeout,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// SetOnComplete registers the callback that receives every command result.
// In production this forwards to fridge.Controller.HandleLatchCompletion.
func (a *Actuator) SetOnComplete(fn func(fridge.LatchCompletion)) {
	a.mu.Lock()
	a.onComplete = fn
	a.mu.Unlock()
}

// SetOnPosition registers the callback for unsolicited position reports,
// i.e. feedback that does not resolve a pending command.
func (a *Actuator) SetOnPosition(fn func(fridge.LockState)) {
	a.mu.Lock()
	a.onPosition = fn
	a.mu.Unlock()
}

// Start attaches the feedback listener and asks the mechanism for its
// current position.
func (a *Actuator) Start(ctx context.Context) error {
	if err := a.driver.Listen(ctx, a.HandleFeedback); err != nil {
		return fmt.Errorf("latch: listen for feedback: %w", err)
	}

	query := Command{ID: uuid.NewString(), Action: ActionQuery, Timestamp: time.Now().UTC()}
	if err := a.driver.Drive(ctx, query); err != nil {
		// Not fatal: the first command or manual move will report a position.
		a.logger.Warn("latch position query failed", "error", err)
	}
	return nil
}

// Lock drives the latch to the locked position.
func (a *Actuator) Lock() error {
	return a.issue(ActionLock)
}

// Unlock drives the latch to the unlocked position.
func (a *Actuator) Unlock() error {
	return a.issue(ActionUnlock)
}

// Position returns the last position reported by the mechanism, or ""
// if none has been reported yet.
func (a *Actuator) Position() fridge.LockState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Pending reports whether a command is waiting for confirmation.
func (a *Actuator) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

func (a *Actuator) issue(action Action) error {
	target := action.Target()
	cmd := Command{ID: uuid.NewString(), Action: action, Timestamp: time.Now().UTC()}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.pending != nil {
		a.mu.Unlock()
		return ErrBusy
	}

	if a.position == target {
		// Already there. Confirm without moving the mechanism.
		a.wg.Add(1)
		a.mu.Unlock()
		go func() {
			defer a.wg.Done()
			a.deliver(fridge.LatchCompletion{CommandID: cmd.ID, Target: target, Position: target})
		}()
		return nil
	}

	p := &pendingCommand{cmd: cmd}
	p.timer = time.AfterFunc(a.timeout, func() { a.expire(cmd.ID) })
	a.pending = p
	a.wg.Add(1)
	a.mu.Unlock()

	a.logger.Debug("latch command issued", "command_id", cmd.ID, "action", action)
	go a.send(cmd)
	return nil
}

func (a *Actuator) send(cmd Command) {
	defer a.wg.Done()

	ctx, cancel := context.WithTimeout(a.ctx, a.timeout)
	defer cancel()

	if err := a.driver.Drive(ctx, cmd); err != nil {
		a.resolve(cmd.ID, "", fmt.Errorf("%w: drive %s: %w", fridge.ErrActuatorFault, cmd.Action, err))
	}
}

func (a *Actuator) expire(id string) {
	err := fmt.Errorf("%w: %w", fridge.ErrActuatorFault, fridge.ErrConfirmTimeout)
	if a.resolve(id, "", err) {
		a.logger.Warn("latch confirmation timed out", "command_id", id, "timeout", a.timeout)
	}
}

// HandleFeedback processes one feedback report from the mechanism.
func (a *Actuator) HandleFeedback(fb Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if fb.Position != "" {
		a.position = fb.Position
	}
	p := a.pending
	onPosition := a.onPosition
	a.mu.Unlock()

	if p != nil {
		a.resolveFromFeedback(p, fb)
		return nil
	}

	if fb.Position.IsPosition() && onPosition != nil {
		onPosition(fb.Position)
	}
	return nil
}

func (a *Actuator) resolveFromFeedback(p *pendingCommand, fb Feedback) {
	id := p.cmd.ID
	target := p.cmd.Action.Target()
	matches := fb.CommandID == id
	anonymous := fb.CommandID == ""

	switch {
	case !matches && !anonymous:
		a.logger.Debug("ignoring feedback for another command", "command_id", fb.CommandID, "pending", id)
	case fb.jammed():
		a.resolve(id, fb.Position, fmt.Errorf("%w: %w: %s", fridge.ErrActuatorFault, ErrJammed, fb.Error))
	case fb.Position == target:
		a.resolve(id, target, nil)
	case matches:
		a.resolve(id, fb.Position, fmt.Errorf("%w: %w: %s", fridge.ErrActuatorFault, ErrWrongPosition, fb.Position))
	default:
		// Anonymous report of the start position while travelling.
	}
}

// resolve completes the pending command with the given id. It reports
// false if that command is no longer pending.
func (a *Actuator) resolve(id string, pos fridge.LockState, err error) bool {
	a.mu.Lock()
	p := a.pending
	if p == nil || p.cmd.ID != id {
		a.mu.Unlock()
		return false
	}
	p.timer.Stop()
	a.pending = nil
	if err != nil && pos == "" {
		// The mechanism may have stopped anywhere.
		a.position = ""
	}
	a.mu.Unlock()

	comp := fridge.LatchCompletion{
		CommandID: id,
		Target:    p.cmd.Action.Target(),
		Position:  pos,
		Err:       err,
	}
	if err != nil {
		a.logger.Error("latch command failed", "command_id", id, "target", comp.Target, "position", pos, "error", err)
	} else {
		a.logger.Info("latch command confirmed", "command_id", id, "position", pos)
	}
	a.deliver(comp)
	return true
}

func (a *Actuator) deliver(comp fridge.LatchCompletion) {
	a.mu.Lock()
	fn := a.onComplete
	a.mu.Unlock()
	if fn != nil {
		fn(comp)
	}
}

// Close abandons any pending command and waits for in-flight sends.
// No completion is delivered for an abandoned command.
func (a *Actuator) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	if a.pending != nil {
		a.pending.timer.Stop()
		a.pending = nil
	}
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
	return nil
}

var _ fridge.Latch = (*Actuator)(nil)
