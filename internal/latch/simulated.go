package latch

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// SimMode selects how the simulated latch answers commands.
type SimMode int

// Simulation modes.
const (
	// SimNormal moves to the target after the travel delay.
	SimNormal SimMode = iota

	// SimJam reports a jam after the travel delay without moving.
	SimJam

	// SimSilent never answers commands, forcing a confirmation timeout.
	SimSilent
)

// SimulatedDriver is an in-process latch for bench use and tests.
type SimulatedDriver struct {
	travel time.Duration

	mu       sync.Mutex
	position fridge.LockState
	mode     SimMode
	fn       func(Feedback) error
	commands []Command
}

// NewSimulatedDriver creates a simulated latch resting at initial.
func NewSimulatedDriver(travel time.Duration, initial fridge.LockState) *SimulatedDriver {
	if !initial.IsPosition() {
		initial = fridge.LockUnlocked
	}
	return &SimulatedDriver{travel: travel, position: initial}
}

// SetMode changes how subsequent commands are answered.
func (d *SimulatedDriver) SetMode(m SimMode) {
	d.mu.Lock()
	d.mode = m
	d.mu.Unlock()
}

// Position returns where the virtual latch rests.
func (d *SimulatedDriver) Position() fridge.LockState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// Commands returns a copy of every command received.
func (d *SimulatedDriver) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// Listen records the feedback handler.
func (d *SimulatedDriver) Listen(_ context.Context, fn func(Feedback) error) error {
	d.mu.Lock()
	d.fn = fn
	d.mu.Unlock()
	return nil
}

// Move simulates someone moving the latch by hand.
func (d *SimulatedDriver) Move(pos fridge.LockState) {
	d.mu.Lock()
	d.position = pos
	fn := d.fn
	d.mu.Unlock()
	if fn != nil {
		_ = fn(Feedback{Position: pos, Status: FeedbackOK, Timestamp: time.Now().UTC()}) //nolint:errcheck // Simulated feedback is always valid
	}
}

// Drive answers cmd according to the current mode.
func (d *SimulatedDriver) Drive(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	fn := d.fn
	mode := d.mode
	start := d.position
	d.commands = append(d.commands, cmd)
	d.mu.Unlock()

	if fn == nil {
		return ErrNotListening
	}

	if cmd.Action == ActionQuery {
		go fn(Feedback{CommandID: cmd.ID, Position: start, Status: FeedbackOK, Timestamp: time.Now().UTC()}) //nolint:errcheck // Simulated feedback is always valid
		return nil
	}

	switch mode {
	case SimSilent:
	case SimJam:
		time.AfterFunc(d.travel, func() {
			_ = fn(Feedback{CommandID: cmd.ID, Position: start, Status: FeedbackJammed, Error: "simulated jam", Timestamp: time.Now().UTC()}) //nolint:errcheck // Simulated feedback is always valid
		})
	default:
		target := cmd.Action.Target()
		time.AfterFunc(d.travel, func() {
			d.mu.Lock()
			d.position = target
			d.mu.Unlock()
			_ = fn(Feedback{CommandID: cmd.ID, Position: target, Status: FeedbackOK, Timestamp: time.Now().UTC()}) //nolint:errcheck // Simulated feedback is always valid
		})
	}
	return nil
}
