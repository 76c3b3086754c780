package buzzer

import (
	"context"
	"sync"
)

// SimulatedDriver is an in-process buzzer for bench use and tests.
type SimulatedDriver struct {
	mu     sync.Mutex
	on     bool
	writes int
	err    error
}

// NewSimulatedDriver creates a silent simulated buzzer.
func NewSimulatedDriver() *SimulatedDriver {
	return &SimulatedDriver{}
}

// Set switches the simulated buzzer, or fails with the injected error.
func (d *SimulatedDriver) Set(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.on = on
	d.writes++
	return nil
}

// SetError makes subsequent writes fail with err (nil clears it).
func (d *SimulatedDriver) SetError(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// On reports the simulated buzzer state.
func (d *SimulatedDriver) On() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

// Writes returns the number of successful writes.
func (d *SimulatedDriver) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}
