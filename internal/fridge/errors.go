package fridge

import "errors"

// Domain errors for the fridge package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, fridge.ErrBusy) {
//	    // a lock/unlock is already in flight
//	}
var (
	// ErrSensorFault is returned when the sensor does not answer in time
	// or answers with an implausible value.
	ErrSensorFault = errors.New("fridge: sensor fault")

	// ErrActuatorFault is returned when the latch jams, fails to confirm,
	// or cannot be commanded.
	ErrActuatorFault = errors.New("fridge: actuator fault")

	// ErrConfirmTimeout is returned when the latch gave no feedback within
	// the confirmation window. It is always wrapped together with ErrActuatorFault.
	ErrConfirmTimeout = errors.New("fridge: latch confirmation timed out")

	// ErrBusy is returned when a lock/unlock request arrives while another
	// is still in flight.
	ErrBusy = errors.New("fridge: latch busy")

	// ErrStopped is returned when the controller loop is not running.
	ErrStopped = errors.New("fridge: controller stopped")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("fridge: controller already running")

	// ErrInvalidTarget is returned for a lock request that names no end position.
	ErrInvalidTarget = errors.New("fridge: invalid latch target")
)
