package latch

import (
	"errors"
	"fmt"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// Domain errors for the latch package.
var (
	// ErrBusy is returned when a command is issued while another is still
	// waiting for confirmation. It matches fridge.ErrBusy.
	ErrBusy = fmt.Errorf("latch: command pending: %w", fridge.ErrBusy)

	// ErrJammed is reported when the mechanism signals a jam.
	ErrJammed = errors.New("latch: mechanism jammed")

	// ErrWrongPosition is reported when the mechanism confirms a command
	// at a position other than the one commanded.
	ErrWrongPosition = errors.New("latch: mechanism stopped at wrong position")

	// ErrInvalidFeedback is returned for malformed feedback messages.
	ErrInvalidFeedback = errors.New("latch: invalid feedback")

	// ErrNotListening is returned when a driver is used before Listen.
	ErrNotListening = errors.New("latch: driver has no feedback listener")

	// ErrClosed is returned after the actuator has been closed.
	ErrClosed = errors.New("latch: actuator closed")
)
