package latch

import (
	"fmt"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// Action is a latch command verb.
type Action string

// Latch actions.
const (
	ActionLock   Action = "lock"
	ActionUnlock Action = "unlock"

	// ActionQuery asks the mechanism to report its current position.
	ActionQuery Action = "query"
)

// Target returns the end position an action drives to, or "" for a query.
func (a Action) Target() fridge.LockState {
	switch a {
	case ActionLock:
		return fridge.LockLocked
	case ActionUnlock:
		return fridge.LockUnlocked
	default:
		return ""
	}
}

// Command is sent to the latch mechanism.
// Topic: smartfridge/{device_id}/latch/command
type Command struct {
	// ID correlates the command with its feedback.
	ID string `json:"id"`

	Action Action `json:"command"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	DeviceID string `json:"device_id,omitempty"`
}

// FeedbackStatus is the outcome reported by the mechanism.
type FeedbackStatus string

// Feedback statuses.
const (
	FeedbackOK     FeedbackStatus = "ok"
	FeedbackJammed FeedbackStatus = "jammed"
)

// Feedback is reported by the latch mechanism, either in answer to a
// command (CommandID set) or unsolicited when the latch is moved by hand.
// Topic: smartfridge/{device_id}/latch/feedback
type Feedback struct {
	CommandID string `json:"command_id,omitempty"`

	// Position is the sensed position. It may be empty on a jam when the
	// mechanism cannot tell where it stopped.
	Position fridge.LockState `json:"position,omitempty"`

	// Status defaults to "ok" when omitted.
	Status FeedbackStatus `json:"status,omitempty"`

	// Error carries the mechanism's description of a jam.
	Error string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that the feedback names a known status and, if present,
// a mechanical end position.
func (f Feedback) Validate() error {
	switch f.Status {
	case "", FeedbackOK:
		if !f.Position.IsPosition() {
			return fmt.Errorf("%w: position %q", ErrInvalidFeedback, f.Position)
		}
	case FeedbackJammed:
		if f.Position != "" && !f.Position.IsPosition() {
			return fmt.Errorf("%w: position %q", ErrInvalidFeedback, f.Position)
		}
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidFeedback, f.Status)
	}
	return nil
}

func (f Feedback) jammed() bool {
	return f.Status == FeedbackJammed
}
