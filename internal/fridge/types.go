package fridge

import "time"

// LockState is the externally visible door latch state.
type LockState string

// Lock states.
const (
	LockUnlocked      LockState = "unlocked"
	LockLocked        LockState = "locked"
	LockTransitioning LockState = "transitioning"
)

// IsPosition reports whether s is a mechanical end position (not Transitioning).
func (s LockState) IsPosition() bool {
	return s == LockLocked || s == LockUnlocked
}

// AlarmState is the audible alarm state.
type AlarmState string

// Alarm states.
const (
	AlarmIdle     AlarmState = "idle"
	AlarmSounding AlarmState = "sounding"
	AlarmSilenced AlarmState = "silenced"
)

// SensorReading is one temperature/humidity sample.
//
// Readings are values: a new sample supersedes the previous one, it never
// mutates it.
type SensorReading struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`

	// At is when this controller took the sample, read from the local
	// clock. Readings are ordered by At only.
	At time.Time `json:"at"`

	// SourceAt is the timestamp the sensor board attached, if any. The
	// board's clock is not trusted and SourceAt is informational.
	SourceAt time.Time `json:"source_at,omitzero"`

	// Stale marks a last-known-good reading returned after the sensor
	// stopped responding.
	Stale bool `json:"stale"`
}

// AsStale returns a copy of r tagged as stale.
func (r SensorReading) AsStale() SensorReading {
	r.Stale = true
	return r
}

// Snapshot is the read-only composite state handed to callers.
// It is a value copy taken on the controller loop and never shared.
type Snapshot struct {
	Reading    SensorReading `json:"reading"`
	HasReading bool          `json:"has_reading"`
	Lock       LockState     `json:"lock"`
	Alarm      AlarmState    `json:"alarm"`
	Breach     Breach        `json:"breach"`

	// SensorFault is set while the most recent sample attempt failed.
	SensorFault bool `json:"sensor_fault"`

	// LockFault is set after a lock/unlock attempt failed and stays set
	// until the next confirmed move.
	LockFault       bool   `json:"lock_fault"`
	LockFaultReason string `json:"lock_fault_reason,omitempty"`

	TakenAt time.Time `json:"taken_at"`
}

// EventKind classifies controller events.
type EventKind string

// Event kinds.
const (
	EventReading        EventKind = "reading"
	EventSensorFault    EventKind = "sensor_fault"
	EventLockTransition EventKind = "lock_transition"
	EventLockConfirmed  EventKind = "lock_confirmed"
	EventLockFault      EventKind = "lock_fault"
	EventAlarmChanged   EventKind = "alarm_changed"
)

// Event describes one controller state change together with the snapshot
// taken right after it.
type Event struct {
	ID       string    `json:"id"`
	Kind     EventKind `json:"kind"`
	At       time.Time `json:"at"`
	Detail   string    `json:"detail,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
}

// LatchCompletion is the result of one latch command, reported by the
// actuator once the mechanism confirms, jams or times out.
type LatchCompletion struct {
	// CommandID correlates the completion with the command that caused it.
	CommandID string

	// Target is the position the command was driving to.
	Target LockState

	// Position is the position reported by the mechanism, if any. It is
	// empty when the mechanism gave no feedback (timeout).
	Position LockState

	// Err is nil on success, otherwise it wraps ErrActuatorFault.
	Err error
}

// Outcome is delivered once for every accepted lock/unlock request.
type Outcome struct {
	Target LockState
	// State is the confirmed lock state after the request resolved.
	State LockState
	// NoOp is true when the latch was already at Target.
	NoOp bool
	Err  error
}

// Counters are cumulative controller statistics.
type Counters struct {
	ReadingsIngested uint64 `json:"readings_ingested"`
	ReadingsDropped  uint64 `json:"readings_dropped"`
	SensorFaults     uint64 `json:"sensor_faults"`
	LockRequests     uint64 `json:"lock_requests"`
	BusyRejections   uint64 `json:"busy_rejections"`
	ActuatorFaults   uint64 `json:"actuator_faults"`
	SilenceRequests  uint64 `json:"silence_requests"`
	AlarmActivations uint64 `json:"alarm_activations"`
}
