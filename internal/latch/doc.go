// Package latch drives the fridge door latch and turns its mechanical
// feedback into confirmed positions.
//
// The Actuator implements fridge.Latch. Lock and Unlock return as soon as
// the command is handed to the driver; the result is reported later via
// the completion callback:
//
//	Lock() ──► Driver.Drive ──► mechanism moves
//	              │
//	              ├── feedback at target ──────► completion (ok)
//	              ├── feedback "jammed" ───────► completion (ErrJammed)
//	              ├── Drive error ─────────────► completion (actuator fault)
//	              └── no feedback in time ─────► completion (ErrConfirmTimeout)
//
// Only one command may be pending at a time; a second Lock or Unlock
// before the first resolves fails with ErrBusy.
//
// # Drivers
//
//   - MQTTDriver publishes commands to smartfridge/<id>/latch/command and
//     listens on smartfridge/<id>/latch/feedback
//   - SimulatedDriver moves a virtual latch after a travel delay and can be
//     told to jam or to stay silent
package latch
