// Package api implements the HTTP API and WebSocket push for the smart fridge.
//
// This package provides:
//   - The device page contract: GET /status, /trancar, /destrancar, /desligaBuzzer
//   - A versioned API under /api/v1 with health, history and metrics
//   - A WebSocket hub that pushes controller events and snapshots
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server is a pure adapter. Every decision is made by the fridge
// Controller; handlers only validate the method and path, call the
// Controller and serialise the result. Lock and unlock requests wait a
// bounded time (api.command_wait_ms) for the latch to confirm so that the
// page's two second poll budget holds even when the mechanism is slow.
//
// # Failure mapping
//
//	fridge.ErrBusy           -> 409 busy
//	fridge.ErrActuatorFault  -> 503 actuator_fault
//	fridge.ErrStopped        -> 503 unavailable
//
// Sensor faults never surface as HTTP errors: /status keeps answering with
// the last good reading marked stale.
package api
