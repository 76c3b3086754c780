package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
	"github.com/nerrad567/smart-fridge/internal/history"
)

const (
	// snapshotTimeout bounds how long a read waits for the controller loop.
	// Well inside the page's two second poll interval.
	snapshotTimeout = time.Second

	// healthCheckTimeout bounds each component check of /api/v1/health.
	healthCheckTimeout = 2 * time.Second
)

// Command results reported by the lock and unlock endpoints.
const (
	ResultConfirmed = "confirmed"
	ResultNoOp      = "already_in_position"
	ResultPending   = "pending"
)

// StatusResponse is the body of GET /status, polled by the device page.
//
// Temp and Umid are null until the first good reading. After a sensor fault
// they keep the last good values and Stale is set.
type StatusResponse struct {
	Temp            *float64          `json:"temp"`
	Umid            *float64          `json:"umid"`
	Lock            fridge.LockState  `json:"lock"`
	Alarm           fridge.AlarmState `json:"alarm"`
	Stale           bool              `json:"stale"`
	SensorFault     bool              `json:"sensor_fault"`
	LockFault       bool              `json:"lock_fault"`
	LockFaultReason string            `json:"lock_fault_reason,omitempty"`
	ReadingAt       *time.Time        `json:"reading_at"`
}

// CommandResponse is the body of a successful lock or unlock request.
type CommandResponse struct {
	Target fridge.LockState `json:"target"`
	Lock   fridge.LockState `json:"lock"`
	Result string           `json:"result"`
}

// SilenceResponse is the body of a silence request.
type SilenceResponse struct {
	Alarm fridge.AlarmState `json:"alarm"`
}

// SnapshotResponse is the body of GET /api/v1/status.
type SnapshotResponse struct {
	Snapshot   fridge.Snapshot   `json:"snapshot"`
	Thresholds fridge.Thresholds `json:"thresholds"`
}

// newStatusResponse converts a snapshot to the page's wire format. Values
// are rounded to the sensor's 0.1 resolution.
func newStatusResponse(snap fridge.Snapshot) StatusResponse {
	resp := StatusResponse{
		Lock:            snap.Lock,
		Alarm:           snap.Alarm,
		SensorFault:     snap.SensorFault,
		LockFault:       snap.LockFault,
		LockFaultReason: snap.LockFaultReason,
	}
	if snap.HasReading {
		temp := roundTenth(snap.Reading.TemperatureC)
		umid := roundTenth(snap.Reading.HumidityPct)
		at := snap.Reading.At.UTC()
		resp.Temp = &temp
		resp.Umid = &umid
		resp.ReadingAt = &at
		resp.Stale = snap.Reading.Stale
	}
	return resp
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// handleStatus serves GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	snap, err := s.controller.Snapshot(ctx)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(snap))
}

// handleSnapshot serves GET /api/v1/status with the full snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	snap, err := s.controller.Snapshot(ctx)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotResponse{
		Snapshot:   snap,
		Thresholds: s.controller.Thresholds(),
	})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.moveLatch(w, r, fridge.LockLocked)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	s.moveLatch(w, r, fridge.LockUnlocked)
}

// moveLatch asks the controller to move the latch and waits up to the
// configured command wait for the outcome.
//
// A move that is still travelling when the wait runs out is reported as
// accepted with lock "transitioning"; the page learns the result from its
// next /status poll.
func (s *Server) moveLatch(w http.ResponseWriter, r *http.Request, target fridge.LockState) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	outcomes, err := s.controller.RequestMove(ctx, target)
	cancel()
	if err != nil {
		writeControllerError(w, err)
		return
	}

	outcome, ok := s.awaitOutcome(r.Context(), outcomes)
	switch {
	case !ok:
		writeJSON(w, http.StatusOK, CommandResponse{Target: target, Lock: fridge.LockTransitioning, Result: ResultPending})
	case outcome.Err != nil:
		s.logger.Warn("latch command failed", "target", target, "lock", outcome.State, "error", outcome.Err)
		writeActuatorFault(w, outcome.Err, outcome.State)
	case outcome.NoOp:
		writeJSON(w, http.StatusOK, CommandResponse{Target: target, Lock: outcome.State, Result: ResultNoOp})
	default:
		writeJSON(w, http.StatusOK, CommandResponse{Target: target, Lock: outcome.State, Result: ResultConfirmed})
	}
}

// awaitOutcome waits for a move outcome. It reports false when the wait
// elapses or the client goes away first.
func (s *Server) awaitOutcome(ctx context.Context, outcomes <-chan fridge.Outcome) (fridge.Outcome, bool) {
	if s.commandWait <= 0 {
		select {
		case o := <-outcomes:
			return o, true
		default:
			return fridge.Outcome{}, false
		}
	}

	timer := time.NewTimer(s.commandWait)
	defer timer.Stop()

	select {
	case o := <-outcomes:
		return o, true
	case <-timer.C:
		return fridge.Outcome{}, false
	case <-ctx.Done():
		return fridge.Outcome{}, false
	}
}

// handleSilence serves GET /desligaBuzzer and POST /api/v1/alarm/silence.
// Silencing is idempotent: any alarm state answers 200.
func (s *Server) handleSilence(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	state, err := s.controller.RequestSilence(ctx)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SilenceResponse{Alarm: state})
}

// handleHealth reports the controller loop and every registered component.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := make(map[string]string, len(s.checks)+1)
	healthy := true

	if _, err := s.controller.Snapshot(ctx); err != nil {
		components["controller"] = err.Error()
		healthy = false
	} else {
		components["controller"] = "ok"
	}

	for name, check := range s.checks {
		if err := check.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// handleHistory serves GET /api/v1/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event history not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.List(r.Context(), history.ClampLimit(limit))
	if err != nil {
		s.logger.Error("listing event history", "error", err)
		writeInternalError(w, "failed to list event history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}
