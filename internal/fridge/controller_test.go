package fridge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// fakeLatch records commands and never calls back on its own.
type fakeLatch struct {
	mu      sync.Mutex
	locks   int
	unlocks int
	err     error
}

func (l *fakeLatch) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks++
	return l.err
}

func (l *fakeLatch) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocks++
	return l.err
}

func (l *fakeLatch) calls() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locks, l.unlocks
}

type fakeBuzzer struct {
	mu       sync.Mutex
	on       bool
	sounds   int
	silences int
}

func (b *fakeBuzzer) Sound() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.on = true
	b.sounds++
	return nil
}

func (b *fakeBuzzer) Silence() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.on = false
	b.silences++
	return nil
}

func (b *fakeBuzzer) isOn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

var testThresholds = Thresholds{
	TemperatureMaxC: 8,
	TemperatureMinC: -2,
	HumidityMaxPct:  80,
}

type harness struct {
	ctrl   *Controller
	latch  *fakeLatch
	buzzer *fakeBuzzer
	events *recorder
	clock  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		latch:  &fakeLatch{},
		buzzer: &fakeBuzzer{},
		events: &recorder{},
		clock:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	ctrl, err := NewController(Options{
		Thresholds: testThresholds,
		Latch:      h.latch,
		Buzzer:     h.buzzer,
		Notifier:   h.events,
		Now:        func() time.Time { return h.clock },
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	h.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}

func (h *harness) reading(t *testing.T, temp, hum float64) {
	t.Helper()
	h.clock = h.clock.Add(2 * time.Second)
	if err := h.ctrl.IngestReading(context.Background(), SensorReading{TemperatureC: temp, HumidityPct: hum, At: h.clock}); err != nil {
		t.Fatalf("IngestReading() error = %v", err)
	}
}

func (h *harness) snap(t *testing.T) Snapshot {
	t.Helper()
	s, err := h.ctrl.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return s
}

func (h *harness) silence(t *testing.T) AlarmState {
	t.Helper()
	state, err := h.ctrl.RequestSilence(context.Background())
	if err != nil {
		t.Fatalf("RequestSilence() error = %v", err)
	}
	return state
}

func (h *harness) complete(t *testing.T, c LatchCompletion) {
	t.Helper()
	if err := h.ctrl.HandleLatchCompletion(context.Background(), c); err != nil {
		t.Fatalf("HandleLatchCompletion() error = %v", err)
	}
}

func receive(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outcome")
		return Outcome{}
	}
}

func TestNewController_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing latch", opts: Options{Thresholds: testThresholds, Buzzer: &fakeBuzzer{}}},
		{name: "missing buzzer", opts: Options{Thresholds: testThresholds, Latch: &fakeLatch{}}},
		{name: "bad thresholds", opts: Options{Thresholds: Thresholds{TemperatureMaxC: 1, TemperatureMinC: 5, HumidityMaxPct: 80}, Latch: &fakeLatch{}, Buzzer: &fakeBuzzer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewController(tt.opts); err == nil {
				t.Error("NewController() expected error, got nil")
			}
		})
	}
}

func TestController_InitialState(t *testing.T) {
	h := newHarness(t)
	s := h.snap(t)

	if s.Lock != LockUnlocked {
		t.Errorf("Lock = %q, want %q", s.Lock, LockUnlocked)
	}
	if s.Alarm != AlarmIdle {
		t.Errorf("Alarm = %q, want %q", s.Alarm, AlarmIdle)
	}
	if s.HasReading {
		t.Error("HasReading = true before any sample")
	}
	if s.LockFault || s.SensorFault {
		t.Errorf("faults set at boot: lock=%v sensor=%v", s.LockFault, s.SensorFault)
	}
}

func TestController_HumidityAlarmScenario(t *testing.T) {
	h := newHarness(t)

	h.reading(t, 4, 95)
	if got := h.snap(t).Alarm; got != AlarmSounding {
		t.Fatalf("after 95%% humidity Alarm = %q, want %q", got, AlarmSounding)
	}
	if !h.buzzer.isOn() {
		t.Error("buzzer should be sounding")
	}

	if got := h.silence(t); got != AlarmSilenced {
		t.Fatalf("RequestSilence() = %q, want %q", got, AlarmSilenced)
	}
	s := h.snap(t)
	if s.Alarm != AlarmSilenced {
		t.Errorf("Alarm = %q, want %q", s.Alarm, AlarmSilenced)
	}
	if s.Reading.HumidityPct != 95 {
		t.Errorf("Reading.HumidityPct = %v, want 95 while silenced", s.Reading.HumidityPct)
	}
	if h.buzzer.isOn() {
		t.Error("buzzer should be off while silenced")
	}

	h.reading(t, 4, 85)
	if got := h.snap(t).Alarm; got != AlarmSounding {
		t.Errorf("next breach tick Alarm = %q, want %q", got, AlarmSounding)
	}
	if !h.buzzer.isOn() {
		t.Error("buzzer should sound again after re-alarm")
	}
}

func TestController_SilenceIsNeverPermanent(t *testing.T) {
	h := newHarness(t)
	h.reading(t, 12, 50)

	for i := 0; i < 5; i++ {
		h.silence(t)
		h.silence(t)
		h.reading(t, 12, 50)
		if got := h.snap(t).Alarm; got != AlarmSounding {
			t.Fatalf("round %d: Alarm = %q after continued breach, want %q", i, got, AlarmSounding)
		}
	}
}

func TestController_SilenceFromIdleIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.reading(t, 4, 50)

	if got := h.silence(t); got != AlarmIdle {
		t.Errorf("RequestSilence() = %q, want %q", got, AlarmIdle)
	}
	if h.buzzer.silences != 0 {
		t.Errorf("buzzer.Silence called %d times, want 0", h.buzzer.silences)
	}
}

func TestController_AlarmClears(t *testing.T) {
	tests := []struct {
		name    string
		silence bool
	}{
		{name: "from sounding", silence: false},
		{name: "from silenced", silence: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.reading(t, -5, 50)
			if tt.silence {
				h.silence(t)
			}

			h.reading(t, 3, 50)

			if got := h.snap(t).Alarm; got != AlarmIdle {
				t.Errorf("Alarm = %q, want %q", got, AlarmIdle)
			}
			if h.buzzer.isOn() {
				t.Error("buzzer should be off once the condition cleared")
			}
		})
	}
}

func TestController_LockRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ch, err := h.ctrl.RequestLock(ctx)
	if err != nil {
		t.Fatalf("RequestLock() error = %v", err)
	}
	if got := h.snap(t).Lock; got != LockTransitioning {
		t.Fatalf("Lock = %q while moving, want %q", got, LockTransitioning)
	}
	if locks, _ := h.latch.calls(); locks != 1 {
		t.Fatalf("latch.Lock called %d times, want 1", locks)
	}

	h.complete(t, LatchCompletion{Target: LockLocked, Position: LockLocked})

	o := receive(t, ch)
	if o.Err != nil || o.State != LockLocked || o.NoOp {
		t.Errorf("Outcome = %+v, want confirmed Locked", o)
	}
	if got := h.snap(t).Lock; got != LockLocked {
		t.Errorf("Lock = %q after confirmation, want %q", got, LockLocked)
	}

	ch, err = h.ctrl.RequestUnlock(ctx)
	if err != nil {
		t.Fatalf("RequestUnlock() error = %v", err)
	}
	h.complete(t, LatchCompletion{Target: LockUnlocked, Position: LockUnlocked})
	if o := receive(t, ch); o.State != LockUnlocked {
		t.Errorf("unlock Outcome.State = %q, want %q", o.State, LockUnlocked)
	}
}

func TestController_BusyWhileTransitioning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.ctrl.RequestLock(ctx); err != nil {
		t.Fatalf("first RequestLock() error = %v", err)
	}

	for _, req := range []func(context.Context) (<-chan Outcome, error){h.ctrl.RequestLock, h.ctrl.RequestUnlock} {
		if _, err := req(ctx); !errors.Is(err, ErrBusy) {
			t.Errorf("request while transitioning error = %v, want ErrBusy", err)
		}
	}

	if got := h.snap(t).Lock; got != LockTransitioning {
		t.Errorf("Lock = %q, want unchanged %q", got, LockTransitioning)
	}
	if locks, unlocks := h.latch.calls(); locks != 1 || unlocks != 0 {
		t.Errorf("latch calls = %d/%d, want 1/0", locks, unlocks)
	}

	counters, err := h.ctrl.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters() error = %v", err)
	}
	if counters.BusyRejections != 2 {
		t.Errorf("BusyRejections = %d, want 2", counters.BusyRejections)
	}
}

func TestController_LockIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ch, _ := h.ctrl.RequestLock(ctx)
	h.complete(t, LatchCompletion{Target: LockLocked, Position: LockLocked})
	receive(t, ch)
	once := h.snap(t)

	ch, err := h.ctrl.RequestLock(ctx)
	if err != nil {
		t.Fatalf("second RequestLock() error = %v", err)
	}
	o := receive(t, ch)
	if !o.NoOp || o.State != LockLocked || o.Err != nil {
		t.Errorf("Outcome = %+v, want no-op Locked", o)
	}

	twice := h.snap(t)
	if twice.Lock != once.Lock || twice.LockFault != once.LockFault {
		t.Errorf("state after second lock = %+v, want %+v", twice, once)
	}
	if locks, _ := h.latch.calls(); locks != 1 {
		t.Errorf("latch.Lock called %d times, want 1", locks)
	}
}

func TestController_UnlockWhenUnlockedIsNoOp(t *testing.T) {
	h := newHarness(t)

	ch, err := h.ctrl.RequestUnlock(context.Background())
	if err != nil {
		t.Fatalf("RequestUnlock() error = %v", err)
	}
	if o := receive(t, ch); !o.NoOp {
		t.Errorf("Outcome = %+v, want NoOp", o)
	}
	if _, unlocks := h.latch.calls(); unlocks != 0 {
		t.Errorf("latch.Unlock called %d times, want 0", unlocks)
	}
}

func TestController_LatchFailureRollsBack(t *testing.T) {
	tests := []struct {
		name      string
		comp      LatchCompletion
		wantState LockState
		wantIs    error
	}{
		{
			name:      "confirmation timeout",
			comp:      LatchCompletion{Target: LockLocked, Err: fmt.Errorf("%w: %w", ErrActuatorFault, ErrConfirmTimeout)},
			wantState: LockUnlocked,
			wantIs:    ErrConfirmTimeout,
		},
		{
			name:      "jam without position",
			comp:      LatchCompletion{Target: LockLocked, Err: errors.New("jammed")},
			wantState: LockUnlocked,
			wantIs:    ErrActuatorFault,
		},
		{
			name:      "jam reports position",
			comp:      LatchCompletion{Target: LockLocked, Position: LockUnlocked, Err: fmt.Errorf("%w: jammed", ErrActuatorFault)},
			wantState: LockUnlocked,
			wantIs:    ErrActuatorFault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ch, err := h.ctrl.RequestLock(context.Background())
			if err != nil {
				t.Fatalf("RequestLock() error = %v", err)
			}

			h.complete(t, tt.comp)

			o := receive(t, ch)
			if !errors.Is(o.Err, ErrActuatorFault) || !errors.Is(o.Err, tt.wantIs) {
				t.Errorf("Outcome.Err = %v, want ErrActuatorFault and %v", o.Err, tt.wantIs)
			}
			s := h.snap(t)
			if s.Lock != tt.wantState {
				t.Errorf("Lock = %q, want rolled back %q", s.Lock, tt.wantState)
			}
			if !s.LockFault || s.LockFaultReason == "" {
				t.Errorf("LockFault = %v (%q), want set", s.LockFault, s.LockFaultReason)
			}

			// The next confirmed move clears the fault.
			ch, _ = h.ctrl.RequestLock(context.Background())
			h.complete(t, LatchCompletion{Target: LockLocked, Position: LockLocked})
			receive(t, ch)
			if s := h.snap(t); s.LockFault || s.Lock != LockLocked {
				t.Errorf("after recovery Lock=%q LockFault=%v, want locked without fault", s.Lock, s.LockFault)
			}
		})
	}
}

func TestController_MoveAfterTimeoutIsDriven(t *testing.T) {
	h := newHarness(t)

	ch, err := h.ctrl.RequestLock(context.Background())
	if err != nil {
		t.Fatalf("RequestLock() error = %v", err)
	}
	h.complete(t, LatchCompletion{Target: LockLocked, Err: fmt.Errorf("%w: %w", ErrActuatorFault, ErrConfirmTimeout)})
	receive(t, ch)

	// Rolled back to unlocked, but that position was never confirmed.
	ch, err = h.ctrl.RequestUnlock(context.Background())
	if err != nil {
		t.Fatalf("RequestUnlock() error = %v", err)
	}
	if _, unlocks := h.latch.calls(); unlocks != 1 {
		t.Fatalf("latch Unlock calls = %d, want 1", unlocks)
	}
	select {
	case o := <-ch:
		t.Fatalf("outcome %+v before the latch confirmed", o)
	default:
	}
	if got := h.snap(t).Lock; got != LockTransitioning {
		t.Errorf("Lock = %q, want %q", got, LockTransitioning)
	}

	h.complete(t, LatchCompletion{Target: LockUnlocked, Position: LockUnlocked})
	if o := receive(t, ch); o.NoOp || o.Err != nil || o.State != LockUnlocked {
		t.Errorf("outcome = %+v, want confirmed unlock", o)
	}
	if s := h.snap(t); s.LockFault {
		t.Errorf("LockFault still set after confirmed unlock")
	}

	// With the position confirmed again, a repeat is a no-op.
	ch, _ = h.ctrl.RequestUnlock(context.Background())
	if o := receive(t, ch); !o.NoOp {
		t.Errorf("outcome = %+v, want no-op", o)
	}
	if _, unlocks := h.latch.calls(); unlocks != 1 {
		t.Errorf("latch Unlock calls = %d, want 1", unlocks)
	}
}

func TestController_LatchCommandError(t *testing.T) {
	h := newHarness(t)
	h.latch.err = errors.New("bus offline")

	ch, err := h.ctrl.RequestLock(context.Background())
	if err != nil {
		t.Fatalf("RequestLock() error = %v, want fault delivered via outcome", err)
	}
	o := receive(t, ch)
	if !errors.Is(o.Err, ErrActuatorFault) {
		t.Errorf("Outcome.Err = %v, want ErrActuatorFault", o.Err)
	}
	if s := h.snap(t); s.Lock != LockUnlocked || !s.LockFault {
		t.Errorf("Lock=%q LockFault=%v, want unlocked with fault", s.Lock, s.LockFault)
	}
}

func TestController_LatchBusyMapsToErrBusy(t *testing.T) {
	h := newHarness(t)
	h.latch.err = fmt.Errorf("actuator: %w", ErrBusy)

	if _, err := h.ctrl.RequestLock(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("RequestLock() error = %v, want ErrBusy", err)
	}
	if got := h.snap(t).Lock; got != LockUnlocked {
		t.Errorf("Lock = %q, want %q", got, LockUnlocked)
	}
}

func TestController_StaleCompletionIgnored(t *testing.T) {
	h := newHarness(t)

	h.complete(t, LatchCompletion{Target: LockLocked, Position: LockLocked})
	if got := h.snap(t).Lock; got != LockUnlocked {
		t.Errorf("Lock = %q after unsolicited completion, want %q", got, LockUnlocked)
	}

	_, _ = h.ctrl.RequestLock(context.Background())
	h.complete(t, LatchCompletion{Target: LockUnlocked, Position: LockUnlocked})
	if got := h.snap(t).Lock; got != LockTransitioning {
		t.Errorf("Lock = %q after mismatched completion, want %q", got, LockTransitioning)
	}
}

func TestController_LatchFeedback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.ctrl.HandleLatchFeedback(ctx, LockLocked); err != nil {
		t.Fatalf("HandleLatchFeedback() error = %v", err)
	}
	if got := h.snap(t).Lock; got != LockLocked {
		t.Errorf("Lock = %q, want %q from feedback", got, LockLocked)
	}

	if err := h.ctrl.HandleLatchFeedback(ctx, LockTransitioning); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("HandleLatchFeedback(transitioning) error = %v, want ErrInvalidTarget", err)
	}

	// Feedback during a move does not pre-empt the actuator's completion.
	_, _ = h.ctrl.RequestUnlock(ctx)
	_ = h.ctrl.HandleLatchFeedback(ctx, LockUnlocked)
	if got := h.snap(t).Lock; got != LockTransitioning {
		t.Errorf("Lock = %q, want %q until completion", got, LockTransitioning)
	}
}

// TestController_NeverClaimsUnconfirmedPosition drives random request and
// completion sequences and checks the visible state against the last
// position the fake actuator confirmed.
func TestController_NeverClaimsUnconfirmedPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	confirmed := LockUnlocked
	var pending LockState

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0, 1:
			target := LockLocked
			if rng.Intn(2) == 0 {
				target = LockUnlocked
			}
			_, err := h.ctrl.RequestMove(ctx, target)
			switch {
			case pending != "":
				if !errors.Is(err, ErrBusy) {
					t.Fatalf("step %d: request while pending error = %v, want ErrBusy", i, err)
				}
			case err != nil:
				t.Fatalf("step %d: RequestMove() error = %v", i, err)
			case target != confirmed:
				pending = target
			}
		case 2:
			if pending != "" {
				h.complete(t, LatchCompletion{Target: pending, Position: pending})
				confirmed = pending
				pending = ""
			}
		case 3:
			if pending != "" {
				h.complete(t, LatchCompletion{Target: pending, Err: ErrConfirmTimeout})
				pending = ""
			}
		}

		got := h.snap(t).Lock
		if pending != "" {
			if got != LockTransitioning {
				t.Fatalf("step %d: Lock = %q with a move in flight, want transitioning", i, got)
			}
			continue
		}
		if got != confirmed {
			t.Fatalf("step %d: Lock = %q, want last confirmed %q", i, got, confirmed)
		}
	}
}

func TestController_SensorFaultKeepsLastReading(t *testing.T) {
	h := newHarness(t)
	h.reading(t, 5.5, 60)

	if err := h.ctrl.ReportSensorFault(context.Background(), ErrSensorFault); err != nil {
		t.Fatalf("ReportSensorFault() error = %v", err)
	}

	s := h.snap(t)
	if s.Reading.TemperatureC != 5.5 || s.Reading.HumidityPct != 60 {
		t.Errorf("Reading = %+v, want previous 5.5/60", s.Reading)
	}
	if !s.Reading.Stale || !s.SensorFault {
		t.Errorf("Stale=%v SensorFault=%v, want both set", s.Reading.Stale, s.SensorFault)
	}
	if s.Alarm != AlarmIdle {
		t.Errorf("Alarm = %q, want unchanged idle", s.Alarm)
	}

	h.reading(t, 5.0, 61)
	if s := h.snap(t); s.Reading.Stale || s.SensorFault {
		t.Errorf("fresh reading should clear stale flags, got %+v", s)
	}
}

func TestController_SensorFaultDoesNotClearAlarm(t *testing.T) {
	h := newHarness(t)
	h.reading(t, 10, 60)
	_ = h.ctrl.ReportSensorFault(context.Background(), nil)

	if got := h.snap(t).Alarm; got != AlarmSounding {
		t.Errorf("Alarm = %q, want sounding to persist through a sensor fault", got)
	}
}

func TestController_DiscardsStaleAndOutOfOrderReadings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.reading(t, 4, 50)
	latest := h.snap(t).Reading

	stale := SensorReading{TemperatureC: 20, HumidityPct: 99, At: h.clock.Add(time.Second), Stale: true}
	older := SensorReading{TemperatureC: 20, HumidityPct: 99, At: h.clock.Add(-time.Second)}
	for _, r := range []SensorReading{stale, older} {
		if err := h.ctrl.IngestReading(ctx, r); err != nil {
			t.Fatalf("IngestReading() error = %v", err)
		}
	}

	s := h.snap(t)
	if s.Reading != latest {
		t.Errorf("Reading = %+v, want %+v", s.Reading, latest)
	}
	if s.Alarm != AlarmIdle {
		t.Errorf("Alarm = %q, discarded readings must not trip the alarm", s.Alarm)
	}

	counters, _ := h.ctrl.Counters(ctx)
	if counters.ReadingsDropped != 2 {
		t.Errorf("ReadingsDropped = %d, want 2", counters.ReadingsDropped)
	}
}

func TestController_EmitsEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.reading(t, 9, 50)
	ch, _ := h.ctrl.RequestLock(ctx)
	h.complete(t, LatchCompletion{Target: LockLocked, Position: LockLocked})
	receive(t, ch)

	want := []EventKind{EventAlarmChanged, EventReading, EventLockTransition, EventLockConfirmed}
	got := h.events.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	h.events.mu.Lock()
	last := h.events.events[len(h.events.events)-1]
	h.events.mu.Unlock()
	if last.ID == "" {
		t.Error("event ID should be set")
	}
	if last.Snapshot.Lock != LockLocked {
		t.Errorf("event snapshot Lock = %q, want %q", last.Snapshot.Lock, LockLocked)
	}
}

func TestController_Stopped(t *testing.T) {
	ctrl, err := NewController(Options{Thresholds: testThresholds, Latch: &fakeLatch{}, Buzzer: &fakeBuzzer{}})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	ch, err := ctrl.RequestLock(context.Background())
	if err != nil {
		t.Fatalf("RequestLock() error = %v", err)
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}

	if o := receive(t, ch); !errors.Is(o.Err, ErrStopped) {
		t.Errorf("pending Outcome.Err = %v, want ErrStopped", o.Err)
	}
	if _, err := ctrl.Snapshot(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Snapshot() after stop error = %v, want ErrStopped", err)
	}
	if err := ctrl.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestController_ContextCancelledBeforeAccept(t *testing.T) {
	ctrl, err := NewController(Options{Thresholds: testThresholds, Latch: &fakeLatch{}, Buzzer: &fakeBuzzer{}})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	// Loop never started, so the op can only be abandoned.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := ctrl.Snapshot(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Snapshot() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestController_InvalidTarget(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ctrl.RequestMove(context.Background(), LockTransitioning); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("RequestMove(transitioning) error = %v, want ErrInvalidTarget", err)
	}
}
