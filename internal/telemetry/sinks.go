package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/mqtt"
)

// Recorder stores events. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, ev fridge.Event) error
}

// HistorySink records transitions and faults. Readings are skipped, and a
// persistent sensor fault is recorded once, not on every failed tick.
type HistorySink struct {
	rec         Recorder
	faultLogged bool // only touched by the fan-out worker
}

// NewHistorySink creates a sink writing to rec.
func NewHistorySink(rec Recorder) *HistorySink {
	return &HistorySink{rec: rec}
}

// Name implements Sink.
func (s *HistorySink) Name() string { return "history" }

// Handle implements Sink.
func (s *HistorySink) Handle(ctx context.Context, ev fridge.Event) error {
	switch ev.Kind {
	case fridge.EventReading:
		s.faultLogged = ev.Snapshot.SensorFault
		return nil
	case fridge.EventSensorFault:
		if s.faultLogged {
			return nil
		}
		s.faultLogged = true
	}
	return s.rec.Record(ctx, ev)
}

// Publisher is the subset of *mqtt.Client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any, qos byte, retained bool) error
}

// StateMessage is the retained device state.
// Topic: smartfridge/{device_id}/state (retained)
type StateMessage struct {
	DeviceID  string          `json:"device_id"`
	Timestamp time.Time       `json:"timestamp"`
	State     fridge.Snapshot `json:"state"`
}

// MQTTSink publishes the retained state after every event and the event
// itself on its kind topic.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTSink creates a sink for the device's state and event topics.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topics: topics, qos: qos}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Handle implements Sink.
func (s *MQTTSink) Handle(_ context.Context, ev fridge.Event) error {
	state := StateMessage{DeviceID: s.topics.DeviceID, Timestamp: ev.At.UTC(), State: ev.Snapshot}
	if err := s.pub.PublishJSON(s.topics.State(), state, s.qos, true); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	if err := s.pub.PublishJSON(s.topics.Event(string(ev.Kind)), ev, s.qos, false); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// PointWriter is the subset of *influxdb.Client used by InfluxSink. The
// client tags every point with its device.
type PointWriter interface {
	WriteReading(temperatureC, humidityPct float64, stale bool, at time.Time)
	WriteStateChange(event, lock, alarm string, lockFault, sensorFault bool, detail string, at time.Time)
}

// InfluxSink writes climate points for readings and state points for
// everything else. Readings are batched by the client; state changes are
// flushed at once, which may block the fan-out worker for one request.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Handle implements Sink.
func (s *InfluxSink) Handle(_ context.Context, ev fridge.Event) error {
	snap := ev.Snapshot
	if ev.Kind == fridge.EventReading {
		r := snap.Reading
		s.w.WriteReading(r.TemperatureC, r.HumidityPct, r.Stale, r.At)
		return nil
	}
	s.w.WriteStateChange(string(ev.Kind), string(snap.Lock), string(snap.Alarm),
		snap.LockFault, snap.SensorFault, ev.Detail, ev.At)
	return nil
}
