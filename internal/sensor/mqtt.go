package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/smart-fridge/internal/fridge"
	"github.com/nerrad567/smart-fridge/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client used by MQTTSource.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// RequestMessage asks the sensor board for a fresh sample.
// Topic: smartfridge/{device_id}/sensor/request
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadingMessage is published by the sensor board. Timestamp comes from
// the board's clock, which may be unset or wrong after a power cut, and is
// kept only as SensorReading.SourceAt.
// Topic: smartfridge/{device_id}/sensor/reading
type ReadingMessage struct {
	RequestID    string    `json:"request_id,omitempty"`
	TemperatureC *float64  `json:"temperature_c"`
	HumidityPct  *float64  `json:"humidity_pct"`
	Timestamp    time.Time `json:"timestamp"`
}

// MQTTSource reads the sensor board over MQTT. Every Read publishes a
// request and returns the first reading that arrives after it.
type MQTTSource struct {
	client MQTTClient
	topics mqtt.Topics
	qos    byte

	mu        sync.Mutex
	latest    fridge.SensorReading
	arrivedAt time.Time
	arrived   chan struct{} // closed and replaced on every reading
}

// NewMQTTSource creates a source for the device's sensor topics.
func NewMQTTSource(client MQTTClient, topics mqtt.Topics, qos byte) *MQTTSource {
	return &MQTTSource{
		client:  client,
		topics:  topics,
		qos:     qos,
		arrived: make(chan struct{}),
	}
}

// Start subscribes to the reading topic.
func (s *MQTTSource) Start(_ context.Context) error {
	if err := s.client.Subscribe(s.topics.SensorReading(), s.qos, s.handleReading); err != nil {
		return fmt.Errorf("sensor: subscribe readings: %w", err)
	}
	return nil
}

// Stop unsubscribes from the reading topic. A Read in progress waits out
// its context and reports a sensor fault.
func (s *MQTTSource) Stop() error {
	if err := s.client.Unsubscribe(s.topics.SensorReading()); err != nil {
		return fmt.Errorf("sensor: unsubscribe readings: %w", err)
	}
	return nil
}

func (s *MQTTSource) handleReading(_ string, payload []byte) error {
	var msg ReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("sensor: parse reading: %w", err)
	}
	if msg.TemperatureC == nil || msg.HumidityPct == nil {
		return fmt.Errorf("sensor: reading missing temperature_c or humidity_pct")
	}

	now := time.Now()

	s.mu.Lock()
	s.latest = fridge.SensorReading{
		TemperatureC: *msg.TemperatureC,
		HumidityPct:  *msg.HumidityPct,
		At:           now,
		SourceAt:     msg.Timestamp,
	}
	s.arrivedAt = now
	close(s.arrived)
	s.arrived = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// Read requests a sample and waits for it until ctx is done.
func (s *MQTTSource) Read(ctx context.Context) (fridge.SensorReading, error) {
	requested := time.Now()

	s.mu.Lock()
	wait := s.arrived
	s.mu.Unlock()

	payload, err := json.Marshal(RequestMessage{RequestID: uuid.NewString(), Timestamp: requested.UTC()})
	if err != nil {
		return fridge.SensorReading{}, fmt.Errorf("marshal sensor request: %w", err)
	}
	if err := s.client.Publish(s.topics.SensorRequest(), payload, s.qos, false); err != nil {
		return fridge.SensorReading{}, fmt.Errorf("%w: request: %w", fridge.ErrSensorFault, err)
	}

	for {
		select {
		case <-ctx.Done():
			return fridge.SensorReading{}, fmt.Errorf("%w: %w", fridge.ErrSensorFault, ctx.Err())
		case <-wait:
		}

		s.mu.Lock()
		reading, arrivedAt := s.latest, s.arrivedAt
		wait = s.arrived
		s.mu.Unlock()

		if !arrivedAt.Before(requested) {
			return reading, nil
		}
	}
}
