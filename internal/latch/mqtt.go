package latch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/smart-fridge/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client used by the latch driver.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTDriver talks to the latch controller board over MQTT.
type MQTTDriver struct {
	client MQTTClient
	topics mqtt.Topics
	qos    byte
}

// NewMQTTDriver creates a driver publishing on the device's latch topics.
func NewMQTTDriver(client MQTTClient, topics mqtt.Topics, qos byte) *MQTTDriver {
	return &MQTTDriver{client: client, topics: topics, qos: qos}
}

// Drive publishes cmd on the latch command topic.
func (d *MQTTDriver) Drive(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd.DeviceID = d.topics.DeviceID
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal latch command: %w", err)
	}
	return d.client.Publish(d.topics.LatchCommand(), payload, d.qos, false)
}

// Listen subscribes to the latch feedback topic. Malformed payloads are
// returned as errors to the MQTT client, which logs them.
func (d *MQTTDriver) Listen(_ context.Context, fn func(Feedback) error) error {
	topic := d.topics.LatchFeedback()
	return d.client.Subscribe(topic, d.qos, func(_ string, payload []byte) error {
		var fb Feedback
		if err := json.Unmarshal(payload, &fb); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFeedback, err)
		}
		return fn(fb)
	})
}

// Stop unsubscribes from the latch feedback topic. Feedback for a command
// still in flight is lost and the actuator times it out.
func (d *MQTTDriver) Stop() error {
	if err := d.client.Unsubscribe(d.topics.LatchFeedback()); err != nil {
		return fmt.Errorf("latch: unsubscribe feedback: %w", err)
	}
	return nil
}
