package buzzer

import (
	"context"
	"time"

	"github.com/nerrad567/smart-fridge/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client used by MQTTDriver.
type Publisher interface {
	PublishJSON(topic string, v any, qos byte, retained bool) error
}

// Command is the buzzer command payload.
// Topic: smartfridge/{device_id}/buzzer/command (retained)
type Command struct {
	On        bool      `json:"on"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTDriver publishes the desired buzzer state, retained so the board
// picks it up again after a reconnect.
type MQTTDriver struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTDriver creates a driver for the device's buzzer topic.
func NewMQTTDriver(pub Publisher, topics mqtt.Topics, qos byte) *MQTTDriver {
	return &MQTTDriver{pub: pub, topics: topics, qos: qos}
}

// Set publishes the on/off command.
func (d *MQTTDriver) Set(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := Command{On: on, DeviceID: d.topics.DeviceID, Timestamp: time.Now().UTC()}
	return d.pub.PublishJSON(d.topics.BuzzerCommand(), cmd, d.qos, true)
}
