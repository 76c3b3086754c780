package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/smart-fridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds, as paho expects.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is short enough that the broker fires the will
	// within about a minute and a half of the controller losing power.
	defaultKeepAlive = 60 * time.Second

	maxQoS        = 2
	tlsMinVersion = tls.VersionTLS12
)

// Values of StatusMessage.Status and StatusMessage.Reason.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	ReasonShutdown   = "graceful_shutdown"
	ReasonUnexpected = "unexpected_disconnect"
)

// StatusMessage is the controller's retained presence, watched by the
// hardware bridges and dashboards.
// Topic: smartfridge/{device_id}/system/status (retained)
type StatusMessage struct {
	Status    string    `json:"status"`
	DeviceID  string    `json:"device_id"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// clientIDFor returns the configured client ID, or one derived from the
// device so two fridges on one broker never kick each other off.
func clientIDFor(cfg config.MQTTConfig, deviceID string) string {
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	return TopicPrefix + "-" + deviceID
}

// buildClientOptions maps the mqtt config section onto paho options.
// Sessions are clean: every subscription is restored by the client itself,
// and queued latch commands must not be replayed after an outage.
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}

// configureLWT registers the retained "offline" will the broker publishes
// if the controller drops without calling Close.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	payload := statusPayload(topics.DeviceID, clientID, StatusOffline, ReasonUnexpected)
	opts.SetBinaryWill(topics.SystemStatus(), payload, 1, true)
}

func statusPayload(deviceID, clientID, status, reason string) []byte {
	// Only strings and a time: Marshal cannot fail.
	payload, _ := json.Marshal(StatusMessage{
		Status:    status,
		DeviceID:  deviceID,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	return payload
}
