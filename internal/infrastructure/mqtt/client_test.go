package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/smart-fridge/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "smartfridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{DeviceID: "fridge-001"}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"SensorReading", topics.SensorReading(), "smartfridge/fridge-001/sensor/reading"},
		{"SensorRequest", topics.SensorRequest(), "smartfridge/fridge-001/sensor/request"},
		{"LatchCommand", topics.LatchCommand(), "smartfridge/fridge-001/latch/command"},
		{"LatchFeedback", topics.LatchFeedback(), "smartfridge/fridge-001/latch/feedback"},
		{"BuzzerCommand", topics.BuzzerCommand(), "smartfridge/fridge-001/buzzer/command"},
		{"State", topics.State(), "smartfridge/fridge-001/state"},
		{"Event", topics.Event("lock_confirmed"), "smartfridge/fridge-001/event/lock_confirmed"},
		{"SystemStatus", topics.SystemStatus(), "smartfridge/fridge-001/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestClientIDFor(t *testing.T) {
	cfg := testConfig()
	if got := clientIDFor(cfg, "fridge-001"); got != "smartfridge-test" {
		t.Errorf("clientIDFor(configured) = %q, want smartfridge-test", got)
	}

	cfg.Broker.ClientID = ""
	if got := clientIDFor(cfg, "fridge-001"); got != "smartfridge-fridge-001" {
		t.Errorf("clientIDFor(empty) = %q, want smartfridge-fridge-001", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "fridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg, "smartfridge-test")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "smartfridge-test" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "smartfridge-test")
	}
	if opts.Username != "fridge" {
		t.Errorf("Username = %q, want %q", opts.Username, "fridge")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured for a plain tcp broker")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg, "smartfridge-test")

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig(), "smartfridge-test")
	configureLWT(opts, Topics{DeviceID: "fridge-001"}, "smartfridge-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "smartfridge/fridge-001/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var will StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("WillPayload is not JSON: %v", err)
	}
	if will.Status != StatusOffline || will.Reason != ReasonUnexpected || will.DeviceID != "fridge-001" {
		t.Errorf("will = %+v", will)
	}
}

func TestStatusPayload(t *testing.T) {
	tests := []struct {
		name   string
		status string
		reason string
	}{
		{"online", StatusOnline, ""},
		{"graceful offline", StatusOffline, ReasonShutdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := statusPayload("fridge-001", "c1", tt.status, tt.reason)
			var msg StatusMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if msg.Status != tt.status || msg.Reason != tt.reason || msg.ClientID != "c1" || msg.DeviceID != "fridge-001" || msg.Timestamp.IsZero() {
				t.Errorf("status = %+v", msg)
			}
			if tt.reason == "" && strings.Contains(string(raw), "reason") {
				t.Errorf("payload %s carries an empty reason", raw)
			}
		})
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestConnect_RequiresDeviceID(t *testing.T) {
	_, err := Connect(testConfig(), "")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestHandleConnectionLost(t *testing.T) {
	client := &Client{}
	client.setConnected(true)

	var got error
	client.SetOnDisconnect(func(err error) { got = err })
	lost := errors.New("keepalive timeout")
	client.handleConnectionLost(lost)
	client.handleConnectionLost(lost)

	if got != lost {
		t.Errorf("OnDisconnect error = %v, want %v", got, lost)
	}
	if n := client.ConnectionLosses(); n != 2 {
		t.Errorf("ConnectionLosses() = %d, want 2", n)
	}
	if client.connected {
		t.Error("connected still set after connection lost")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{name: "empty topic", topic: "", payload: []byte("x"), qos: 1, want: ErrInvalidTopic},
		{name: "invalid qos", topic: "a/b", payload: []byte("x"), qos: 3, want: ErrInvalidQoS},
		{name: "oversized payload", topic: "a/b", payload: make([]byte, maxPayloadSize+1), qos: 1, want: ErrPublishFailed},
		{name: "not connected", topic: "a/b", payload: []byte("x"), qos: 1, want: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_EncodeError(t *testing.T) {
	client := &Client{}

	err := client.PublishJSON("a/b", make(chan int), 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("a/b", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("a/b", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("a/b", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after failed subscribe", client.SubscriptionCount())
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandler_RecoversPanic(t *testing.T) {
	client := &Client{}
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("bad payload")
	})
	wrapped(nil, fakeMessage{topic: "smartfridge/fridge-001/latch/feedback"})

	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1 for recovered panic", len(logger.errors))
	}
}

func TestWrapHandler_LogsHandlerError(t *testing.T) {
	client := &Client{}
	logger := &mockLogger{}
	client.SetLogger(logger)

	var gotTopic string
	var gotPayload string
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic = topic
		gotPayload = string(payload)
		return errors.New("decode failed")
	})
	wrapped(nil, fakeMessage{topic: "t/1", payload: []byte(`{"x":1}`)})

	if gotTopic != "t/1" || gotPayload != `{"x":1}` {
		t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1", len(logger.warns))
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}
	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("no logger set")
	})
	wrapped(nil, fakeMessage{topic: "t"})
}
