package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
	"github.com/nerrad567/smart-fridge/internal/history"
)

// writeConfig writes a bench configuration with every driver simulated and
// the event log in a temp directory.
func writeConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "events.db")

	configContent := fmt.Sprintf(`
device:
  id: test-fridge

database:
  path: %q
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: %d
  command_wait_ms: 500

sensor:
  source: simulated
  period_ms: 50
  timeout_ms: 20
  simulated:
    temperature_c: 4
    humidity_pct: 50
    jitter: 0

latch:
  driver: simulated
  travel_ms: 10

buzzer:
  driver: simulated
`, dbPath, port)

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"default", "", "", defaultConfigPath},
		{"env override", "", "/custom/path/config.yaml", "/custom/path/config.yaml"},
		{"flag wins", "/flag/config.yaml", "/custom/path/config.yaml", "/flag/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SMARTFRIDGE_CONFIG", tt.env)
			if got := resolveConfigPath(tt.flag); got != tt.want {
				t.Errorf("resolveConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "smartfridge dev") {
		t.Errorf("version output = %q", out)
	}
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_BusDriverWithoutMQTT verifies the config is rejected before
// anything is opened.
func TestRun_BusDriverWithoutMQTT(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "mqtt:\n  enabled: false\nsensor:\n  source: mqtt\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), configPath)
	if err == nil || !strings.Contains(err.Error(), "mqtt must be enabled") {
		t.Fatalf("run() error = %v, want mqtt validation failure", err)
	}
}

// TestRun_SimulatedBench starts the whole controller on simulated hardware,
// locks the door through the legacy endpoint and shuts down cleanly.
func TestRun_SimulatedBench(t *testing.T) {
	port := freePort(t)
	configPath := writeConfig(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, configPath) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	client := &http.Client{Timeout: 2 * time.Second}

	// Wait for the first sample to reach the status endpoint.
	var status struct {
		Temp *float64         `json:"temp"`
		Lock fridge.LockState `json:"lock"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("controller did not report a reading: %v", <-done)
		}
		resp, err := client.Get(base + "/status")
		if err == nil {
			decodeErr := json.NewDecoder(resp.Body).Decode(&status)
			resp.Body.Close()
			if decodeErr == nil && status.Temp != nil {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if *status.Temp != 4 || status.Lock != fridge.LockUnlocked {
		t.Errorf("status = temp %v lock %s, want 4 and unlocked", *status.Temp, status.Lock)
	}

	resp, err := client.Get(base + "/trancar")
	if err != nil {
		t.Fatalf("GET /trancar error: %v", err)
	}
	var cmd struct {
		Lock fridge.LockState `json:"lock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cmd); err != nil {
		t.Fatalf("decoding /trancar: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || cmd.Lock != fridge.LockLocked {
		t.Errorf("GET /trancar = %d lock %s, want 200 locked", resp.StatusCode, cmd.Lock)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() = %v, want clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestMigrateAndHistoryCommands(t *testing.T) {
	configPath := writeConfig(t, 8080)

	out, err := execute(t, "--config", configPath, "migrate")
	if err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	if !strings.Contains(out, "0 pending") {
		t.Errorf("migrate output = %q", out)
	}

	out, err = execute(t, "--config", configPath, "history", "-n", "5")
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	if !strings.Contains(out, "no events recorded") {
		t.Errorf("history output = %q", out)
	}

	if _, err := execute(t, "--config", configPath, "migrate", "--down"); err != nil {
		t.Fatalf("migrate --down error: %v", err)
	}
}

func TestPrintHistory(t *testing.T) {
	temp := 9.04
	entries := []history.Entry{
		{
			Kind:         fridge.EventAlarmChanged,
			At:           time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			Lock:         fridge.LockLocked,
			Alarm:        fridge.AlarmSounding,
			TemperatureC: &temp,
			Detail:       "temperature_high",
		},
	}

	var out bytes.Buffer
	if err := printHistory(&out, entries); err != nil {
		t.Fatalf("printHistory() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header and one row:\n%s", len(lines), out.String())
	}
	for _, want := range []string{"alarm_changed", "locked", "sounding", "9.0°C", "--", "temperature_high"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	v := 55.55
	if got := formatValue(&v, "%"); got != "55.5%" && got != "55.6%" {
		t.Errorf("formatValue() = %q", got)
	}
	if got := formatValue(nil, "%"); got != "--" {
		t.Errorf("formatValue(nil) = %q, want --", got)
	}
}
