package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/smart-fridge/internal/fridge"
	"github.com/nerrad567/smart-fridge/internal/telemetry"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Controller    *fridge.Counters `json:"controller,omitempty"`
	Sensor        *SensorMetrics   `json:"sensor,omitempty"`
	Buzzer        *BuzzerMetrics   `json:"buzzer,omitempty"`
	Events        *telemetry.Stats `json:"events,omitempty"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Database      DatabaseMetrics  `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SensorMetrics contains sampling loop counters.
type SensorMetrics struct {
	Samples uint64 `json:"samples"`
	Faults  uint64 `json:"faults"`
}

// BuzzerMetrics contains alarm output state.
type BuzzerMetrics struct {
	Sounding bool   `json:"sounding"`
	Failures uint64 `json:"failures"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled          bool   `json:"enabled"`
	Connected        bool   `json:"connected"`
	Subscriptions    int    `json:"subscriptions"`
	ConnectionLosses uint64 `json:"connection_losses"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if counters, err := s.controller.Counters(r.Context()); err == nil {
		metrics.Controller = &counters
	} else {
		s.logger.Debug("controller counters unavailable", "error", err)
	}

	if s.sensor != nil {
		samples, faults := s.sensor.Stats()
		metrics.Sensor = &SensorMetrics{Samples: samples, Faults: faults}
	}

	if s.buzzer != nil {
		metrics.Buzzer = &BuzzerMetrics{
			Sounding: s.buzzer.Sounding(),
			Failures: s.buzzer.Failures(),
		}
	}

	if s.events != nil {
		stats := s.events.Stats()
		metrics.Events = &stats
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Enabled:          true,
			Connected:        s.mqtt.IsConnected(),
			Subscriptions:    s.mqtt.SubscriptionCount(),
			ConnectionLosses: s.mqtt.ConnectionLosses(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
