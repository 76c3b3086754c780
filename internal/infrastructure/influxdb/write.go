package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the controller.
const (
	MeasurementClimate = "fridge_climate"
	MeasurementState   = "fridge_state"
)

// ClimatePoint builds the point for one sensor sample.
//
// Tags: device_id. Fields: temperature_c, humidity_pct, stale.
func ClimatePoint(deviceID string, temperatureC, humidityPct float64, stale bool, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementClimate,
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"temperature_c": temperatureC,
			"humidity_pct":  humidityPct,
			"stale":         stale,
		},
		at,
	)
}

// StatePoint builds the point for one controller state change.
//
// Tags: device_id, event. Fields: lock, alarm, lock_fault, sensor_fault,
// plus detail when non-empty.
func StatePoint(deviceID, event, lock, alarm string, lockFault, sensorFault bool, detail string, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"lock":         lock,
		"alarm":        alarm,
		"lock_fault":   lockFault,
		"sensor_fault": sensorFault,
	}
	if detail != "" {
		fields["detail"] = detail
	}

	return write.NewPoint(
		MeasurementState,
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		fields,
		at,
	)
}

// WriteReading queues one sensor sample. It goes out with the next batch.
//
// Example:
//
//	client.WriteReading(4.2, 55, false, time.Now())
func (c *Client) WriteReading(temperatureC, humidityPct float64, stale bool, at time.Time) {
	c.write(ClimatePoint(c.deviceID, temperatureC, humidityPct, stale, at), false)
}

// WriteStateChange records a lock or alarm transition or a fault and
// flushes it, along with any readings batched before it.
func (c *Client) WriteStateChange(event, lock, alarm string, lockFault, sensorFault bool, detail string, at time.Time) {
	c.write(StatePoint(c.deviceID, event, lock, alarm, lockFault, sensorFault, detail, at), true)
}
