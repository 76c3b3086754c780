// Package influxdb provides InfluxDB connectivity for fridge telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring.
//
// # Measurements
//
//   - fridge_climate: one point per accepted sensor sample
//   - fridge_state: one point per lock/alarm transition or fault
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading(4.2, 55, false, time.Now())
//	client.WriteStateChange("alarm_changed", "locked", "sounding", false, false, "", time.Now())
//
// # Error Handling
//
// Readings are batched in the background; state changes flush the batch.
// Write failures reach the SetOnError callback wrapped in ErrWriteFailed.
// Connection and health check errors are returned directly.
package influxdb
