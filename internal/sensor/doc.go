// Package sensor samples the fridge's temperature/humidity sensor on a
// fixed period and feeds the results to the controller.
//
// Each sample is bounded by a timeout. A sample that times out, fails or
// reports a physically impossible value is a sensor fault: the Reader
// keeps the last good reading, marks it stale and reports the fault. It
// never stops sampling; the next tick simply tries again.
//
// Sources:
//   - MQTTSource requests a sample on smartfridge/<id>/sensor/request and
//     waits for the answer on smartfridge/<id>/sensor/reading
//   - SimulatedSource produces values around a configurable baseline
package sensor
