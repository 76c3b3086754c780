// Package telemetry delivers controller events to everything outside the
// controller that wants them: the local event log, the MQTT state topics,
// InfluxDB and live WebSocket clients.
//
// Fanout implements fridge.Notifier. Notify is called on the controller
// loop, so it only enqueues; one worker goroutine hands each event to
// every sink in order. When the queue is full the event is dropped and
// counted rather than stalling the controller.
package telemetry
