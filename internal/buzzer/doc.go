// Package buzzer drives the fridge's audible alarm.
//
// Output implements fridge.Buzzer. Sound and Silence only record the
// desired state and return; a worker goroutine applies the latest desired
// state to the driver and skips writes that would not change anything.
// The buzzer has no policy of its own: when to sound is decided by the
// fridge controller.
package buzzer
