// Package fridge implements the smart fridge control state machine.
//
// The Controller owns two pieces of state: the door latch (LockState) and the
// audible alarm (AlarmState). Everything that changes them, sensor ticks,
// operator requests and latch feedback, is serialised onto one loop goroutine.
//
// # Latch
//
// A lock or unlock request moves the visible state to Transitioning and
// commands the Latch. The visible state only becomes Locked or Unlocked once
// the actuator confirms that position. A jam or a confirmation timeout rolls
// the state back to the last confirmed position and raises the lock fault
// flag. A request arriving while a move is in flight fails with ErrBusy.
//
// # Alarm
//
//	Idle     --breach-->  Sounding
//	Sounding --silence--> Silenced
//	Silenced --breach-->  Sounding   (next reading still out of bounds)
//	Sounding --clear-->   Idle
//	Silenced --clear-->   Idle
//
// Stale readings never re-evaluate the alarm.
//
// # Usage
//
//	ctrl, err := fridge.NewController(fridge.Options{
//	    Thresholds: fridge.Thresholds{TemperatureMaxC: 8, TemperatureMinC: -2, HumidityMaxPct: 80},
//	    Latch:      actuator,
//	    Buzzer:     buzzerOutput,
//	})
//	go ctrl.Run(ctx)
//	outcome, err := ctrl.RequestLock(ctx)
package fridge
