package mqtt

import "fmt"

// TopicPrefix is the root of every smart fridge topic.
// See configs/config.yaml for the device ID that forms the second level.
//
// Hierarchy: smartfridge/{device_id}/{component}/{kind}
const TopicPrefix = "smartfridge"

// Topics provides builders for one fridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{DeviceID: "fridge-001"}
//	topics.LatchCommand()
//	// Returns: "smartfridge/fridge-001/latch/command"
type Topics struct {
	DeviceID string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", TopicPrefix, t.DeviceID)
}

// =============================================================================
// Hardware Topics (bridge <-> core)
// =============================================================================

// SensorReading returns the topic the sensor bridge publishes samples on.
//
// Example: smartfridge/fridge-001/sensor/reading
func (t Topics) SensorReading() string {
	return t.base() + "/sensor/reading"
}

// SensorRequest returns the topic used to ask the sensor bridge for a sample.
//
// Example: smartfridge/fridge-001/sensor/request
func (t Topics) SensorRequest() string {
	return t.base() + "/sensor/request"
}

// LatchCommand returns the topic for latch lock/unlock/query commands.
//
// Example: smartfridge/fridge-001/latch/command
func (t Topics) LatchCommand() string {
	return t.base() + "/latch/command"
}

// LatchFeedback returns the topic the latch bridge reports positions on.
//
// Example: smartfridge/fridge-001/latch/feedback
func (t Topics) LatchFeedback() string {
	return t.base() + "/latch/feedback"
}

// BuzzerCommand returns the topic for buzzer on/off commands.
//
// Example: smartfridge/fridge-001/buzzer/command
func (t Topics) BuzzerCommand() string {
	return t.base() + "/buzzer/command"
}

// =============================================================================
// Core Topics (core -> consumers)
// =============================================================================

// State returns the retained controller snapshot topic.
//
// Example: smartfridge/fridge-001/state
func (t Topics) State() string {
	return t.base() + "/state"
}

// Event returns the topic for one kind of controller event. Pass "+" for
// a subscription pattern matching every kind.
//
// Example: smartfridge/fridge-001/event/lock_confirmed
func (t Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", t.base(), kind)
}

// SystemStatus returns the online/offline status topic (carries the LWT).
//
// Example: smartfridge/fridge-001/system/status
func (t Topics) SystemStatus() string {
	return t.base() + "/system/status"
}
