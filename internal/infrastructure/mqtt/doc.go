// Package mqtt provides MQTT client connectivity for the smart fridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The sensor, latch and buzzer are reached through small bridge processes
// that sit next to the hardware. The broker decouples the controller from
// the GPIO/I2C details:
//
//	Controller <-> MQTT Broker <-> Sensor / Latch / Buzzer bridges
//
// # Topics
//
//	smartfridge/{id}/sensor/reading   bridge -> core   {"temperature_c","humidity_pct","timestamp"}
//	smartfridge/{id}/sensor/request   core -> bridge   {"request_id","timestamp"}
//	smartfridge/{id}/latch/command    core -> bridge   {"id","command"}
//	smartfridge/{id}/latch/feedback   bridge -> core   {"command_id","position","status","error"}
//	smartfridge/{id}/buzzer/command   core -> bridge   {"on"}, retained
//	smartfridge/{id}/state            core, retained   controller snapshot
//	smartfridge/{id}/event/{kind}     core             controller events
//	smartfridge/{id}/system/status    core, retained   StatusMessage, also the LWT
//
// Timestamps sent by the bridges come from their own clocks and are only
// carried along; the controller orders samples by when it received them.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Event("+"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Println(topic, string(payload))
//	        return nil
//	    })
//	defer client.Unsubscribe(client.Topics().Event("+"))
package mqtt
