// Package mqtt provides MQTT client connectivity for the IR bridge.
//
// This package manages:
//   - Connection to the Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is the message bus between Gray Logic Core and its protocol bridges.
// The IR bridge subscribes to its command and request topics and publishes
// state, acknowledgements, discovery and health.
//
//	Gray Logic Core ↔ MQTT Broker ↔ IR Bridge
//
// # Security Considerations
//
//   - TLS should be enabled in production (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	will := &mqtt.Will{Topic: mqtt.Topics{}.BridgeHealth("ir"), Payload: lwt, QoS: 1, Retained: true}
//	client, err := mqtt.Connect(cfg.MQTT, will)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommands("ir"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
