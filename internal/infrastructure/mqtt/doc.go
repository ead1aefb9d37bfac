// Package mqtt provides MQTT client connectivity for the GhostTube bridge.
//
// This package manages:
//   - A single broker connection over tcp, ssl, ws or wss
//   - Last Will and Testament (LWT) configuration
//   - Message publishing with QoS and retain flags
//   - Topic subscriptions with handler panic recovery
//   - Connection-lost notification
//
// The package does not decide when to reconnect. The bridge's connection
// manager owns that policy (capped exponential backoff) and dials a fresh
// Client for every attempt; paho's own auto-reconnect is always off.
//
// # Usage
//
//	client, err := mqtt.Connect(mqtt.Options{
//	    Host:     "broker.local",
//	    Port:     1883,
//	    ClientID: "ghosttube-bridge",
//	    Will:     &mqtt.Will{Topic: topics.Available, Payload: "OFF", QoS: 1, Retained: true},
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Publish(topics.Available, []byte("ON"), 1, true)
//
// # Security Considerations
//
//   - Enable TLS (ssl:// or wss://) when the broker is not on a trusted LAN
//   - Credentials are validated against the broker ACL
package mqtt
