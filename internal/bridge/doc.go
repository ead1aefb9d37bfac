// Package bridge keeps the GhostTube device present on the MQTT broker.
//
// It owns three concerns:
//   - ConnectionManager: the connect/reconnect state machine, availability
//     and discovery publication, the Last-Will, and the position ticker
//   - CommandRouter: exact-topic routing of the five command topics
//   - DecodeCommand: turning a routed (kind, payload) pair into a Command
//
// # Reconnect Policy
//
// A failed attempt or a dropped connection schedules a single reconnect
// timer. The delay starts at the configured base (5s), doubles on every
// consecutive failure and is capped (60s). A successful connect resets it.
//
// The first failure of a streak raises one user notification through the
// Notifier; the rest of the streak stays quiet.
//
// # Visibility
//
// When the host goes to standby the socket stays open. Only the advertised
// availability changes (OFF) and the position ticker pauses; the registered
// idle callback lets the session layer clear the published media state.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Broker writes are
// serialised so that availability changes reach the broker in the order
// they were decided.
package bridge
