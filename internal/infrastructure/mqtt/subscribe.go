package mqtt

import (
	"fmt"
	"strings"
)

// validateTopic rejects empty topics and MQTT wildcards. The bridge only
// ever names exact topics, and a wildcard in a publish topic is a protocol
// error.
func validateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, topic)
	}
	return nil
}

// Subscribe registers a handler for messages on one exact topic.
//
// The handler runs on a paho goroutine with panic recovery. Subscriptions
// are not tracked: the session is clean and paho's reconnect is off, so the
// caller subscribes again after every Connect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}
