package mqtt

import (
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "ghost-tube/media_player/living-room-tv/state")
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Retained Messages:
//   - When true, broker stores the last message for each topic
//   - New subscribers immediately receive the retained message
//   - Use for availability and discovery topics
//   - Don't use for commands
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	err := client.Publish(topics.Available, []byte("ON"), 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return c.PublishWithTimeout(topic, payload, qos, retained, defaultPublishTimeout)
}

// PublishWithTimeout is Publish with an explicit acknowledgment timeout.
// A timeout wraps both ErrPublishFailed and ErrTimeout.
func (c *Client) PublishWithTimeout(topic string, payload []byte, qos byte, retained bool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	if err := validateTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", ErrPublishFailed, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
