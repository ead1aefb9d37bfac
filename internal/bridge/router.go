package bridge

import (
	"errors"
	"fmt"

	"github.com/nerrad567/ghosttube/internal/hass"
	"github.com/nerrad567/ghosttube/internal/infrastructure/mqtt"
)

// CommandHandler receives a routed command before decoding.
type CommandHandler func(kind hass.CommandKind, payload []byte)

// Subscriber is the subscribe half of a broker connection.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// CommandRouter maps inbound messages on the command topics to command
// kinds. Topics are matched exactly; nothing is decoded here.
type CommandRouter struct {
	commands []hass.CommandTopic
	byTopic  map[string]hass.CommandKind
	qos      byte
	logger   Logger
}

// NewCommandRouter creates a router for the command topics of t.
func NewCommandRouter(t hass.Topics, qos byte, logger Logger) *CommandRouter {
	if logger == nil {
		logger = nopLogger{}
	}
	cmds := t.Commands()
	byTopic := make(map[string]hass.CommandKind, len(cmds))
	for _, c := range cmds {
		byTopic[c.Topic] = c.Kind
	}
	return &CommandRouter{
		commands: cmds,
		byTopic:  byTopic,
		qos:      qos,
		logger:   logger,
	}
}

// Subscribe subscribes every command topic on s, delivering routed
// messages to handler. A rejected topic is logged and does not stop the
// others; the returned error joins every failure.
func (r *CommandRouter) Subscribe(s Subscriber, handler CommandHandler) error {
	var errs []error
	for _, c := range r.commands {
		err := s.Subscribe(c.Topic, r.qos, func(topic string, payload []byte) error {
			r.Route(topic, payload, handler)
			return nil
		})
		if err != nil {
			r.logger.Warn("command subscription failed", "topic", c.Topic, "error", err)
			errs = append(errs, fmt.Errorf("subscribing %s: %w", c.Topic, err))
		}
	}
	return errors.Join(errs...)
}

// Route delivers one message. It reports false for topics that are not
// command topics.
func (r *CommandRouter) Route(topic string, payload []byte, handler CommandHandler) bool {
	kind, ok := r.byTopic[topic]
	if !ok {
		r.logger.Warn("dropping message on unknown topic", "topic", topic)
		return false
	}

	r.logger.Debug("command received", "kind", kind, "topic", topic)
	if handler != nil {
		handler(kind, payload)
	}
	return true
}
