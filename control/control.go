package control

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// StatsTopicSuffix is appended to the control topic to form the topic where
// statistics snapshots are published in reply to a Statistics command.
const StatsTopicSuffix = ".stats"

// Publisher publishes steering commands on a control topic.
type Publisher struct {
	pub   message.Publisher
	topic string
}

// NewPublisher wraps a Watermill publisher for a control topic.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	return &Publisher{pub: pub, topic: topic}
}

// Publish sends one command. Publishing Unknown is rejected by the codec and
// reported by the underlying publisher as an empty-payload message; callers
// use the typed constants.
func (p *Publisher) Publish(cmd Command) error {
	return p.PublishRaw(cmd.Payload())
}

// PublishRaw sends an arbitrary payload on the control topic. Useful for
// controllers exercising forward compatibility.
func (p *Publisher) PublishRaw(payload []byte) error {
	return p.pub.Publish(p.topic, message.NewMessage(watermill.NewUUID(), payload))
}

// PublishStats publishes an encoded statistics snapshot on the stats reply
// topic derived from the control topic.
func (p *Publisher) PublishStats(encoded []byte) error {
	return p.pub.Publish(p.topic+StatsTopicSuffix, message.NewMessage(watermill.NewUUID(), encoded))
}

// Listen subscribes to the control topic and decodes commands as they
// arrive. Unrecognized payloads are acked, logged at debug, and dropped.
// The returned channel closes when the subscription ends. Commands are
// consumed eagerly: a listener that subscribes late misses earlier commands.
func Listen(ctx context.Context, sub message.Subscriber, topic string, logger watermill.LoggerAdapter) (<-chan Command, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	msgs, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Command, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			cmd, ok := Parse(msg.Payload)
			msg.Ack()
			if !ok {
				logger.Debug("Ignoring unrecognized control payload", watermill.LogFields{
					"topic":   topic,
					"payload": string(msg.Payload),
				})
				continue
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
