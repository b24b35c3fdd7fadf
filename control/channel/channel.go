// Package channel provides an in-memory Go channel control bus. It is the
// default bus: publish/subscribe with no replay, so late subscribers miss
// earlier commands, exactly the semantics the steering protocol requires.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/frameflow/frameflow/control"
)

// BusName is the name used to register this bus.
const BusName = "channel"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	control.Register(BusName, Build)
}

// Build creates a new Go channel control bus. Publishing blocks until
// subscribers ack: without it GoChannel hands each message to its own
// delivery goroutine and a burst of commands can arrive reordered, which the
// steering state machine cannot tolerate (RESUME overtaking PAUSE leaves a
// relay paused forever). Listeners ack on receipt and publishing to a topic
// with no subscribers still returns immediately, so the no-replay pub/sub
// semantics are unchanged.
func Build(ctx context.Context, cfg control.BusConfig, logger watermill.LoggerAdapter) (control.Bus, error) {
	pub, sub := Factory(gochannel.Config{BlockPublishUntilSubscriberAck: true}, logger)
	return control.Bus{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
