// Package nats provides a NATS Core control bus, for steering a proxy from
// another process.
package nats

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/frameflow/frameflow/control"
)

// BusName is the name used to register this bus.
const BusName = "nats"

// ConnectOptions are applied to every NATS connection the bus opens. A
// steering channel should survive broker restarts, so reconnection is
// unlimited by default. Override before Build to tune.
var ConnectOptions = []natsgo.Option{
	natsgo.Name("frameflow-control"),
	natsgo.RetryOnFailedConnect(true),
	natsgo.MaxReconnects(-1),
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	control.Register(BusName, Build)
}

// Build creates a new NATS control bus.
func Build(ctx context.Context, cfg control.BusConfig, logger watermill.LoggerAdapter) (control.Bus, error) {
	url := cfg.GetNATSURL()
	marshaler := &nats.NATSMarshaler{}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:         url,
			NatsOptions: ConnectOptions,
			Marshaler:   marshaler,
		},
		logger,
	)
	if err != nil {
		return control.Bus{}, err
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:         url,
			NatsOptions: ConnectOptions,
			Unmarshaler: marshaler,
		},
		logger,
	)
	if err != nil {
		publisher.Close()
		return control.Bus{}, err
	}

	return control.Bus{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
