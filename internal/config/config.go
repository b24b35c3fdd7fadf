package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval bounds the worst-case latency between a published
// control command and the proxy observing it while data endpoints are idle.
const DefaultPollInterval = 25 * time.Millisecond

// DefaultControlTopic is the control topic used when none is configured.
const DefaultControlTopic = "frameflow.control"

// Config groups the settings of one proxy run. Zero values select the
// documented defaults.
type Config struct {
	// ControlBus selects the pub/sub backing for the control channel.
	// Supported values: "channel" (in-process, default) or "nats".
	ControlBus string

	// ControlTopic is the topic steering commands arrive on. Statistics
	// snapshots are published on ControlTopic + ".stats".
	ControlTopic string

	// NATSURL is the NATS server URL, required when ControlBus is "nats".
	NATSURL string

	// PollInterval bounds the reactor's blocking wait. Smaller values
	// tighten command latency at the cost of idle wakeups.
	PollInterval time.Duration

	// NonBlockingSend selects the non-blocking send discipline: at the
	// destination's high-water mark the relay stages the message and
	// retries on later iterations instead of blocking the direction.
	NonBlockingSend bool

	// SendHWM and RecvHWM are the default high-water marks for endpoints
	// the caller asks the library to construct. Zero selects the endpoint
	// package default.
	SendHWM int
	RecvHWM int

	// MetricsEnabled registers the run's Prometheus collectors with the
	// default registerer.
	MetricsEnabled bool
}

// Getter methods implementing control.BusConfig.
func (c *Config) GetControlBus() string { return c.busName() }
func (c *Config) GetNATSURL() string    { return c.NATSURL }

func (c *Config) busName() string {
	if c.ControlBus == "" {
		return "channel"
	}
	return c.ControlBus
}

// Topic returns the configured control topic or the default.
func (c *Config) Topic() string {
	if c.ControlTopic == "" {
		return DefaultControlTopic
	}
	return c.ControlTopic
}

// Interval returns the configured poll interval or the default.
func (c *Config) Interval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

// Validate checks the configuration. Returns an error describing every
// missing or invalid field.
func (c *Config) Validate() error {
	var errs []error

	if c.busName() == "nats" && c.NATSURL == "" {
		errs = append(errs, errors.New("nats: URL is required"))
	}
	if c.PollInterval < 0 {
		errs = append(errs, errors.New("poll interval cannot be negative"))
	}
	if c.SendHWM < 0 {
		errs = append(errs, fmt.Errorf("send high-water mark cannot be negative: %d", c.SendHWM))
	}
	if c.RecvHWM < 0 {
		errs = append(errs, fmt.Errorf("receive high-water mark cannot be negative: %d", c.RecvHWM))
	}

	return errors.Join(errs...)
}
