package frameflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/frameflow/frameflow/control"
	"github.com/frameflow/frameflow/endpoint"
	"github.com/frameflow/frameflow/internal/config"
	"github.com/frameflow/frameflow/internal/logging"
	"github.com/frameflow/frameflow/internal/relay"
)

// ErrConfigRequired is returned by NewService when no config is given.
var ErrConfigRequired = errors.New("frameflow: config is required")

// ServiceDependencies carries the pieces a Service cannot build itself.
// Frontend and Backend are required; the rest have working defaults.
type ServiceDependencies struct {
	// Frontend faces clients, Backend faces workers. The service relays
	// between them but does not own them; close them after Run returns.
	Frontend endpoint.Endpoint
	Backend  endpoint.Endpoint

	// Hook is applied to every relayed frame. Nil means pass-through.
	Hook Hook

	Logger ServiceLogger

	// Registerer receives the run's Prometheus collectors when the config
	// enables metrics. Nil selects the default registerer.
	Registerer prometheus.Registerer
}

// Service hosts one steerable relay: the control bus named by the config,
// the command subscription feeding the relay, and the relay core itself.
//
// The control bus must have been registered before NewService runs; import
// the bus packages for their side effects, for example:
//
//	import _ "github.com/frameflow/frameflow/control/buses"
type Service struct {
	cfg        *config.Config
	bus        control.Bus
	proxy      *relay.Proxy
	controller *control.Publisher
	log        logging.ServiceLogger
}

// NewService validates the config, builds the control bus, and wires the
// relay. The context governs the control subscription: canceling it ends
// steering for the service's lifetime.
func NewService(ctx context.Context, cfg *config.Config, deps ServiceDependencies) (*Service, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("frameflow: invalid config: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = logging.Nop()
	}
	wmLog := logging.NewWatermillAdapter(log)

	bus, err := control.Build(ctx, cfg, wmLog)
	if err != nil {
		return nil, err
	}

	commands, err := control.Listen(ctx, bus.Subscriber, cfg.Topic(), wmLog)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("frameflow: control subscription failed: %w", err)
	}

	stats := relay.NewStats(deps.Registerer)
	if cfg.MetricsEnabled {
		if err := stats.Register(); err != nil {
			_ = bus.Close()
			return nil, fmt.Errorf("frameflow: registering metrics failed: %w", err)
		}
	}

	controller := control.NewPublisher(bus.Publisher, cfg.Topic())
	proxy, err := relay.New(relay.Params{
		Frontend:        deps.Frontend,
		Backend:         deps.Backend,
		Commands:        commands,
		StatsPublisher:  controller,
		Hook:            deps.Hook,
		PollInterval:    cfg.Interval(),
		NonBlockingSend: cfg.NonBlockingSend,
		Stats:           stats,
		Logger:          log,
	})
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		bus:        bus,
		proxy:      proxy,
		controller: controller,
		log:        log,
	}, nil
}

// Run drives the relay until terminated; see Proxy.Run for the error
// contract.
func (s *Service) Run(ctx context.Context) error {
	return s.proxy.Run(ctx)
}

// Controller publishes steering commands on the service's control topic.
// Any process connected to the same bus can steer equally well; this one is
// merely pre-wired.
func (s *Service) Controller() *control.Publisher { return s.controller }

// Bus exposes the underlying control bus, for worker pools and external
// controllers sharing the service's transport.
func (s *Service) Bus() control.Bus { return s.bus }

// State reports the relay's current run state.
func (s *Service) State() State { return s.proxy.State() }

// Stats returns a snapshot of the relay counters.
func (s *Service) Stats() StatsSnapshot { return s.proxy.Stats() }

// Close releases the control bus. The relay must have finished first.
func (s *Service) Close() error { return s.bus.Close() }

// NewEndpointConfig derives an endpoint config from the service config's
// high-water marks.
func NewEndpointConfig(cfg *config.Config) endpoint.Config {
	if cfg == nil {
		return endpoint.Config{}
	}
	return endpoint.Config{SendHWM: cfg.SendHWM, RecvHWM: cfg.RecvHWM}
}
