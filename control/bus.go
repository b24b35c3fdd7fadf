package control

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Bus combines the publisher and subscriber pair produced by a bus builder.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both halves, returning the first error encountered.
func (b Bus) Close() error {
	var first error
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			first = err
		}
	}
	if b.Subscriber != nil {
		if err := b.Subscriber.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BusConfig provides the configuration values bus builders need. The
// interface keeps builders decoupled from the full config package.
type BusConfig interface {
	// GetControlBus returns the bus type name ("channel", "nats").
	GetControlBus() string

	// GetNATSURL returns the NATS server URL for the nats bus.
	GetNATSURL() string
}

// Builder is the function signature for creating a control bus from config.
// Each bus package provides a Builder and registers it.
type Builder func(ctx context.Context, cfg BusConfig, logger watermill.LoggerAdapter) (Bus, error)

// Registry maintains a mapping of bus names to builders. Bus packages
// register themselves using Register.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// DefaultRegistry is the global control-bus registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new bus registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a bus builder to the registry. The name should match the
// ControlBus config value.
func (r *Registry) Register(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// Has returns true if a bus is registered with the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[name]
	return ok
}

// Names returns the list of registered bus names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	return names
}

// Build creates a bus using the registered builder for the config's
// ControlBus value.
func (r *Registry) Build(ctx context.Context, cfg BusConfig, logger watermill.LoggerAdapter) (Bus, error) {
	if cfg == nil {
		return Bus{}, fmt.Errorf("control: config is required")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	name := cfg.GetControlBus()

	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()

	if !ok {
		return Bus{}, fmt.Errorf("control: unknown bus %q (registered: %v)", name, r.Names())
	}

	return builder(ctx, cfg, logger)
}

// Register adds a bus builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// Build creates a bus using the default registry.
func Build(ctx context.Context, cfg BusConfig, logger watermill.LoggerAdapter) (Bus, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
