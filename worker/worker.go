// Package worker runs a pool of handler goroutines behind the proxy's
// backend. Each worker owns a dealer endpoint and a control subscription, so
// a STOP broadcast reaches every worker no matter which one the round-robin
// dispatch favored.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/frameflow/frameflow/control"
	"github.com/frameflow/frameflow/endpoint"
	"github.com/frameflow/frameflow/frame"
	"github.com/frameflow/frameflow/internal/config"
	"github.com/frameflow/frameflow/internal/logging"
)

// Handler processes one request message. identity is the originating
// client's routing identity; request holds the payload frames. Each returned
// message is sent back as a reply to that client. Returning no messages is
// valid: fire-and-forget requests simply produce nothing.
//
// A returned error drops the request and is logged; the worker keeps
// serving.
type Handler func(ctx context.Context, identity frame.Frame, request frame.Message) ([]frame.Message, error)

// Config configures a Pool.
type Config struct {
	// Address is the backend endpoint workers connect to. Required.
	Address string

	// Size is the number of workers. Zero means one.
	Size int

	// Registry resolves Address. Nil selects the process-wide default.
	Registry *endpoint.Registry

	// Subscriber, when set, feeds each worker a control subscription; STOP
	// and TERMINATE broadcasts then end the pool. Nil leaves the pool
	// steerable only through context cancellation.
	Subscriber message.Subscriber

	// ControlTopic defaults to the package-wide default topic.
	ControlTopic string

	// PollInterval bounds each worker's blocking wait.
	PollInterval time.Duration

	Logger logging.ServiceLogger
}

func (c Config) size() int {
	if c.Size <= 0 {
		return 1
	}
	return c.Size
}

func (c Config) topic() string {
	if c.ControlTopic == "" {
		return config.DefaultControlTopic
	}
	return c.ControlTopic
}

func (c Config) interval() time.Duration {
	if c.PollInterval <= 0 {
		return config.DefaultPollInterval
	}
	return c.PollInterval
}

// Pool fans requests out over its workers and routes replies back through
// the identity frame each request carried in.
type Pool struct {
	cfg     Config
	handler Handler
	log     logging.ServiceLogger
	handled atomic.Uint64
}

// NewPool creates a pool; workers start on Run.
func NewPool(cfg Config, h Handler) (*Pool, error) {
	if cfg.Address == "" {
		return nil, errors.New("worker: backend address is required")
	}
	if h == nil {
		return nil, errors.New("worker: handler is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Pool{
		cfg:     cfg,
		handler: h,
		log:     log.With(logging.LogFields{"component": "worker"}),
	}, nil
}

// Handled reports how many requests the handler has completed without error.
func (p *Pool) Handled() uint64 { return p.handled.Load() }

// Run starts the workers and blocks until all of them exit: on context
// cancellation, on a STOP or TERMINATE broadcast, or on a setup fault.
func (p *Pool) Run(ctx context.Context) error {
	n := p.cfg.size()
	p.log.Info("Worker pool starting", logging.LogFields{"size": n})

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs[id] = p.worker(ctx, id)
		}(i)
	}
	wg.Wait()

	p.log.Info("Worker pool stopped", logging.LogFields{"handled": p.Handled()})
	return errors.Join(errs...)
}

func (p *Pool) worker(ctx context.Context, id int) error {
	d := endpoint.NewDealer(endpoint.Config{Registry: p.cfg.Registry})
	if err := d.Connect(p.cfg.Address); err != nil {
		return fmt.Errorf("worker %d: %w", id, err)
	}
	defer d.Close()

	var commands <-chan control.Command
	if p.cfg.Subscriber != nil {
		c, err := control.Listen(ctx, p.cfg.Subscriber, p.cfg.topic(), logging.NewWatermillAdapter(p.log))
		if err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}
		commands = c
	}

	log := p.log.With(logging.LogFields{"worker": id})
	ticker := time.NewTicker(p.cfg.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if cmd == control.Stop || cmd == control.Terminate {
				log.Debug("Worker stopping", logging.LogFields{"command": cmd.String()})
				return nil
			}
		case <-d.Ready():
			if err := p.serve(ctx, d, log); err != nil {
				return fmt.Errorf("worker %d: %w", id, err)
			}
		case <-ticker.C:
			if err := p.serve(ctx, d, log); err != nil {
				return fmt.Errorf("worker %d: %w", id, err)
			}
		}
	}
}

// serve drains every request currently queued on the dealer.
func (p *Pool) serve(ctx context.Context, d *endpoint.Dealer, log logging.ServiceLogger) error {
	for {
		msg, err := recvMessage(ctx, d)
		if errors.Is(err, endpoint.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}

		identity := msg[0]
		replies, herr := p.handler(ctx, identity, msg[1:])
		if herr != nil {
			log.Error("Handler failed; request dropped", herr, nil)
			continue
		}
		for _, reply := range replies {
			if err := sendReply(d, identity, reply); err != nil {
				return err
			}
		}
		p.handled.Add(1)
	}
}

// recvMessage collects one whole message. ErrWouldBlock on the first frame
// means no request is queued; mid-message it waits, since the remaining
// frames are guaranteed to be in flight.
func recvMessage(ctx context.Context, d *endpoint.Dealer) (frame.Message, error) {
	var msg frame.Message
	for {
		f, more, err := d.TryRecv()
		if errors.Is(err, endpoint.ErrWouldBlock) {
			if len(msg) == 0 {
				return nil, err
			}
			select {
			case <-d.Ready():
				continue
			case <-ctx.Done():
				return nil, context.Cause(ctx)
			}
		}
		if err != nil {
			return nil, err
		}
		msg = append(msg, f)
		if !more {
			return msg, nil
		}
	}
}

func sendReply(d *endpoint.Dealer, identity frame.Frame, reply frame.Message) error {
	if len(reply) == 0 {
		return nil
	}
	if err := d.Send(identity, true); err != nil {
		return err
	}
	for i, f := range reply {
		if err := d.Send(f, i < len(reply)-1); err != nil {
			return err
		}
	}
	return nil
}
