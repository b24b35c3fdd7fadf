// Package relay implements the steerable, hookable message-relay core: a
// single-goroutine reactor that forwards whole messages frame-by-frame
// between two data endpoints, invokes a per-frame hook, and interleaves
// control-plane commands with data-plane traffic without breaking message
// atomicity.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/frameflow/frameflow/control"
	"github.com/frameflow/frameflow/endpoint"
	"github.com/frameflow/frameflow/frame"
	"github.com/frameflow/frameflow/internal/config"
	"github.com/frameflow/frameflow/internal/logging"
)

// State is the proxy run state.
type State int

const (
	// StateRunning relays in both directions. Initial state.
	StateRunning State = iota

	// StatePaused stops pulling messages from the data endpoints; unread
	// messages accumulate upstream, bounded by the senders' own flow
	// control. The control channel is still observed.
	StatePaused

	// StateTerminated is terminal; the run loop has exited.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Params configures a Proxy. Frontend and Backend are required; the rest
// have working defaults.
type Params struct {
	// Frontend is the client-facing endpoint, Backend the worker-facing
	// one. The proxy relays between them but owns neither: endpoint
	// lifecycle stays with the caller.
	Frontend endpoint.Endpoint
	Backend  endpoint.Endpoint

	// Commands delivers decoded steering commands. Nil disables steering;
	// the run then ends only through context cancellation or a fault.
	Commands <-chan control.Command

	// StatsPublisher, when set, receives JSON snapshots in reply to
	// STATISTICS commands.
	StatsPublisher *control.Publisher

	// Hook is the per-frame transform. Nil means identity pass-through.
	Hook Hook

	// PollInterval bounds the reactor's blocking wait. Zero selects the
	// package default.
	PollInterval time.Duration

	// NonBlockingSend selects the non-blocking send discipline: a message
	// that hits the destination's high-water mark is staged and retried on
	// later iterations instead of blocking its direction.
	NonBlockingSend bool

	// Stats, when set, replaces the proxy's own collector. Useful for
	// sharing one registered collector across consecutive runs.
	Stats *Stats

	// Logger defaults to a no-op logger.
	Logger logging.ServiceLogger
}

// Proxy is the relay state machine. One instance drives one Run at a time;
// the run itself is single-goroutine and needs no internal locking beyond
// the stats collector read by other goroutines.
type Proxy struct {
	frontend endpoint.Endpoint
	backend  endpoint.Endpoint
	commands <-chan control.Command
	statsPub *control.Publisher
	hook     Hook
	interval time.Duration
	nonBlock bool
	stats    *Stats
	log      logging.ServiceLogger

	state State
	// pendingFlush marks a direction whose destination staged a message at
	// its high-water mark; the flush retries before that direction relays
	// anything new.
	pendingFlush [2]bool
}

// New creates a proxy from Params.
func New(p Params) (*Proxy, error) {
	if p.Frontend == nil || p.Backend == nil {
		return nil, errors.New("relay: frontend and backend endpoints are required")
	}
	if p.Hook == nil {
		p.Hook = nop{}
	}
	if p.PollInterval <= 0 {
		p.PollInterval = config.DefaultPollInterval
	}
	if p.Stats == nil {
		p.Stats = NewStats(nil)
	}
	if p.Logger == nil {
		p.Logger = logging.Nop()
	}
	return &Proxy{
		frontend: p.Frontend,
		backend:  p.Backend,
		commands: p.Commands,
		statsPub: p.StatsPublisher,
		hook:     p.Hook,
		interval: p.PollInterval,
		nonBlock: p.NonBlockingSend,
		stats:    p.Stats,
		log:      p.Logger.With(logging.LogFields{"component": "relay"}),
	}, nil
}

// State returns the state last recorded by the run.
func (p *Proxy) State() State { return p.stats.State() }

// Stats returns a snapshot of the run counters.
func (p *Proxy) Stats() StatsSnapshot { return p.stats.Snapshot() }

// Run drives the relay until a TERMINATE command arrives (nil return), the
// context is canceled (ErrTerminating), or a fatal fault occurs (typed
// error). Commands are observed between whole-message relays, never
// mid-message, so cancellation cannot truncate a message.
func (p *Proxy) Run(ctx context.Context) error {
	p.setState(StateRunning)
	p.log.Info("Relay started", logging.LogFields{
		"poll_interval": p.interval.String(),
		"send_mode":     p.sendMode(),
	})

	for {
		ev, err := p.poll(ctx)
		if err != nil {
			p.setState(StateTerminated)
			p.log.Info("Relay terminating", logging.LogFields{"reason": "context"})
			return err
		}

		if ev.cmdOK {
			if terminate := p.apply(ev.cmd); terminate {
				p.setState(StateTerminated)
				p.log.Info("Relay terminated", nil)
				return nil
			}
		}
		if p.state != StateRunning {
			continue
		}

		for _, dir := range []Direction{FrontendToBackend, BackendToFrontend} {
			if p.pendingFlush[dir] {
				if err := p.flush(dir); err != nil {
					p.setState(StateTerminated)
					return err
				}
			}
			if p.pendingFlush[dir] {
				// still saturated; leave this direction alone so the
				// staged message keeps its place in line
				continue
			}
			if err := p.relayOne(ctx, dir); err != nil {
				p.setState(StateTerminated)
				p.log.Error("Relay failed", err, logging.LogFields{"direction": dir.String()})
				return err
			}
		}
	}
}

type events struct {
	cmd   control.Command
	cmdOK bool
}

// poll is the reactor's single blocking point: one bounded wait across the
// control channel, both data endpoints' readiness, and the context. All
// sources are observed on every iteration so a burst on one cannot starve
// the others; while paused, data readiness is deliberately not selected.
func (p *Proxy) poll(ctx context.Context) (events, error) {
	var ev events

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	var frontReady, backReady <-chan struct{}
	if p.state == StateRunning {
		frontReady = p.frontend.Ready()
		backReady = p.backend.Ready()
	}

	select {
	case <-ctx.Done():
		return ev, fmt.Errorf("%w: %w", ErrTerminating, context.Cause(ctx))
	case cmd, ok := <-p.commands:
		if !ok {
			// control subscription ended; keep relaying unsteered
			p.commands = nil
		} else {
			ev.cmd, ev.cmdOK = cmd, true
		}
	case <-frontReady:
	case <-backReady:
	case <-timer.C:
	}

	// sweep the command channel without blocking, so data traffic that won
	// the select cannot delay steering past one iteration
	if !ev.cmdOK && p.commands != nil {
		select {
		case cmd, ok := <-p.commands:
			if !ok {
				p.commands = nil
			} else {
				ev.cmd, ev.cmdOK = cmd, true
			}
		default:
		}
	}
	return ev, nil
}

// apply executes one control command. Returns true for TERMINATE.
func (p *Proxy) apply(cmd control.Command) bool {
	switch cmd {
	case control.Pause:
		if p.state == StateRunning {
			p.setState(StatePaused)
			p.log.Info("Relay paused", nil)
		}
	case control.Resume:
		if p.state == StatePaused {
			p.setState(StateRunning)
			p.log.Info("Relay resumed", nil)
		}
	case control.Terminate:
		return true
	case control.Statistics:
		p.publishStats()
	case control.Stop:
		// pool-wide worker command; not addressed to the relay
	}
	return false
}

func (p *Proxy) publishStats() {
	if p.statsPub == nil {
		p.log.Debug("No stats publisher configured; dropping STATISTICS request", nil)
		return
	}
	snap := p.stats.Snapshot()
	encoded, err := sonic.Marshal(snap)
	if err != nil {
		p.log.Error("Encoding stats snapshot failed", err, nil)
		return
	}
	if err := p.statsPub.PublishStats(encoded); err != nil {
		p.log.Error("Publishing stats snapshot failed", err, nil)
	}
}

// relayOne relays at most one whole message in the given direction. A
// would-block on the first frame means the readiness wakeup was spurious;
// mid-message it means the rest is still in flight, and the relay waits for
// it rather than interleave another message.
func (p *Proxy) relayOne(ctx context.Context, dir Direction) error {
	src, dst := p.ends(dir)

	for idx := 0; ; {
		f, more, err := src.TryRecv()
		if errors.Is(err, endpoint.ErrWouldBlock) {
			if idx == 0 {
				return nil
			}
			select {
			case <-src.Ready():
				continue
			case <-ctx.Done():
				return fmt.Errorf("%w: canceled awaiting frame %d of an in-flight message", ErrTerminating, idx)
			}
		}
		if err != nil {
			return &EndpointError{Direction: dir, Op: "receive", Err: err}
		}

		if herr := p.hook.Transform(dir, idx, more, f); herr != nil {
			p.stats.recordHookAbort(dir)
			return &HookError{Direction: dir, FrameIndex: idx, Err: herr}
		}

		if err := p.forward(dst, dir, f, more); err != nil {
			return err
		}
		p.stats.recordFrame(dir, len(f), !more)

		if !more {
			return nil
		}
		idx++
	}
}

// forward hands one frame to the destination under the configured send
// discipline. In non-blocking mode a message that completes against a full
// queue stays staged in the endpoint and the direction is marked for flush.
func (p *Proxy) forward(dst endpoint.Endpoint, dir Direction, f frame.Frame, more bool) error {
	if p.nonBlock {
		err := dst.TrySend(f, more)
		if errors.Is(err, endpoint.ErrWouldBlock) {
			p.pendingFlush[dir] = true
			return nil
		}
		if err != nil {
			return &EndpointError{Direction: dir, Op: "forward", Err: err}
		}
		return nil
	}
	if err := dst.Send(f, more); err != nil {
		return &EndpointError{Direction: dir, Op: "forward", Err: err}
	}
	return nil
}

func (p *Proxy) flush(dir Direction) error {
	_, dst := p.ends(dir)
	err := dst.Flush()
	if errors.Is(err, endpoint.ErrWouldBlock) {
		return nil
	}
	if err != nil {
		return &EndpointError{Direction: dir, Op: "forward", Err: err}
	}
	p.pendingFlush[dir] = false
	return nil
}

func (p *Proxy) ends(dir Direction) (src, dst endpoint.Endpoint) {
	if dir == FrontendToBackend {
		return p.frontend, p.backend
	}
	return p.backend, p.frontend
}

func (p *Proxy) setState(s State) {
	p.state = s
	p.stats.setState(s)
}

func (p *Proxy) sendMode() string {
	if p.nonBlock {
		return "non-blocking"
	}
	return "blocking"
}
