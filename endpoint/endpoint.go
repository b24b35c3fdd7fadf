// Package endpoint provides the non-blocking, message-oriented channels a
// relay core runs on. Two addressing disciplines are implemented over an
// in-process transport: identity-routing (Router), which tags every inbound
// message with the originating peer's identity frame and uses an outbound
// message's leading frame to pick the destination, and round-robin dispatch
// (Dealer), which fairly distributes outbound messages across connected peers
// and fairly collects inbound ones.
//
// Endpoints move whole messages atomically through bounded pipes; the
// frame-level API surfaces them one frame at a time with a continuation flag.
// Queue limits are governed by high-water marks: at the mark, Send blocks and
// TrySend/Flush report ErrWouldBlock.
package endpoint

import (
	"errors"

	"github.com/frameflow/frameflow/frame"
)

// Errors returned by endpoints. ErrWouldBlock is transient and retried by the
// caller; the rest are hard failures or setup mistakes.
var (
	// ErrWouldBlock reports that no message is queued (receive) or that the
	// destination queue is at its high-water mark (send).
	ErrWouldBlock = errors.New("endpoint: operation would block")

	// ErrClosed reports that the endpoint, or every peer it could deliver
	// to, has been closed.
	ErrClosed = errors.New("endpoint: closed")

	// ErrInvalidAddress reports an address string that is not of the form
	// "inproc://name".
	ErrInvalidAddress = errors.New("endpoint: invalid address")

	// ErrAddressInUse reports a Bind on an address that is already bound.
	ErrAddressInUse = errors.New("endpoint: address already in use")

	// ErrUnknownAddress reports a Connect to an address nothing is bound to.
	ErrUnknownAddress = errors.New("endpoint: no endpoint bound at address")
)

// DefaultHWM is the per-direction high-water mark applied when a Config
// leaves SendHWM or RecvHWM zero. A pipe's total capacity is the sender's
// SendHWM plus the receiver's RecvHWM.
const DefaultHWM = 1000

// Config carries the knobs for a single endpoint.
type Config struct {
	// Identity is the routing identity presented to identity-routing peers.
	// Empty means a transport-assigned identity is generated on Connect.
	// Explicit identities must satisfy frame.ValidateIdentity.
	Identity frame.Frame

	// SendHWM and RecvHWM bound the number of queued-but-undelivered
	// messages per peer in each direction. Zero selects DefaultHWM.
	SendHWM int
	RecvHWM int

	// Registry resolves inproc addresses. Nil selects DefaultRegistry.
	Registry *Registry
}

func (c Config) sendHWM() int {
	if c.SendHWM <= 0 {
		return DefaultHWM
	}
	return c.SendHWM
}

func (c Config) recvHWM() int {
	if c.RecvHWM <= 0 {
		return DefaultHWM
	}
	return c.RecvHWM
}

func (c Config) registry() *Registry {
	if c.Registry == nil {
		return DefaultRegistry
	}
	return c.Registry
}

// Endpoint is the channel contract consumed by the relay core and the worker
// pool. Implementations are not safe for use by more than one goroutine at a
// time; concurrency safety between distinct connected endpoints is the
// transport's responsibility.
type Endpoint interface {
	// TryRecv returns the next frame and whether more frames of the same
	// message follow. It returns ErrWouldBlock when no message is queued.
	TryRecv() (f frame.Frame, more bool, err error)

	// HasMore reports whether the current inbound message has frames left.
	HasMore() bool

	// Send forwards one frame; more marks it as part of a larger message.
	// When the frame completes a message, Send blocks until the destination
	// queue has space.
	Send(f frame.Frame, more bool) error

	// TrySend is Send's non-blocking variant. When the completed message
	// cannot be queued it stays staged and ErrWouldBlock is returned; the
	// caller retries with Flush before sending anything new.
	TrySend(f frame.Frame, more bool) error

	// Flush retries a message staged by TrySend. It is a no-op when nothing
	// is staged and returns ErrWouldBlock while the queue stays full.
	Flush() error

	// Ready is the readiness-notification primitive for a poller: the
	// channel yields a token when a complete message may be receivable.
	// Wakeups can be spurious; consumers must tolerate ErrWouldBlock.
	Ready() <-chan struct{}

	// Close releases the endpoint. In-flight operations and blocked peers
	// fail with ErrClosed.
	Close() error
}
