package relay

import "github.com/frameflow/frameflow/frame"

// Direction identifies which way a frame is moving through the proxy.
type Direction int

const (
	// FrontendToBackend is the request path: client-facing endpoint to the
	// worker-facing endpoint.
	FrontendToBackend Direction = iota

	// BackendToFrontend is the reply path.
	BackendToFrontend
)

func (d Direction) String() string {
	switch d {
	case FrontendToBackend:
		return "frontend_to_backend"
	case BackendToFrontend:
		return "backend_to_frontend"
	}
	return "unknown"
}

// Hook is the per-frame transform capability invoked by the proxy on every
// relayed frame, in both directions, before forwarding.
//
// index is the zero-based position of the frame within the current message,
// letting implementations tell envelope frames (typically index 0, and any
// zero-length frame) from payload frames. more reports whether further
// frames of the same message follow; implementations must not act as if they
// could change it. The frame's bytes may be mutated in place, but its length
// must stay fixed.
//
// A non-nil error aborts relaying of the current message and ends the run;
// the destination may already hold a truncated message at that point, so
// there is no partial recovery.
//
// Hooks are invoked sequentially from the single relay goroutine; state
// owned by a hook needs no internal synchronization unless it is also read
// from other goroutines.
type Hook interface {
	Transform(dir Direction, index int, more bool, f frame.Frame) error
}

// nop is the identity transform used when no hook is configured. Same
// interface, no special code path in the relay.
type nop struct{}

func (nop) Transform(Direction, int, bool, frame.Frame) error { return nil }
