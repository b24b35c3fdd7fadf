package relay

import (
	"errors"
	"fmt"
)

// ErrTerminating is returned by Run when the owning context is canceled
// while the proxy is live, so callers can tell orderly shutdown from an
// operational fault. A TERMINATE command, by contrast, ends the run with a
// nil error.
var ErrTerminating = errors.New("relay: terminating")

// HookError reports a hook transform that returned an error. It is fatal for
// the run: message atomicity may already be broken on the destination side.
type HookError struct {
	Direction  Direction
	FrameIndex int
	Err        error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("relay: hook failed on %s frame %d: %v", e.Direction, e.FrameIndex, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// EndpointError reports a hard endpoint failure while relaying. If frames of
// the current message had already been forwarded, the destination holds a
// truncated message; the run terminates rather than retry, since mid-message
// resumption cannot be signaled.
type EndpointError struct {
	Direction Direction
	Op        string // "receive" or "forward"
	Err       error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("relay: %s failed on %s: %v", e.Op, e.Direction, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }
