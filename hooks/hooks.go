// Package hooks provides ready-made per-frame transforms for the relay and
// adapters for composing custom ones. All transforms mutate frames in place
// and keep frame lengths fixed, as the relay requires.
package hooks

import (
	"github.com/frameflow/frameflow/frame"
	"github.com/frameflow/frameflow/internal/relay"
)

// Func adapts a plain function to the hook interface.
type Func func(dir relay.Direction, index int, more bool, f frame.Frame) error

func (fn Func) Transform(dir relay.Direction, index int, more bool, f frame.Frame) error {
	return fn(dir, index, more, f)
}

// Nop returns the identity transform.
func Nop() relay.Hook {
	return Func(func(relay.Direction, int, bool, frame.Frame) error { return nil })
}

// DirectionFuncs binds one callback per relay direction. A nil callback
// leaves that direction untouched.
type DirectionFuncs struct {
	FrontendToBackend Func
	BackendToFrontend Func
}

func (d DirectionFuncs) Transform(dir relay.Direction, index int, more bool, f frame.Frame) error {
	var fn Func
	switch dir {
	case relay.FrontendToBackend:
		fn = d.FrontendToBackend
	case relay.BackendToFrontend:
		fn = d.BackendToFrontend
	}
	if fn == nil {
		return nil
	}
	return fn(dir, index, more, f)
}

// Chain applies hooks in order, stopping at the first error. Nil entries are
// skipped.
type Chain []relay.Hook

func (c Chain) Transform(dir relay.Direction, index int, more bool, f frame.Frame) error {
	for _, h := range c {
		if h == nil {
			continue
		}
		if err := h.Transform(dir, index, more, f); err != nil {
			return err
		}
	}
	return nil
}
