package hooks

import (
	"sync/atomic"

	"github.com/frameflow/frameflow/frame"
	"github.com/frameflow/frameflow/internal/relay"
)

// SkipFunc decides whether a frame is exempt from transformation.
type SkipFunc func(index int, f frame.Frame) bool

// SkipEnvelope is the default skip policy: the leading identity frame and
// zero-length delimiter frames are routing material, not payload.
func SkipEnvelope(index int, f frame.Frame) bool {
	return index == 0 || len(f) == 0
}

// CaseMap uppercases request payloads and lowercases reply payloads in
// place, ASCII letters only. Frames matched by Skip pass through untouched.
type CaseMap struct {
	// Skip defaults to SkipEnvelope.
	Skip SkipFunc

	uppercased atomic.Uint64
	lowercased atomic.Uint64
}

func NewCaseMap() *CaseMap {
	return &CaseMap{Skip: SkipEnvelope}
}

func (h *CaseMap) Transform(dir relay.Direction, index int, _ bool, f frame.Frame) error {
	skip := h.Skip
	if skip == nil {
		skip = SkipEnvelope
	}
	if skip(index, f) {
		return nil
	}

	switch dir {
	case relay.FrontendToBackend:
		h.uppercased.Add(1)
		for i, b := range f {
			if 'a' <= b && b <= 'z' {
				f[i] = b - 'a' + 'A'
			}
		}
	case relay.BackendToFrontend:
		h.lowercased.Add(1)
		for i, b := range f {
			if 'A' <= b && b <= 'Z' {
				f[i] = b - 'A' + 'a'
			}
		}
	}
	return nil
}

// Uppercased reports how many request frames were transformed.
func (h *CaseMap) Uppercased() uint64 { return h.uppercased.Load() }

// Lowercased reports how many reply frames were transformed.
func (h *CaseMap) Lowercased() uint64 { return h.lowercased.Load() }
