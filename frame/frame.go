// Package frame defines the data unit moved through a relay: byte frames
// grouped into multi-frame messages, plus the rules for routing identities.
package frame

import (
	"errors"
	"fmt"
)

// Frame is one chunk of a multi-part message. Zero-length frames are legal
// and meaningful (empty delimiter frames in envelope addressing). A frame's
// continuation flag travels beside it through endpoint and hook APIs rather
// than inside it, so a Frame is just bytes.
type Frame []byte

// Clone returns an independent copy of the frame.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	c := make(Frame, len(f))
	copy(c, f)
	return c
}

// Message is an ordered, non-empty sequence of frames that is relayed
// atomically: every frame except the last is sent with more=true.
type Message []Frame

// NewMessage builds a message from byte slices. Convenience for tests and
// callers assembling payloads by hand.
func NewMessage(parts ...[]byte) Message {
	m := make(Message, 0, len(parts))
	for _, p := range parts {
		m = append(m, Frame(p))
	}
	return m
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	c := make(Message, len(m))
	for i, f := range m {
		c[i] = f.Clone()
	}
	return c
}

// Bytes returns the message's frames as raw byte slices.
func (m Message) Bytes() [][]byte {
	out := make([][]byte, len(m))
	for i, f := range m {
		out[i] = f
	}
	return out
}

// ReservedIdentityPrefix is the sentinel byte reserved for transport-assigned
// identities. Application identities must not start with it.
const ReservedIdentityPrefix byte = 0x00

// MaxIdentitySize is the maximum length of a routing identity in bytes.
const MaxIdentitySize = 255

// ErrInvalidIdentity is returned for identities that violate the addressing
// contract (empty, too long, or starting with the reserved sentinel byte).
var ErrInvalidIdentity = errors.New("frameflow: invalid routing identity")

// ValidateIdentity checks an application-supplied routing identity against
// the addressing contract: 1-255 opaque bytes, not starting with the
// reserved sentinel.
func ValidateIdentity(id Frame) error {
	switch {
	case len(id) == 0:
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	case len(id) > MaxIdentitySize:
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrInvalidIdentity, len(id), MaxIdentitySize)
	case id[0] == ReservedIdentityPrefix:
		return fmt.Errorf("%w: reserved prefix 0x%02x", ErrInvalidIdentity, ReservedIdentityPrefix)
	}
	return nil
}
