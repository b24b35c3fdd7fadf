package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/frameflow/frameflow/frame"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a time-sortable ULID encoded as a 26-character string.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewIdentity generates a routing identity for a peer that did not configure
// one. The ULID encoding never starts with the reserved sentinel byte, so
// generated identities always satisfy the addressing contract.
func NewIdentity() frame.Frame {
	return frame.Frame(NewULID())
}
