package endpoint

import (
	"fmt"
	"strings"
	"sync"

	"github.com/frameflow/frameflow/frame"
)

const inprocScheme = "inproc://"

// Registry resolves in-process addresses to bound endpoints. Bound and
// connecting endpoints are wired together with a bounded pipe per direction.
type Registry struct {
	mu    sync.Mutex
	bound map[string]*socket
}

// DefaultRegistry is the process-wide address registry used when a Config
// does not name one.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty address registry. Tests use private
// registries to isolate address namespaces.
func NewRegistry() *Registry {
	return &Registry{bound: make(map[string]*socket)}
}

func parseAddr(addr string) (string, error) {
	name, ok := strings.CutPrefix(addr, inprocScheme)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return name, nil
}

func (r *Registry) bind(addr string, s *socket) error {
	name, err := parseAddr(addr)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bound[name]; ok {
		return fmt.Errorf("%w: %q", ErrAddressInUse, addr)
	}
	r.bound[name] = s
	s.addCloseHook(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.bound[name] == s {
			delete(r.bound, name)
		}
	})
	return nil
}

func (r *Registry) connect(addr string, s *socket) error {
	name, err := parseAddr(addr)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bound[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAddress, addr)
	}
	return link(b, s)
}

// link wires a bound and a connecting socket with one pipe per direction.
// Pipe capacity is the sender's send mark plus the receiver's receive mark,
// so both ends' high-water marks shape backpressure.
func link(bound, conn *socket) error {
	connID := conn.Identity()
	if len(conn.cfg.Identity) > 0 {
		if err := frame.ValidateIdentity(conn.cfg.Identity); err != nil {
			return err
		}
		bound.mu.Lock()
		dup := bound.hasPeerLocked(connID)
		bound.mu.Unlock()
		if dup {
			return fmt.Errorf("%w: duplicate identity %q", frame.ErrInvalidIdentity, connID)
		}
	}
	boundID := bound.Identity()

	connToBound := make(chan frame.Message, conn.cfg.sendHWM()+bound.cfg.recvHWM())
	boundToConn := make(chan frame.Message, bound.cfg.sendHWM()+conn.cfg.recvHWM())

	bound.attach(
		&pipeEnd{
			peer:  connID,
			ch:    connToBound,
			space: func() { signal(conn.space) },
		},
		&pipeEnd{
			peer:         connID,
			ch:           boundToConn,
			notify:       func() { signal(conn.ready) },
			remoteClosed: conn.doneCh(),
		},
	)
	conn.attach(
		&pipeEnd{
			peer:  boundID,
			ch:    boundToConn,
			space: func() { signal(bound.space) },
		},
		&pipeEnd{
			peer:         boundID,
			ch:           connToBound,
			notify:       func() { signal(bound.ready) },
			remoteClosed: bound.doneCh(),
		},
	)
	return nil
}
