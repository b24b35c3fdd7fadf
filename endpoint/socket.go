package endpoint

import (
	"errors"
	"sync"

	"github.com/frameflow/frameflow/frame"
	"github.com/frameflow/frameflow/internal/ids"
)

type mode int

const (
	modeDealer mode = iota
	modeRouter
)

// pipeEnd is one socket's view of one direction of a link to a peer.
// Outbound ends use ch, notify, and remoteClosed; inbound ends use ch, peer,
// and space.
type pipeEnd struct {
	peer frame.Frame
	ch   chan frame.Message

	// notify wakes the remote reader after an enqueue.
	notify func()
	// space wakes the remote sender after a dequeue.
	space func()
	// remoteClosed is the remote socket's done channel.
	remoteClosed <-chan struct{}
}

func (e *pipeEnd) alive() bool {
	select {
	case <-e.remoteClosed:
		return false
	default:
		return true
	}
}

// socket is the shared implementation behind Router and Dealer. The mutex
// guards topology (peers attach concurrently via Connect) and transfer state;
// blocking waits happen outside it, on the space and done channels.
type socket struct {
	mode mode
	cfg  Config

	mu       sync.Mutex
	identity frame.Frame
	ins      []*pipeEnd
	outs     []*pipeEnd
	rrIn     int
	rrOut    int

	// cur holds the frames of the in-progress inbound message.
	cur frame.Message
	// staged accumulates outbound frames until a frame with more=false
	// completes the message.
	staged frame.Message
	// pending is a completed message the destination queue could not take
	// yet; pendingTo is its resolved destination (nil for round-robin,
	// which re-picks a peer on every retry).
	pending   frame.Message
	pendingTo *pipeEnd

	dropped uint64
	closed  bool

	ready     chan struct{}
	space     chan struct{}
	done      chan struct{}
	onClose   []func()
}

func newSocket(m mode, cfg Config) *socket {
	s := &socket{
		mode:  m,
		cfg:   cfg,
		ready: make(chan struct{}, 1),
		space: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	if len(cfg.Identity) > 0 {
		s.identity = cfg.Identity.Clone()
	} else {
		s.identity = ids.NewIdentity()
	}
	return s
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Identity returns the routing identity this endpoint presents to
// identity-routing peers.
func (s *socket) Identity() frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Clone()
}

// Bind attaches the endpoint to an inproc address so peers can Connect.
func (s *socket) Bind(addr string) error {
	return s.cfg.registry().bind(addr, s)
}

// Connect links the endpoint to the endpoint bound at addr.
func (s *socket) Connect(addr string) error {
	return s.cfg.registry().connect(addr, s)
}

// Ready implements Endpoint.
func (s *socket) Ready() <-chan struct{} { return s.ready }

// Done is closed when the socket closes. Used by the transport to detect
// dead peers.
func (s *socket) doneCh() <-chan struct{} { return s.done }

// TryRecv implements Endpoint.
func (s *socket) TryRecv() (frame.Frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	if len(s.cur) == 0 && !s.nextLocked() {
		return nil, false, ErrWouldBlock
	}
	f := s.cur[0]
	s.cur = s.cur[1:]
	return f, len(s.cur) > 0, nil
}

// HasMore implements Endpoint.
func (s *socket) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cur) > 0
}

// nextLocked fair-queues the next whole message from the inbound pipes into
// cur. The identity-routing discipline prefixes the originating peer's
// identity frame.
func (s *socket) nextLocked() bool {
	n := len(s.ins)
	for i := 0; i < n; i++ {
		e := s.ins[(s.rrIn+i)%n]
		select {
		case msg := <-e.ch:
			s.rrIn = (s.rrIn + i + 1) % n
			e.space()
			if s.mode == modeRouter {
				s.cur = append(frame.Message{e.peer}, msg...)
			} else {
				s.cur = msg
			}
			s.rearmLocked()
			return true
		default:
		}
	}
	return false
}

// rearmLocked re-signals readiness while queued messages remain, so a poller
// that consumed one token does not miss the rest.
func (s *socket) rearmLocked() {
	for _, e := range s.ins {
		if len(e.ch) > 0 {
			signal(s.ready)
			return
		}
	}
}

// TrySend implements Endpoint.
func (s *socket) TrySend(f frame.Frame, more bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.pending != nil {
		// an earlier message is still staged; it must flush before new
		// frames are accepted
		if err := s.flushLocked(); err != nil {
			return err
		}
	}
	s.staged = append(s.staged, f)
	if more {
		return nil
	}
	msg := s.staged
	s.staged = nil
	return s.placeLocked(msg)
}

// Send implements Endpoint. It blocks only until the completed message fits
// the destination queue; frames with more=true never block.
func (s *socket) Send(f frame.Frame, more bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	for s.pending != nil {
		if err := s.flushLocked(); err == nil {
			break
		} else if !errors.Is(err, ErrWouldBlock) {
			s.mu.Unlock()
			return err
		}
		s.mu.Unlock()
		if err := s.waitSpace(); err != nil {
			return err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
	}
	s.staged = append(s.staged, f)
	if more {
		s.mu.Unlock()
		return nil
	}
	msg := s.staged
	s.staged = nil
	err := s.placeLocked(msg)
	s.mu.Unlock()
	for errors.Is(err, ErrWouldBlock) {
		if werr := s.waitSpace(); werr != nil {
			return werr
		}
		err = s.Flush()
	}
	return err
}

// Flush implements Endpoint.
func (s *socket) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.flushLocked()
}

func (s *socket) flushLocked() error {
	if s.pending == nil {
		return nil
	}
	msg, e := s.pending, s.pendingTo
	s.pending, s.pendingTo = nil, nil
	if e != nil {
		return s.enqueueLocked(e, msg)
	}
	return s.placeLocked(msg)
}

// placeLocked routes a completed message to a destination pipe according to
// the socket's discipline. On a full queue the message becomes pending and
// ErrWouldBlock is returned.
func (s *socket) placeLocked(msg frame.Message) error {
	if s.mode == modeRouter {
		return s.placeRoutedLocked(msg)
	}
	return s.placeRoundRobinLocked(msg)
}

func (s *socket) placeRoutedLocked(msg frame.Message) error {
	if len(msg) < 2 {
		// an identity with no payload is unroutable by construction
		s.dropped++
		return nil
	}
	id, rest := msg[0], msg[1:]
	var dest *pipeEnd
	for _, e := range s.outs {
		if string(e.peer) == string(id) {
			dest = e
			break
		}
	}
	if dest == nil || !dest.alive() {
		// no connected peer for this identity: drop, matching default
		// identity-routing behavior for unroutable messages
		s.dropped++
		return nil
	}
	return s.enqueueLocked(dest, rest)
}

func (s *socket) placeRoundRobinLocked(msg frame.Message) error {
	n := len(s.outs)
	live := 0
	for i := 0; i < n; i++ {
		e := s.outs[(s.rrOut+i)%n]
		if !e.alive() {
			continue
		}
		live++
		select {
		case e.ch <- msg:
			s.rrOut = (s.rrOut + i + 1) % n
			e.notify()
			return nil
		default:
		}
	}
	if n > 0 && live == 0 {
		return ErrClosed
	}
	// every live peer is at its high-water mark, or no peer has connected
	// yet; keep the message and retry on Flush
	s.pending = msg
	return ErrWouldBlock
}

func (s *socket) enqueueLocked(e *pipeEnd, msg frame.Message) error {
	if !e.alive() {
		s.dropped++
		return nil
	}
	select {
	case e.ch <- msg:
		e.notify()
		return nil
	default:
		s.pending, s.pendingTo = msg, e
		return ErrWouldBlock
	}
}

func (s *socket) waitSpace() error {
	select {
	case <-s.space:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Dropped returns the number of messages discarded as unroutable.
func (s *socket) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close implements Endpoint.
func (s *socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	hooks := s.onClose
	s.onClose = nil
	ins := s.ins
	s.mu.Unlock()

	for _, h := range hooks {
		h()
	}
	// wake senders blocked on our full queues so they observe the closure
	for _, e := range ins {
		e.space()
	}
	return nil
}

func (s *socket) attach(in, out *pipeEnd) {
	s.mu.Lock()
	s.ins = append(s.ins, in)
	s.outs = append(s.outs, out)
	s.mu.Unlock()
	// a round-robin sender stalled on "no peers" can now place its message
	signal(s.space)
}

func (s *socket) hasPeerLocked(id frame.Frame) bool {
	for _, e := range s.outs {
		if string(e.peer) == string(id) {
			return true
		}
	}
	return false
}

func (s *socket) addCloseHook(h func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, h)
}

// Router is the identity-routing discipline: inbound messages gain a leading
// identity frame naming the originating peer; an outbound message's leading
// frame selects the destination peer and is stripped before delivery.
type Router struct {
	*socket
}

// NewRouter creates an identity-routing endpoint.
func NewRouter(cfg Config) *Router {
	return &Router{socket: newSocket(modeRouter, cfg)}
}

// Dealer is the round-robin dispatch discipline: outbound messages rotate
// across connected peers, inbound messages are fair-queued from them.
type Dealer struct {
	*socket
}

// NewDealer creates a round-robin dispatch endpoint.
func NewDealer(cfg Config) *Dealer {
	return &Dealer{socket: newSocket(modeDealer, cfg)}
}

var (
	_ Endpoint = (*Router)(nil)
	_ Endpoint = (*Dealer)(nil)
)
