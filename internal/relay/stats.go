package relay

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DirectionCounters holds the relay counters for one direction.
type DirectionCounters struct {
	Messages uint64 `json:"messages"`
	Frames   uint64 `json:"frames"`
	Bytes    uint64 `json:"bytes"`
}

// StatsSnapshot is a point-in-time view of a run's counters, as published in
// reply to a STATISTICS command.
type StatsSnapshot struct {
	State             string            `json:"state"`
	FrontendToBackend DirectionCounters `json:"frontend_to_backend"`
	BackendToFrontend DirectionCounters `json:"backend_to_frontend"`
	HookAborts        uint64            `json:"hook_aborts"`
	StateTransitions  uint64            `json:"state_transitions"`
	CollectedAt       time.Time         `json:"collected_at"`
}

// Stats tracks one proxy run. Counters are written only by the relay
// goroutine; the mutex makes snapshots consistent for readers on other
// goroutines (metrics scrapes, post-run inspection).
type Stats struct {
	mu          sync.RWMutex
	dirs        [2]DirectionCounters
	aborts      uint64
	transitions uint64
	state       State

	messagesTotal    *prometheus.CounterVec
	framesTotal      *prometheus.CounterVec
	bytesTotal       *prometheus.CounterVec
	abortsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newRelayCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameflow",
			Subsystem: "relay",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewStats creates a stats collector. A nil registerer selects the default
// Prometheus registerer; collectors are not registered until Register.
func NewStats(registerer prometheus.Registerer) *Stats {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Stats{
		state:            StateRunning,
		registerer:       registerer,
		messagesTotal:    newRelayCounterVec("messages_total", "Total messages relayed", []string{"direction"}),
		framesTotal:      newRelayCounterVec("frames_total", "Total frames relayed", []string{"direction"}),
		bytesTotal:       newRelayCounterVec("bytes_total", "Total payload bytes relayed", []string{"direction"}),
		abortsTotal:      newRelayCounterVec("hook_aborts_total", "Relays aborted by a hook error", []string{"direction"}),
		transitionsTotal: newRelayCounterVec("state_transitions_total", "Proxy state transitions", []string{"state"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (s *Stats) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		s.messagesTotal,
		s.framesTotal,
		s.bytesTotal,
		s.abortsTotal,
		s.transitionsTotal,
	}
	for _, c := range collectors {
		if err := s.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	s.registered = true
	return nil
}

func (s *Stats) recordFrame(dir Direction, size int, last bool) {
	s.mu.Lock()
	c := &s.dirs[dir]
	c.Frames++
	c.Bytes += uint64(size)
	if last {
		c.Messages++
	}
	s.mu.Unlock()

	label := dir.String()
	s.framesTotal.WithLabelValues(label).Inc()
	s.bytesTotal.WithLabelValues(label).Add(float64(size))
	if last {
		s.messagesTotal.WithLabelValues(label).Inc()
	}
}

func (s *Stats) recordHookAbort(dir Direction) {
	s.mu.Lock()
	s.aborts++
	s.mu.Unlock()
	s.abortsTotal.WithLabelValues(dir.String()).Inc()
}

func (s *Stats) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	if changed {
		s.state = st
		s.transitions++
	}
	s.mu.Unlock()

	if changed {
		s.transitionsTotal.WithLabelValues(st.String()).Inc()
	}
}

// State returns the run state last recorded.
func (s *Stats) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a consistent copy of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		State:             s.state.String(),
		FrontendToBackend: s.dirs[FrontendToBackend],
		BackendToFrontend: s.dirs[BackendToFrontend],
		HookAborts:        s.aborts,
		StateTransitions:  s.transitions,
		CollectedAt:       time.Now(),
	}
}
