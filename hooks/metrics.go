package hooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/frameflow/frameflow/frame"
	"github.com/frameflow/frameflow/internal/relay"
)

// Metrics is an observe-only hook exporting per-direction frame and byte
// counters. Unlike the relay's own stats it sees frames before forwarding,
// so hooks chained after it still count even when forwarding later fails.
type Metrics struct {
	frames *prometheus.CounterVec
	bytes  *prometheus.CounterVec
}

// NewMetrics registers the hook's collectors. A nil registerer selects the
// default one; collectors already registered elsewhere are reused.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		frames: newHookCounterVec("frames_total", "Total frames observed by the metrics hook"),
		bytes:  newHookCounterVec("bytes_total", "Total frame bytes observed by the metrics hook"),
	}
	for _, c := range []*prometheus.CounterVec{m.frames, m.bytes} {
		if err := registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return m, nil
}

func newHookCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frameflow",
			Subsystem: "hooks",
			Name:      name,
			Help:      help,
		},
		[]string{"direction"},
	)
}

func (m *Metrics) Transform(dir relay.Direction, _ int, _ bool, f frame.Frame) error {
	label := dir.String()
	m.frames.WithLabelValues(label).Inc()
	m.bytes.WithLabelValues(label).Add(float64(len(f)))
	return nil
}
