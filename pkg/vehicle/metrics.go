package vehicle

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts inbound traffic and everything the connection discarded.
type Stats struct {
	ChunksReceived   uint64
	FramesReceived   uint64
	ResultsDelivered uint64

	// ParseErrors counts frames that could not be parsed.
	ParseErrors uint64
	// Unmatched counts results no pending request was waiting for.
	Unmatched uint64
	// HandlerPanics counts panics recovered from result handlers.
	HandlerPanics uint64
}

type counters struct {
	chunksReceived   atomic.Uint64
	framesReceived   atomic.Uint64
	resultsDelivered atomic.Uint64
	parseErrors      atomic.Uint64
	unmatched        atomic.Uint64
	handlerPanics    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		ChunksReceived:   c.chunksReceived.Load(),
		FramesReceived:   c.framesReceived.Load(),
		ResultsDelivered: c.resultsDelivered.Load(),
		ParseErrors:      c.parseErrors.Load(),
		Unmatched:        c.unmatched.Load(),
		HandlerPanics:    c.handlerPanics.Load(),
	}
}

// Metrics are the Prometheus collectors of a connection.
type Metrics struct {
	Frames           prometheus.Counter
	Errors           *prometheus.CounterVec   // by kind: parse, unmatched, panic
	Requests         *prometheus.CounterVec   // by domain and outcome
	HandshakeLatency *prometheus.HistogramVec // by domain
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teslable",
			Name:      "frames_received_total",
			Help:      "Complete frames reassembled from notifications.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teslable",
			Name:      "discarded_total",
			Help:      "Inbound frames or results that were discarded.",
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teslable",
			Name:      "requests_total",
			Help:      "Requests sent to the vehicle by outcome.",
		}, []string{"domain", "outcome"}),
		HandshakeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teslable",
			Name:      "handshake_duration_seconds",
			Help:      "Time to establish a domain session.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"domain"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.Frames, m.Errors, m.Requests, m.HandshakeLatency} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
