// Package metrics exposes per-socket observability counters — valid and
// invalid received byte totals — plus connected/anonymous peer gauges, as
// Prometheus metrics. Grounded on the pack's own
// github.com/prometheus/client_golang/prometheus usage
// (runZeroInc-sockstats/pkg/exporter), generalized here from a custom
// prometheus.Collector pulling kernel TCP info on Collect into plain
// Counter/Gauge vectors the protocol core updates directly as events
// happen, since pomelo's observability surface is a handful of simple
// running totals rather than data that must be polled from the OS.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Socket groups the counters and gauges one client or server socket
// updates as it processes datagrams and tracks peers.
type Socket struct {
	ValidRecvBytes   prometheus.Counter
	InvalidRecvBytes prometheus.Counter
	ConnectedPeers   prometheus.Gauge
	AnonymousPeers   prometheus.Gauge
}

// NewSocket creates and registers a Socket's metrics against reg, labeled
// with role ("client" or "server") and name (a caller-chosen socket
// identifier, e.g. the bind address). reg may be nil, in which case the
// metrics are created but never registered — useful in tests that don't
// want a shared default registry polluted across runs.
func NewSocket(reg prometheus.Registerer, role, name string) *Socket {
	labels := prometheus.Labels{"role": role, "socket": name}
	s := &Socket{
		ValidRecvBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pomelo",
			Name:        "valid_recv_bytes_total",
			Help:        "Bytes received in datagrams that decoded and authenticated successfully.",
			ConstLabels: labels,
		}),
		InvalidRecvBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pomelo",
			Name:        "invalid_recv_bytes_total",
			Help:        "Bytes received in datagrams dropped for malformed, replayed or unauthenticated content.",
			ConstLabels: labels,
		}),
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pomelo",
			Name:        "connected_peers",
			Help:        "Peers currently in the Connected state.",
			ConstLabels: labels,
		}),
		AnonymousPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pomelo",
			Name:        "anonymous_peers",
			Help:        "Server-side peers that have not yet completed RESPONSE (Requesting/Challenging).",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(s.ValidRecvBytes, s.InvalidRecvBytes, s.ConnectedPeers, s.AnonymousPeers)
	}
	return s
}

// RecordValid adds n to ValidRecvBytes.
func (s *Socket) RecordValid(n int) {
	s.ValidRecvBytes.Add(float64(n))
}

// RecordInvalid adds n to InvalidRecvBytes.
func (s *Socket) RecordInvalid(n int) {
	s.InvalidRecvBytes.Add(float64(n))
}
