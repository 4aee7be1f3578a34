// Package metrics exposes the Prometheus counters and histograms the
// relay/dispatch paths report through, and serves them on the
// configured metrics listener's /metrics path.
//
// Every instrumentation call goes through the Metrics interface so the
// tcp, udp and proxy packages never hard-depend on Prometheus being
// wired in: Noop satisfies the same interface with no-op methods,
// mirroring the teacher's optional metrics flavour selection.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the instrumentation surface used by the relay and proxy
// packages. It is always safe to call, even when metrics collection is
// disabled (see Noop).
type Metrics interface {
	IncTCPConnection(server string)
	AddTCPBytes(server, direction string, n int)
	SetUDPConnections(server string, n int)
	IncUDPPacket(server, direction string)
	ObserveHTTPRequest(server, route string, status int, seconds float64)
}

// Registry is the Prometheus-backed Metrics implementation. The zero
// value is not usable; construct one with NewRegistry.
type Registry struct {
	tcpConnections *prometheus.CounterVec
	tcpBytes       *prometheus.CounterVec
	udpConnections *prometheus.GaugeVec
	udpPackets     *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewRegistry builds a Registry's collectors without registering them
// anywhere. MustRegister registers them onto a caller-supplied
// prometheus.Registerer (NewPrometheusRegistry supplies a fresh one),
// so multiple Registry instances (e.g. in tests) never collide on the
// global default registry.
func NewRegistry() *Registry {
	r := &Registry{
		tcpConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_tcp_connections_total",
			Help: "Total number of accepted TCP connections, by server.",
		}, []string{"server"}),
		tcpBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_tcp_bytes_total",
			Help: "Total bytes relayed over TCP, by server and direction.",
		}, []string{"server", "direction"}),
		udpConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_udp_virtual_connections",
			Help: "Current number of active UDP virtual connections, by server.",
		}, []string{"server"}),
		udpPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_udp_packets_total",
			Help: "Total UDP datagrams relayed, by server and direction.",
		}, []string{"server", "direction"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total HTTP requests proxied, by server, route and status.",
		}, []string{"server", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request forwarding duration in seconds, by server and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"server", "route"}),
	}
	return r
}

// MustRegister registers every collector in r with reg.
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(r.tcpConnections, r.tcpBytes, r.udpConnections, r.udpPackets, r.httpRequests, r.httpDuration)
}

// IncTCPConnection implements Metrics.
func (r *Registry) IncTCPConnection(server string) {
	r.tcpConnections.WithLabelValues(server).Inc()
}

// AddTCPBytes implements Metrics.
func (r *Registry) AddTCPBytes(server, direction string, n int) {
	r.tcpBytes.WithLabelValues(server, direction).Add(float64(n))
}

// SetUDPConnections implements Metrics.
func (r *Registry) SetUDPConnections(server string, n int) {
	r.udpConnections.WithLabelValues(server).Set(float64(n))
}

// IncUDPPacket implements Metrics.
func (r *Registry) IncUDPPacket(server, direction string) {
	r.udpPackets.WithLabelValues(server, direction).Inc()
}

// ObserveHTTPRequest implements Metrics.
func (r *Registry) ObserveHTTPRequest(server, route string, status int, seconds float64) {
	r.httpRequests.WithLabelValues(server, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(server, route).Observe(seconds)
}

// Handler returns the Prometheus text-exposition HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NewPrometheusRegistry builds a fresh *prometheus.Registry and a
// Registry of gateway collectors registered onto it, ready to be
// served with Handler.
func NewPrometheusRegistry() (*prometheus.Registry, *Registry) {
	reg := prometheus.NewRegistry()
	m := NewRegistry()
	m.MustRegister(reg)
	return reg, m
}

// Noop implements Metrics with no-op methods, used when metrics
// collection is not wired in.
type Noop struct{}

func (Noop) IncTCPConnection(string)                        {}
func (Noop) AddTCPBytes(string, string, int)                {}
func (Noop) SetUDPConnections(string, int)                  {}
func (Noop) IncUDPPacket(string, string)                    {}
func (Noop) ObserveHTTPRequest(string, string, int, float64) {}
