package devserver

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes dev server and build counters on a private registry.
// A nil *Metrics is valid and records nothing, so tests can wire components
// without one.
type Metrics struct {
	registry       *prom.Registry
	builds         *prom.CounterVec
	buildDuration  prom.Histogram
	clients        prom.Gauge
	broadcasts     prom.Counter
	droppedClients prom.Counter
	assetRequests  *prom.CounterVec
}

// NewMetrics constructs and registers the metric set.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prom.NewRegistry()}

	m.builds = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "bale",
		Name:      "builds_total",
		Help:      "Build outcomes by final status",
	}, []string{"outcome"})
	m.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "bale",
		Name:      "build_duration_seconds",
		Help:      "Duration of one build revision",
		Buckets:   prom.DefBuckets,
	})
	m.clients = prom.NewGauge(prom.GaugeOpts{
		Namespace: "bale",
		Name:      "live_clients",
		Help:      "Currently connected live-update clients",
	})
	m.broadcasts = prom.NewCounter(prom.CounterOpts{
		Namespace: "bale",
		Name:      "broadcasts_total",
		Help:      "Live-update broadcasts sent",
	})
	m.droppedClients = prom.NewCounter(prom.CounterOpts{
		Namespace: "bale",
		Name:      "dropped_clients_total",
		Help:      "Clients dropped for not keeping up with broadcasts",
	})
	m.assetRequests = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "bale",
		Name:      "asset_requests_total",
		Help:      "Asset requests by result",
	}, []string{"result"})

	m.registry.MustRegister(
		m.builds, m.buildDuration, m.clients,
		m.broadcasts, m.droppedClients, m.assetRequests,
	)

	return m
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBuild records one build outcome and its duration.
func (m *Metrics) ObserveBuild(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(outcome).Inc()
	m.buildDuration.Observe(d.Seconds())
}

// SetClients records the connected client count.
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

// IncBroadcast counts one broadcast.
func (m *Metrics) IncBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

// IncDroppedClient counts one dropped slow client.
func (m *Metrics) IncDroppedClient() {
	if m == nil {
		return
	}
	m.droppedClients.Inc()
}

// IncAssetRequest counts one asset request by result.
func (m *Metrics) IncAssetRequest(result string) {
	if m == nil {
		return
	}
	m.assetRequests.WithLabelValues(result).Inc()
}
