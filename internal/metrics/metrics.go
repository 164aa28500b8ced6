package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vqtl"

// Metrics groups the collectors exported on /metrics
type Metrics struct {
	LoadSeconds *prometheus.GaugeVec
	Individuals prometheus.Gauge
	ShortChains prometheus.Gauge
	SnapshotAge prometheus.GaugeFunc
	Requests    *prometheus.CounterVec

	builtAt time.Time
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoadSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_seconds",
			Help:      "Time spent loading each input and building the snapshot",
		}, []string{"stage"}),
		Individuals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_individuals",
			Help:      "Rows in the display table",
		}),
		ShortChains: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "short_chains",
			Help:      "Individuals with fewer posterior draws than the summary tail",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code",
		}, []string{"route", "code"}),
	}
	m.SnapshotAge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_age_seconds",
		Help:      "Seconds since the served snapshot was built",
	}, func() float64 {
		if m.builtAt.IsZero() {
			return 0
		}
		return time.Since(m.builtAt).Seconds()
	})

	reg.MustRegister(m.LoadSeconds, m.Individuals, m.ShortChains, m.SnapshotAge, m.Requests)
	return m
}

// ObserveStage records how long a load stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.LoadSeconds.WithLabelValues(stage).Set(d.Seconds())
}

// SnapshotBuilt records the time the served snapshot was built. It is called
// once before serving starts.
func (m *Metrics) SnapshotBuilt(at time.Time, individuals, shortChains int) {
	m.builtAt = at
	m.Individuals.Set(float64(individuals))
	m.ShortChains.Set(float64(shortChains))
}

// ObserveRequest counts one served request
func (m *Metrics) ObserveRequest(route string, code int) {
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
