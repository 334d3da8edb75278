package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Metrics del gateway, registrate su un registry dedicato (niente globali).
type Metrics struct {
	reg *prometheus.Registry

	transitions  *prometheus.CounterVec
	upstream     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
	sessions     prometheus.Gauge
	favorites    *prometheus.CounterVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reg: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriassist_flow_transitions_total",
			Help: "Transizioni del flow per variante, fase di arrivo ed evento.",
		}, []string{"variant", "phase", "event"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriassist_upstream_requests_total",
			Help: "Chiamate verso i servizi esterni per esito.",
		}, []string{"upstream", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agriassist_upstream_duration_seconds",
			Help:    "Latenza delle chiamate verso i servizi esterni.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		}, []string{"upstream"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agriassist_breaker_state",
			Help: "Stato del circuit breaker: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agriassist_active_sessions",
			Help: "Sessioni attive nel registry.",
		}),
		favorites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriassist_favorites_total",
			Help: "Richieste di salvataggio preferiti per esito.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.transitions, m.upstream, m.latency, m.breakerState, m.sessions, m.favorites)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) observeUpstream(name, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(name, outcome).Inc()
	m.latency.WithLabelValues(name).Observe(seconds)
}

func (m *Metrics) setBreaker(name string, st gobreaker.State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(st))
}

func (m *Metrics) observeTransition(variant, phase, event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(variant, phase, event).Inc()
}

func (m *Metrics) setSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) observeFavorite(outcome string) {
	if m == nil {
		return
	}
	m.favorites.WithLabelValues(outcome).Inc()
}
