// Package metrics exposes Prometheus collectors for the HTTP surface and the
// circuit breakers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/swingradar/festival-crawler/internal/breaker"
)

// HTTP collects request counts, latencies, and in-flight requests for the
// API server. Collectors are registered on the injected Registerer so tests
// can use an isolated registry.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTP registers the HTTP collectors on reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	m := &HTTP{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "festival_http_requests_total",
				Help: "Total HTTP requests, labeled by method and status code.",
			},
			[]string{"method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "festival_http_request_duration_seconds",
				Help:    "HTTP request latencies, labeled by method and path.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "path"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "festival_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware wraps next and records one observation per request.
func (m *HTTP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.requests.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		m.duration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Breakers tracks circuit-breaker state per guarded dependency.
type Breakers struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewBreakers registers the breaker collectors on reg.
func NewBreakers(reg prometheus.Registerer) (*Breakers, error) {
	m := &Breakers{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "festival_breaker_state",
				Help: "Current circuit state per dependency (0 closed, 1 half-open, 2 open).",
			},
			[]string{"name"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "festival_breaker_transitions_total",
				Help: "Circuit state transitions, labeled by dependency and entered state.",
			},
			[]string{"name", "state"},
		),
	}
	for _, c := range []prometheus.Collector{m.state, m.transitions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Listener returns a breaker.StateListener recording each transition.
func (m *Breakers) Listener() breaker.StateListener {
	return func(name string, state breaker.State) {
		m.state.WithLabelValues(name).Set(stateValue(state))
		m.transitions.WithLabelValues(name, string(state)).Inc()
	}
}

func stateValue(state breaker.State) float64 {
	switch state {
	case breaker.StateOpen:
		return 2
	case breaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
