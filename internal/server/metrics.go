package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tartampluch/go-skycal/internal/config"
	"github.com/tartampluch/go-skycal/internal/engine"
)

// Metrics exposes scheduler and feed activity in the Prometheus format.
// All methods are safe on a nil receiver so callers can run without metrics.
type Metrics struct {
	registry   *prometheus.Registry
	ticks      prometheus.Counter
	dayChanges prometheus.Counter
	feedBuilds prometheus.Counter
	feedEvents prometheus.Gauge
	requests   *prometheus.CounterVec
	epochState prometheus.Gauge
	virtualDay prometheus.Gauge
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      config.MetricTicks,
			Help:      config.MetricHelpTicks,
		}),
		dayChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      config.MetricDayChanges,
			Help:      config.MetricHelpDays,
		}),
		feedBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      config.MetricFeedBuilds,
			Help:      config.MetricHelpBuilds,
		}),
		feedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.MetricsNamespace,
			Name:      config.MetricFeedEvents,
			Help:      config.MetricHelpEvents,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      config.MetricRequests,
			Help:      config.MetricHelpRequests,
		}, []string{config.MetricLabelStatus}),
		epochState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.MetricsNamespace,
			Name:      config.MetricEpochState,
			Help:      config.MetricHelpEpoch,
		}),
		virtualDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.MetricsNamespace,
			Name:      config.MetricVirtualDay,
			Help:      config.MetricHelpDay,
		}),
	}

	m.registry.MustRegister(
		m.ticks,
		m.dayChanges,
		m.feedBuilds,
		m.feedEvents,
		m.requests,
		m.epochState,
		m.virtualDay,
	)
	return m
}

// Tick records one scheduler step at the given virtual day ordinal.
func (m *Metrics) Tick(ordinal int64) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.virtualDay.Set(float64(ordinal))
}

// DayChanged records a virtual day transition.
func (m *Metrics) DayChanged() {
	if m == nil {
		return
	}
	m.dayChanges.Inc()
}

// FeedBuilt records a feed rebuild with the number of occurrences it holds.
func (m *Metrics) FeedBuilt(events int) {
	if m == nil {
		return
	}
	m.feedBuilds.Inc()
	m.feedEvents.Set(float64(events))
}

// SetEpochState mirrors the resolver lifecycle.
func (m *Metrics) SetEpochState(state engine.ResolveState) {
	if m == nil {
		return
	}
	m.epochState.Set(float64(state))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests by response status.
func (m *Metrics) WrapHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.requests.WithLabelValues(strconv.Itoa(recorder.status)).Inc()
		}
	})
}

// Handler serves the exposition format for the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
