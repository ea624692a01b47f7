package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nidsclient"

// Metrics holds the client's collectors. A nil *Metrics is valid and
// records nothing, so callers never need to check.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	submitDuration  *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	channelState    prometheus.Gauge
	updates         prometheus.Counter
	connectAttempts *prometheus.CounterVec
	controlSignals  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Batch submissions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		submitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Wall time of batch submissions.",
			Buckets:   []float64{0.5, 1, 5, 15, 60, 180, 600, 900},
		}, []string{"mode"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "submissions_in_flight",
			Help:      "1 while a batch submission is running.",
		}),
		channelState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "surveillance_state",
			Help:      "Surveillance control state: 0 disconnected, 1 idle, 2 running.",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surveillance_updates_total",
			Help:      "Snapshots received on the live channel.",
		}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surveillance_connect_attempts_total",
			Help:      "Live channel connection attempts by result.",
		}, []string{"result"}),
		controlSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surveillance_control_signals_total",
			Help:      "start/stop signals sent on the live channel.",
		}, []string{"signal"}),
	}
	reg.MustRegister(
		m.submissions,
		m.submitDuration,
		m.inFlight,
		m.channelState,
		m.updates,
		m.connectAttempts,
		m.controlSignals,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SubmitStarted() {
	if m == nil {
		return
	}
	m.inFlight.Set(1)
}

func (m *Metrics) SubmitFinished(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Set(0)
	m.submissions.WithLabelValues(mode, outcome).Inc()
	m.submitDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// SubmitRejected counts a submission refused before any request was made.
func (m *Metrics) SubmitRejected(mode, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) ChannelState(state int) {
	if m == nil {
		return
	}
	m.channelState.Set(float64(state))
}

func (m *Metrics) Update() {
	if m == nil {
		return
	}
	m.updates.Inc()
}

func (m *Metrics) ConnectAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.connectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ControlSignal(signal string) {
	if m == nil {
		return
	}
	m.controlSignals.WithLabelValues(signal).Inc()
}
