package conversation

import "github.com/prometheus/client_golang/prometheus"

// Metrics records submission outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	submissions *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rejected    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "submissions_total",
			Help:      "Completed submissions by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "fallbacks_total",
			Help:      "Fallback answers by failure kind and topic.",
		}, []string{"kind", "topic"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nutribot",
			Name:      "submission_duration_seconds",
			Help:      "Time from submit to bot answer.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 12},
		}, []string{"outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "rejected_submissions_total",
			Help:      "Submissions refused before reaching the transcript.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.fallbacks, m.latency, m.rejected)
	}
	return m
}

func (m *Metrics) observe(reply Reply) {
	if m == nil {
		return
	}
	outcome := "answered"
	if reply.Fallback {
		outcome = "fallback"
		m.fallbacks.WithLabelValues(string(reply.Kind), string(reply.Topic)).Inc()
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(reply.Elapsed.Seconds())
}

func (m *Metrics) reject(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
