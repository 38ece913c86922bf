// Package metrics exposes Prometheus collectors for the board service, the
// suggestion client and the HTTP layer. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "choreboard"

type Metrics struct {
	registry *prometheus.Registry

	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
	marks        *prometheus.CounterVec
	rewards      prometheus.Counter
	archives     prometheus.Counter
	suggestions  *prometheus.CounterVec
	events       *prometheus.CounterVec
	requests     *prometheus.CounterVec
	status       *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Board document writes by result.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Duration of board document writes, retries included.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 15, 45},
		}),
		marks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chore_marks_total",
			Help:      "Chore checkmarks added or removed.",
		}, []string{"action"}),
		rewards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_earned_total",
			Help:      "Reward tier crossings.",
		}),
		archives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weeks_archived_total",
			Help:      "Finalized week archives.",
		}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Chore suggestions served by source.",
		}, []string{"source"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Board events published to the broker.",
		}, []string{"type", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_status",
			Help:      "1 for the current persistence status, 0 otherwise.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.saves, m.saveDuration, m.marks, m.rewards, m.archives,
		m.suggestions, m.events, m.requests, m.status,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SaveSucceeded(d time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues("ok").Inc()
	m.saveDuration.Observe(d.Seconds())
}

func (m *Metrics) SaveFailed(d time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues("error").Inc()
	m.saveDuration.Observe(d.Seconds())
}

func (m *Metrics) ChoreMarked() {
	if m == nil {
		return
	}
	m.marks.WithLabelValues("mark").Inc()
}

func (m *Metrics) ChoreUnmarked() {
	if m == nil {
		return
	}
	m.marks.WithLabelValues("unmark").Inc()
}

func (m *Metrics) RewardEarned() {
	if m == nil {
		return
	}
	m.rewards.Inc()
}

func (m *Metrics) WeekArchived() {
	if m == nil {
		return
	}
	m.archives.Inc()
}

// SuggestionServed counts a suggestion by source: model, fallback or error.
func (m *Metrics) SuggestionServed(source string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(source).Inc()
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) RequestServed(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// SetStatus flips the sync_status gauge to the given state.
func (m *Metrics) SetStatus(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.status.WithLabelValues(s).Set(v)
	}
}
