// Package metrics exposes Prometheus counters for the bot. A nil *Metrics is
// valid and records nothing, so components can be built without it in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	EventsTotal          *prometheus.CounterVec
	CommandsTotal        *prometheus.CounterVec
	CompletionsTotal     *prometheus.CounterVec
	CompletionDuration   *prometheus.HistogramVec
	TokensTotal          *prometheus.CounterVec
	CostDollarsTotal     *prometheus.CounterVec
	PersistenceFailures  *prometheus.CounterVec
	ChainLength          prometheus.Histogram
	SessionArchivesTotal *prometheus.CounterVec
	LiveSessions         prometheus.Gauge
	gatherer             prometheus.Gatherer
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbot_events_total",
			Help: "Inbound chat events by access decision",
		}, []string{"decision"}),
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbot_commands_total",
			Help: "Handled owner commands",
		}, []string{"command"}),
		CompletionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbot_completions_total",
			Help: "Completion requests by model and outcome",
		}, []string{"model", "status"}),
		CompletionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kbot_completion_duration_seconds",
			Help:    "Completion latency including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"model"}),
		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbot_tokens_total",
			Help: "Tokens consumed by model and direction",
		}, []string{"model", "direction"}),
		CostDollarsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbot_cost_dollars_total",
			Help: "Advisory cost in dollars by model",
		}, []string{"model"}),
		PersistenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbot_persistence_failures_total",
			Help: "Failed writes by store",
		}, []string{"store"}),
		ChainLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kbot_reply_chain_length",
			Help:    "Messages recovered per reply chain",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		SessionArchivesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbot_session_archives_total",
			Help: "Session archives by reason",
		}, []string{"reason"}),
		LiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "kbot_live_sessions",
			Help: "Conversation sessions held in memory",
		}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Event(decision string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) Completion(model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(model, status).Inc()
	m.CompletionDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) Usage(model string, in, out int, cost float64) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues(model, "input").Add(float64(in))
	m.TokensTotal.WithLabelValues(model, "output").Add(float64(out))
	m.CostDollarsTotal.WithLabelValues(model).Add(cost)
}

func (m *Metrics) PersistenceFailure(store string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.WithLabelValues(store).Inc()
}

func (m *Metrics) Chain(n int) {
	if m == nil {
		return
	}
	m.ChainLength.Observe(float64(n))
}

func (m *Metrics) SessionArchived(reason string, live int) {
	if m == nil {
		return
	}
	m.SessionArchivesTotal.WithLabelValues(reason).Inc()
	m.LiveSessions.Set(float64(live))
}

func (m *Metrics) Sessions(live int) {
	if m == nil {
		return
	}
	m.LiveSessions.Set(float64(live))
}
