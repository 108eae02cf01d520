// Package metrics holds the prometheus collectors of the sync core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters the core components update.
type Metrics struct {
	InitAttempts       *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
	FeedRequests       *prometheus.CounterVec
	FeedSuppressed     *prometheus.CounterVec
	FeedDiscarded      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		InitAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "init_attempts_total",
			Help:      "Initialization attempts by outcome.",
		}, []string{"outcome"}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "session_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "feed_page_requests_total",
			Help:      "Feed page requests issued to the document store.",
		}, []string{"kind"}),
		FeedSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "feed_fetch_suppressed_total",
			Help:      "Fetch-more calls that issued no request.",
		}, []string{"kind", "reason"}),
		FeedDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroom",
			Name:      "feed_pages_discarded_total",
			Help:      "Pages dropped because the feed was reset while they were in flight.",
		}, []string{"kind"}),
		gatherer: reg,
	}
	reg.MustRegister(m.InitAttempts, m.SessionTransitions, m.FeedRequests, m.FeedSuppressed, m.FeedDiscarded)
	return m
}

// NewNop returns collectors registered on a private registry, for tests and the CLI.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
