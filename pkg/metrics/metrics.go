// Package metrics holds the prometheus collectors of the feed worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_messages_total",
			Help: "Queue messages handled by event type and outcome",
		},
		[]string{"event", "outcome"},
	)

	MessageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_message_duration_seconds",
			Help:    "Time spent handling one queue message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	DeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_dead_letters_total",
			Help: "Messages moved to the dead-letter stream",
		},
		[]string{"stream"},
	)

	FanoutEntries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_fanout_entries",
			Help:    "Size of the feed set written by one fan-out",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	ActionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_actions_created_total",
			Help: "Actions inserted by verb",
		},
		[]string{"verb"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		MessageDuration,
		DeadLettersTotal,
		FanoutEntries,
		ActionsCreatedTotal,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
