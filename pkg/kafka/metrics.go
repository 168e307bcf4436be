package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes recorded on eventsTotal.
const (
	outcomePublished = "published"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topprix",
			Subsystem: "events",
			Name:      "total",
			Help:      "Events handed to Kafka, by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)

	publishSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "topprix",
			Subsystem: "events",
			Name:      "publish_seconds",
			Help:      "Time spent writing one event to the brokers.",
			Buckets:   []float64{.002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"topic"},
	)
)

func observePublish(topic string, start time.Time, err error) {
	publishSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		eventsTotal.WithLabelValues(topic, outcomeFailed).Inc()
		return
	}
	eventsTotal.WithLabelValues(topic, outcomePublished).Inc()
}
