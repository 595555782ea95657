package streams

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_events_published_total",
		Help: "Events appended to Redis streams, by event type.",
	}, []string{"event_type"})

	consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_events_consumed_total",
		Help: "Events decoded from Redis streams by consumers, by event type.",
	}, []string{"event_type"})
)

func recordPublished(eventType string) {
	publishedTotal.WithLabelValues(eventType).Inc()
}

func recordConsumed(eventType string) {
	consumedTotal.WithLabelValues(eventType).Inc()
}
