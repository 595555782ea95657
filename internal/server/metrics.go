package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_uploads_accepted_total",
		Help: "PDF uploads persisted and enqueued for ingestion.",
	})

	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_chat_requests_total",
		Help: "Chat requests, by outcome.",
	}, []string{"status"})
)
