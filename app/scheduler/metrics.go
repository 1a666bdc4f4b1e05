package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Send attempts partitioned by classified outcome
	sendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_campaign_send_attempts_total",
			Help: "Total number of gateway send attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Terminal recipient outcomes
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_campaign_deliveries_total",
			Help: "Total number of recipients that reached a terminal outcome",
		},
		[]string{"outcome"},
	)

	// Gateway latency in seconds partitioned by endpoint
	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whatsapp_gateway_request_duration_seconds",
			Help:    "WhatsApp gateway request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Campaign status transitions performed by the engine
	campaignTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_campaign_transitions_total",
			Help: "Total number of campaign status transitions",
		},
		[]string{"to"},
	)

	// Recipients resolved per dispatched campaign
	audienceSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whatsapp_campaign_audience_size",
			Help:    "Number of recipients resolved when a campaign is dispatched",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Sweeps run by the scheduler
	sweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_campaign_sweeps_total",
			Help: "Total number of scheduler sweeps by result",
		},
		[]string{"result"},
	)
)
