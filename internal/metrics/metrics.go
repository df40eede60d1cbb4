// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	WhatsAppMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_messages_total",
		Help: "WhatsApp send attempts by provider, message type and result.",
	}, []string{"provider", "type", "result"})

	CampaignRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_campaign_runs_total",
		Help: "Finished campaign dispatch runs by final status.",
	}, []string{"status"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_webhook_events_total",
		Help: "Provider webhook events by provider and outcome.",
	}, []string{"provider", "outcome"})

	BalanceRecalculationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_balance_recalculations_total",
		Help: "Account balance recalculations.",
	})

	BalanceDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_balance_drift_total",
		Help: "Recalculations whose result differed from the cached balance.",
	})
)
