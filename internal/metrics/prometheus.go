package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	FlowsInitiatedTotal      *prometheus.CounterVec
	FlowsCompletedTotal      *prometheus.CounterVec
	ClientRegistrationsTotal *prometheus.CounterVec
	TokenExchangeDuration    *prometheus.HistogramVec
	IntegrationsCreatedTotal *prometheus.CounterVec
	// Add more metrics here as needed
)

// InitCustomMetrics initializes and registers custom Prometheus metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	FlowsInitiatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_flows_initiated_total",
		Help: "Total number of authorization flows initiated, by provider.",
	}, []string{"provider"})
	FlowsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_flows_completed_total",
		Help: "Total number of authorization callbacks processed, by provider and outcome.",
	}, []string{"provider", "outcome"})
	ClientRegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_client_registrations_total",
		Help: "Total number of dynamic client registration attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})
	TokenExchangeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connect_token_exchange_duration_seconds",
		Help:    "Latency of server-to-server token exchanges, by provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	IntegrationsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connect_integrations_created_total",
		Help: "Total number of integrations persisted through the backend, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// Register metrics
	if reg != nil {
		for _, c := range []prometheus.Collector{
			FlowsInitiatedTotal,
			FlowsCompletedTotal,
			ClientRegistrationsTotal,
			TokenExchangeDuration,
			IntegrationsCreatedTotal,
		} {
			if err := reg.Register(c); err != nil {
				log.Warn().Err(err).Msg("Failed to register Prometheus metric")
			}
		}
	}
}
