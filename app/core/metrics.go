package core

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/complypilot/complypilot/pkg/metrics"
)

type Metrics struct {
	apiResponseTime      *prometheus.HistogramVec
	apiErrorCounter      *prometheus.CounterVec
	providerRequestTime  *prometheus.HistogramVec
	providerErrorCounter *prometheus.CounterVec
	ingestionChunks      *prometheus.CounterVec
	ingestionJobFailures *prometheus.CounterVec
}

func NewMetrics(ns, system string) *Metrics {
	metrics.SetupMetricsManager(ns, system, prometheus.DefaultRegisterer.(*prometheus.Registry))

	return &Metrics{
		apiResponseTime:      metrics.NewHistogramVec("api_response_time", []string{"api"}),
		apiErrorCounter:      metrics.NewCounterVec("api_error", []string{"method", "api", "status"}),
		providerRequestTime:  metrics.NewHistogramVec("provider_request_time", []string{"provider", "op"}),
		providerErrorCounter: metrics.NewCounterVec("provider_error", []string{"provider", "op"}),
		ingestionChunks:      metrics.NewCounterVec("ingestion_chunks", []string{"result"}),
		ingestionJobFailures: metrics.NewCounterVec("ingestion_job_failures", nil),
	}
}

func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

func (m *Metrics) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ProviderRequestTimer(provider, op string) *prometheus.Timer {
	return prometheus.NewTimer(m.providerRequestTime.WithLabelValues(provider, op))
}

func (m *Metrics) ProviderErrorInc(provider, op string) {
	m.providerErrorCounter.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) IngestionChunksInc(result string, n int) {
	m.ingestionChunks.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) IngestionJobFailureInc() {
	m.ingestionJobFailures.WithLabelValues().Inc()
}
