// Package metrics exposes tick, update and provider counters through Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ddns "github.com/Travis-Britz/ddnsclient"
)

// PrometheusRecorder implements ddns.Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	ticks           *prom.CounterVec
	tickDuration    prom.Histogram
	updates         *prom.CounterVec
	providerFailure *prom.CounterVec
	lastSuccess     prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		ticks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ddnsclient",
			Name:      "ticks_total",
			Help:      "Reconciliation ticks by result",
		}, []string{"result"}),
		tickDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "ddnsclient",
			Name:      "tick_duration_seconds",
			Help:      "Duration of reconciliation ticks",
			Buckets:   prom.DefBuckets,
		}),
		updates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ddnsclient",
			Name:      "updates_total",
			Help:      "Dispatched updates by error kind",
		}, []string{"error_kind"}),
		providerFailure: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ddnsclient",
			Name:      "provider_failures_total",
			Help:      "IP detection provider failures",
		}, []string{"family", "provider"}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: "ddnsclient",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last tick that did not fail",
		}),
	}
	reg.MustRegister(pr.ticks, pr.tickDuration, pr.updates, pr.providerFailure, pr.lastSuccess)
	return pr
}

func (pr *PrometheusRecorder) ProviderFailed(family ddns.Family, url string) {
	pr.providerFailure.WithLabelValues(family.String(), url).Inc()
}

func (pr *PrometheusRecorder) TickCompleted(result string, d time.Duration) {
	pr.ticks.WithLabelValues(result).Inc()
	pr.tickDuration.Observe(d.Seconds())
	if result != ddns.ResultFailed {
		pr.lastSuccess.SetToCurrentTime()
	}
}

func (pr *PrometheusRecorder) UpdateDispatched(kind ddns.ErrorKind) {
	pr.updates.WithLabelValues(kind.String()).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
