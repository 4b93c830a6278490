// Package metrics exposes the service's Prometheus collectors and a
// /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every collector the scheduler and pipeline touch.
var (
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itemtracker_pipeline_runs_total",
		Help: "Pipeline runs started, partitioned by outcome.",
	}, []string{"outcome"})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "itemtracker_pipeline_stage_duration_seconds",
		Help:    "Wall time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	SchedulerTasksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "itemtracker_scheduler_tasks_active",
		Help: "Number of galleries currently owned by the scheduler.",
	})

	MarketplaceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itemtracker_marketplace_fetch_errors_total",
		Help: "Marketplace adapter fetch failures, by marketplace.",
	}, []string{"marketplace"})
)

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
