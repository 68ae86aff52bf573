// Package metrics provides Prometheus metrics for the pipeline and the API.
//
// Pipeline metrics:
//   - dpd_records_parsed_total / dpd_lines_skipped_total: per extract file kind
//   - dpd_monograph_lookups_total: lookups by result (success, failure)
//   - dpd_pipeline_runs_total: runs by outcome and failed stage
//   - dpd_pipeline_duration_seconds, dpd_pipeline_last_success_timestamp
//
// HTTP metrics follow the usual request total / duration / in-flight triple.
// Everything is registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RecordsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpd_records_parsed_total",
			Help: "Records accepted from the extract files",
		},
		[]string{"kind"},
	)

	LinesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpd_lines_skipped_total",
			Help: "Extract lines dropped because they were empty or too short",
		},
		[]string{"kind"},
	)

	MonographLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpd_monograph_lookups_total",
			Help: "Monograph page lookups by result",
		},
		[]string{"result"},
	)

	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dpd_pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome", "stage"},
	)

	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dpd_pipeline_duration_seconds",
			Help:    "Duration of a full pipeline run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	PipelineLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dpd_pipeline_last_success_timestamp",
			Help: "Unix time of the last successful pipeline run",
		},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)
)

func init() {
	prometheus.MustRegister(RecordsParsed)
	prometheus.MustRegister(LinesSkipped)
	prometheus.MustRegister(MonographLookups)
	prometheus.MustRegister(PipelineRuns)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(PipelineLastSuccess)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
}
