package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics tracks retries/failures/latency for one HTTP collaborator.
// Reused as-is for the store client's find/get/patch traffic.
type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// ControllerMetrics is the process-wide metrics surface for the polling
// engine, exposed over /metrics via promhttp.
type ControllerMetrics struct {
	StoreClient ClientMetrics

	CycleDurationSec   prometheus.Histogram
	RecordsInFlight    prometheus.Gauge
	TasksSeen          *prometheus.CounterVec
	TasksSucceeded     *prometheus.CounterVec
	TasksFailed        *prometheus.CounterVec
	StepDurationSec    *prometheus.HistogramVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	APICallsSaved      prometheus.Counter
	PartialUpdateFails prometheus.Counter
}

var durationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

func NewClientMetrics(name string) ClientMetrics {
	return ClientMetrics{
		RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: name + "_retry_count",
			Help: "The number of retried " + name + " requests",
		}, []string{"host"}),
		FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_failure_count",
			Help: "The total number of failed " + name + " requests",
		}, []string{"host", "status_code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name + "_request_duration_seconds",
			Help:    "Time taken to send " + name + " requests",
			Buckets: durationBuckets,
		}, []string{"host"}),
	}
}

func NewControllerMetrics() *ControllerMetrics {
	return &ControllerMetrics{
		StoreClient: NewClientMetrics("store_client"),

		CycleDurationSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cycle_duration_seconds",
			Help:    "Wall-clock time taken by one polling cycle",
			Buckets: durationBuckets,
		}),
		RecordsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "records_in_flight",
			Help: "Number of tasks currently dispatched to the worker pool",
		}),
		TasksSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_seen_total",
			Help: "Tasks discovered per cycle, by kind and status",
		}, []string{"kind", "status"}),
		TasksSucceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_succeeded_total",
			Help: "Step executions that completed without error, by kind",
		}, []string{"kind"}),
		TasksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_failed_total",
			Help: "Tasks whose step chain hit an error, by kind and reason",
		}, []string{"kind", "reason"}),
		StepDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "step_duration_seconds",
			Help:    "Time taken by one external step invocation",
			Buckets: durationBuckets,
		}, []string{"step"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "status_cache_hits_total",
			Help: "Status cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "status_cache_misses_total",
			Help: "Status cache misses",
		}),
		APICallsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "api_calls_saved_total",
			Help: "Store calls avoided by batching parent-status lookups",
		}),
		PartialUpdateFails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "partial_update_failures_total",
			Help: "Child-frame updates that failed during an LF/quality-gate transition",
		}),
	}
}
