package interfaces

import "time"

// MetricsExporter exports metrics to a monitoring backend.
type MetricsExporter interface {
	// Counter increments a counter metric.
	Counter(name string, value int64, tags map[string]string)

	// Gauge sets a gauge metric to the specified value.
	Gauge(name string, value float64, tags map[string]string)

	// Timer records a duration.
	Timer(name string, duration time.Duration, tags map[string]string)

	// Flush sends any buffered metrics to the backend.
	Flush() error
}

// Metric names recorded by a discovery run.
const (
	MetricRowsFetched      = "pmdiscover.warehouse.rows"
	MetricRowsDropped      = "pmdiscover.warehouse.rows_dropped"
	MetricQueryDuration    = "pmdiscover.warehouse.query_duration"
	MetricModelTasks       = "pmdiscover.discovery.tasks"
	MetricDiscoverDuration = "pmdiscover.discovery.duration"
	MetricRenderDuration   = "pmdiscover.render.duration"
	MetricArtifactsTotal   = "pmdiscover.publish.artifacts"
	MetricArtifactBytes    = "pmdiscover.publish.bytes"
	MetricRunDuration      = "pmdiscover.run.duration"
)

// Common tag names.
const (
	TagFormat = "format"
	TagStatus = "status"
	TagSource = "source"
	TagPath   = "path"
)
