// Package metrics provides default metrics implementations.
package metrics

import (
	"time"

	"github.com/logflow/pmdiscover/pkg/interfaces"
)

// NoopMetrics discards all metrics.
type NoopMetrics struct{}

// NewNoopMetrics creates a new noop metrics exporter.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Counter(name string, value int64, tags map[string]string) {}

func (n *NoopMetrics) Gauge(name string, value float64, tags map[string]string) {}

func (n *NoopMetrics) Timer(name string, duration time.Duration, tags map[string]string) {}

func (n *NoopMetrics) Flush() error {
	return nil
}

var _ interfaces.MetricsExporter = (*NoopMetrics)(nil)
