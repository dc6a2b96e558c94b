package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/logflow/pmdiscover/pkg/interfaces"
)

// LogMetrics writes metrics as structured log records and keeps the last
// value of each so a run summary can read them back.
type LogMetrics struct {
	mu       sync.Mutex
	logger   *slog.Logger
	level    slog.Level
	counters map[string]int64
	gauges   map[string]float64
	timers   map[string]time.Duration
}

// LogMetricsOption configures LogMetrics.
type LogMetricsOption func(*LogMetrics)

// WithLogger sets the destination logger.
func WithLogger(logger *slog.Logger) LogMetricsOption {
	return func(m *LogMetrics) {
		m.logger = logger
	}
}

// WithLevel sets the level metric records are written at.
func WithLevel(level slog.Level) LogMetricsOption {
	return func(m *LogMetrics) {
		m.level = level
	}
}

// NewLogMetrics creates a new log-based metrics exporter.
func NewLogMetrics(opts ...LogMetricsOption) *LogMetrics {
	m := &LogMetrics{
		logger:   slog.Default(),
		level:    slog.LevelDebug,
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timers:   make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Counter logs a counter metric and adds it to the running total.
func (m *LogMetrics) Counter(name string, value int64, tags map[string]string) {
	m.mu.Lock()
	m.counters[name] += value
	m.mu.Unlock()
	m.log("counter", name, fmt.Sprintf("%d", value), tags)
}

// Gauge logs a gauge metric.
func (m *LogMetrics) Gauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	m.gauges[name] = value
	m.mu.Unlock()
	m.log("gauge", name, fmt.Sprintf("%.4f", value), tags)
}

// Timer logs a timer metric.
func (m *LogMetrics) Timer(name string, duration time.Duration, tags map[string]string) {
	m.mu.Lock()
	m.timers[name] += duration
	m.mu.Unlock()
	m.log("timer", name, duration.String(), tags)
}

// Flush is a no-op; records are written immediately.
func (m *LogMetrics) Flush() error {
	return nil
}

// CounterValue returns the running total of a counter.
func (m *LogMetrics) CounterValue(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// TimerValue returns the accumulated duration of a timer.
func (m *LogMetrics) TimerValue(name string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers[name]
}

func (m *LogMetrics) log(metricType, name, value string, tags map[string]string) {
	m.logger.Log(context.Background(), m.level, "metric",
		"type", metricType,
		"name", name,
		"value", value,
		"tags", formatTags(tags))
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, tags[k])
	}
	return strings.Join(parts, ",")
}

// Verify interface compliance.
var _ interfaces.MetricsExporter = (*LogMetrics)(nil)
