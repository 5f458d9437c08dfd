package telemetry

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
	Timer   MetricType = "timer"
)

// Metric represents a telemetry sample
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
	Unit      string            `json:"unit,omitempty"`
}

// Collector buffers samples until Flush writes them to the logger.
type Collector struct {
	mu      sync.Mutex
	metrics []Metric
	enabled bool
	logger  zerolog.Logger
}

// NewCollector creates a collector; a disabled collector drops every sample.
func NewCollector(enabled bool) *Collector {
	return &Collector{enabled: enabled, logger: log.Logger}
}

// WithLogger routes flushed samples to l.
func (c *Collector) WithLogger(l zerolog.Logger) *Collector {
	c.logger = l
	return c
}

func (c *Collector) Counter(name string, value float64, labels map[string]string) {
	c.add(Metric{Name: name, Type: Counter, Value: value, Labels: labels})
}

func (c *Collector) Gauge(name string, value float64, labels map[string]string) {
	c.add(Metric{Name: name, Type: Gauge, Value: value, Labels: labels})
}

// Timer records a duration in milliseconds
func (c *Collector) Timer(name string, d time.Duration, labels map[string]string) {
	c.add(Metric{Name: name, Type: Timer, Value: float64(d.Microseconds()) / 1000, Labels: labels, Unit: "ms"})
}

func (c *Collector) add(m Metric) {
	if !c.enabled {
		return
	}
	m.Timestamp = time.Now()
	c.mu.Lock()
	c.metrics = append(c.metrics, m)
	c.mu.Unlock()
}

// Snapshot returns a copy of buffered samples
func (c *Collector) Snapshot() []Metric {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Metric, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// Flush logs and clears buffered samples
func (c *Collector) Flush() int {
	c.mu.Lock()
	metrics := c.metrics
	c.metrics = nil
	c.mu.Unlock()

	for _, m := range metrics {
		ev := c.logger.Info().
			Str("name", m.Name).
			Str("type", string(m.Type)).
			Float64("value", m.Value).
			Time("timestamp", m.Timestamp)
		if m.Unit != "" {
			ev = ev.Str("unit", m.Unit)
		}
		if len(m.Labels) > 0 {
			ev = ev.Interface("labels", m.Labels)
		}
		ev.Msg("telemetry_metric")
	}
	return len(metrics)
}
