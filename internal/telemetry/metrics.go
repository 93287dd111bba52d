package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonesrussell/ddharvester/internal/domain"
)

const (
	// MetricsNamespace is the namespace for all harvester metrics.
	MetricsNamespace = "ddharvester"

	// MetricsSubsystem is the subsystem for run metrics.
	MetricsSubsystem = "run"
)

// Metrics holds the gauges written at the end of a run. They are gauges
// because each run overwrites the textfile.
type Metrics struct {
	registry *prometheus.Registry

	PostsInserted   prometheus.Gauge
	HubsQueued      prometheus.Gauge
	QueueDone       prometheus.Gauge
	Errors          prometheus.Gauge
	DurationSeconds prometheus.Gauge
	Success         prometheus.Gauge
	FinishedAt      prometheus.Gauge
	QueueItems      *prometheus.GaugeVec
}

// NewMetrics creates the run gauges on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		registry:        reg,
		PostsInserted:   gauge("posts_inserted", "Posts inserted by the last run"),
		HubsQueued:      gauge("hubs_queued", "Hub items seeded by the last run"),
		QueueDone:       gauge("queue_done", "Queue items completed by the last run"),
		Errors:          gauge("errors", "Errors counted by the last run"),
		DurationSeconds: gauge("duration_seconds", "Wall time of the last run in seconds"),
		Success:         gauge("success", "1 if the last run succeeded, 0 otherwise"),
		FinishedAt:      gauge("finished_timestamp_seconds", "Unix time the last run finished"),
		QueueItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: "queue",
				Name:      "items",
				Help:      "Crawl queue items by status at the end of the last run",
			},
			[]string{"status"},
		),
	}
}

// Observe records the outcome of a run.
func (m *Metrics) Observe(c domain.RunCounters, queue domain.QueueStats, duration time.Duration, success bool, finished time.Time) {
	m.PostsInserted.Set(float64(c.PostsInserted))
	m.HubsQueued.Set(float64(c.HubsQueued))
	m.QueueDone.Set(float64(c.QueueDone))
	m.Errors.Set(float64(c.Errors))
	m.DurationSeconds.Set(duration.Seconds())
	m.FinishedAt.Set(float64(finished.Unix()))
	if success {
		m.Success.Set(1)
	} else {
		m.Success.Set(0)
	}

	m.QueueItems.WithLabelValues(domain.QueueStatusQueued).Set(float64(queue.Queued))
	m.QueueItems.WithLabelValues(domain.QueueStatusDone).Set(float64(queue.Done))
	m.QueueItems.WithLabelValues(domain.QueueStatusError).Set(float64(queue.Error))
}

// WriteTextfile writes the gauges in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
