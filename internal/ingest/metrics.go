package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the ingestion pipeline.
type Metrics struct {
	Registry      *prometheus.Registry
	JobsTotal     *prometheus.CounterVec
	JobDuration   prometheus.Histogram
	StageErrors   *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	ChaptersSaved prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_total",
			Help: "Ingestion jobs finished, by terminal status.",
		},
		[]string{"status"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_job_duration_seconds",
			Help:    "Wall time from claim to terminal status.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
	stageErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_stage_errors_total",
			Help: "Pipeline failures by stage.",
		},
		[]string{"stage"},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_queue_depth",
			Help: "Jobs waiting in the in-memory queue.",
		},
	)
	chaptersSaved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_chapters_saved_total",
			Help: "Chapters written by the persistence stage.",
		},
	)

	registry.MustRegister(jobs, duration, stageErrors, queueDepth, chaptersSaved)

	return &Metrics{
		Registry:      registry,
		JobsTotal:     jobs,
		JobDuration:   duration,
		StageErrors:   stageErrors,
		QueueDepth:    queueDepth,
		ChaptersSaved: chaptersSaved,
	}
}

func (m *Metrics) JobFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.Observe(d.Seconds())
}

func (m *Metrics) StageError(stage string) {
	if m == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) AddChapters(n int) {
	if m == nil {
		return
	}
	m.ChaptersSaved.Add(float64(n))
}
