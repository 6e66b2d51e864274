// Package metrics exports Prometheus metrics for pipeline stage runs
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"axial/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "axial"

// Metrics holds the pipeline's Prometheus collectors
type Metrics struct {
	// Stage runs
	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageBusy     *prometheus.CounterVec

	// Ingestion
	ItemsFetched    prometheus.Counter
	ArticlesNew     prometheus.Counter
	ArticlesResumed prometheus.Counter
	SyncErrors      prometheus.Counter

	// Enrichment and digest
	ClustersEnriched prometheus.Counter
	DigestsCreated   prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{gatherer: gatherer}

	m.StageRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_runs_total",
		Help:      "Completed pipeline stage runs",
	}, []string{"stage", "outcome"})

	m.StageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time of a pipeline stage run",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1500},
	}, []string{"stage"})

	m.StageBusy = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_busy_total",
		Help:      "Stage triggers rejected because a run was already in progress",
	}, []string{"stage"})

	m.ItemsFetched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_items_fetched_total",
		Help:      "Feed items returned by all sources",
	})
	m.ArticlesNew = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_ingested_total",
		Help:      "New articles inserted by sync",
	})
	m.ArticlesResumed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_resumed_total",
		Help:      "Unfinished articles driven to processed by a later sync",
	})
	m.SyncErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_errors_total",
		Help:      "Failed sources and items during sync",
	})
	m.ClustersEnriched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clusters_enriched_total",
		Help:      "Clusters that received a summary and framing analysis",
	})
	m.DigestsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "digests_created_total",
		Help:      "Daily digests written",
	})

	return m
}

// NewDefault registers with the global Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordSync implements pipeline.Recorder
func (m *Metrics) RecordSync(result pipeline.SyncResult, elapsed time.Duration) {
	m.observe(pipeline.StageSync, "ok", elapsed)
	m.ItemsFetched.Add(float64(result.Fetched))
	m.ArticlesNew.Add(float64(result.New))
	m.ArticlesResumed.Add(float64(result.Resumed))
	m.SyncErrors.Add(float64(result.Errors))
}

// RecordEnrichment implements pipeline.Recorder
func (m *Metrics) RecordEnrichment(enriched int, elapsed time.Duration) {
	m.observe(pipeline.StageEnrich, "ok", elapsed)
	m.ClustersEnriched.Add(float64(enriched))
}

// RecordDigest implements pipeline.Recorder
func (m *Metrics) RecordDigest(created bool, elapsed time.Duration) {
	m.observe(pipeline.StageDigest, "created_"+strconv.FormatBool(created), elapsed)
	if created {
		m.DigestsCreated.Inc()
	}
}

// RecordBusy implements pipeline.Recorder
func (m *Metrics) RecordBusy(stage pipeline.Stage) {
	m.StageBusy.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) observe(stage pipeline.Stage, outcome string, elapsed time.Duration) {
	m.StageRuns.WithLabelValues(string(stage), outcome).Inc()
	m.StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

var _ pipeline.Recorder = (*Metrics)(nil)
