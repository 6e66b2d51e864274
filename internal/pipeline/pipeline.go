// Package pipeline runs the three stages of the news pipeline: ingestion,
// enrichment and the daily digest.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"axial/internal/logger"
	"axial/internal/persistence"
)

// Stage names one independently triggered pipeline run
type Stage string

const (
	StageSync   Stage = "sync"
	StageEnrich Stage = "enrich"
	StageDigest Stage = "digest"
)

// Stages lists every stage in execution order
func Stages() []Stage {
	return []Stage{StageSync, StageEnrich, StageDigest}
}

// Pipeline orchestrates ingestion, enrichment and digest synthesis.
// Each stage runs at most once at a time per process, and across processes
// when a Locker is configured.
type Pipeline struct {
	// Storage
	sources  persistence.SourceRepository
	articles persistence.ArticleRepository
	clusters persistence.ClusterRepository
	digests  persistence.DigestRepository
	status   persistence.StatusRepository

	// Collaborators
	fetcher   FeedFetcher
	assigner  ClusterAssigner
	narrator  Narrator
	locker    Locker   // Optional
	recorder  Recorder // Optional
	schedules ScheduleReporter

	guardMu sync.Mutex
	running map[Stage]bool

	config *Config
	now    func() time.Time
	log    *slog.Logger
}

// Config holds pipeline configuration
type Config struct {
	// Ingestion
	FetchConcurrency int // Sources fetched in parallel
	ResumeLimit      int // Unfinished articles driven forward per sync

	// Enrichment
	EnrichMinArticles int
	EnrichLimit       int
	EnrichMembers     int

	// Digest
	DigestLimit  int
	DigestWindow time.Duration

	// StageTimeout bounds a single stage run; zero means no bound
	StageTimeout time.Duration
}

// DefaultConfig returns the production pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		FetchConcurrency:  4,
		ResumeLimit:       500,
		EnrichMinArticles: 3,
		EnrichLimit:       10,
		EnrichMembers:     10,
		DigestLimit:       10,
		DigestWindow:      24 * time.Hour,
		StageTimeout:      25 * time.Minute,
	}
}

// Deps are the collaborators a Pipeline runs against
type Deps struct {
	Sources  persistence.SourceRepository
	Articles persistence.ArticleRepository
	Clusters persistence.ClusterRepository
	Digests  persistence.DigestRepository
	Status   persistence.StatusRepository

	Fetcher  FeedFetcher
	Assigner ClusterAssigner
	Narrator Narrator
	Locker   Locker
	Recorder Recorder
}

// NewPipeline creates a new pipeline with all dependencies
func NewPipeline(deps Deps, config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &Pipeline{
		sources:  deps.Sources,
		articles: deps.Articles,
		clusters: deps.Clusters,
		digests:  deps.Digests,
		status:   deps.Status,
		fetcher:  deps.Fetcher,
		assigner: deps.Assigner,
		narrator: deps.Narrator,
		locker:   deps.Locker,
		recorder: recorder,
		running:  make(map[Stage]bool),
		config:   config,
		now:      time.Now,
		log:      logger.Get().With("component", "pipeline"),
	}
}

// SetScheduleReporter attaches the scheduler so status reports include next runs
func (p *Pipeline) SetScheduleReporter(r ScheduleReporter) {
	p.schedules = r
}

// AIAvailable reports whether the text-generation capability is configured
func (p *Pipeline) AIAvailable() bool {
	return p.narrator != nil && p.narrator.Available()
}

// stageContext applies the configured stage timeout
func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.StageTimeout > 0 {
		return context.WithTimeout(ctx, p.config.StageTimeout)
	}
	return context.WithCancel(ctx)
}
