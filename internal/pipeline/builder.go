package pipeline

import (
	"fmt"

	"axial/internal/clustering"
	"axial/internal/persistence"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	db           persistence.Database
	fetcher      FeedFetcher
	narrator     Narrator
	locker       Locker
	recorders    []Recorder
	config       *Config
	engineConfig clustering.EngineConfig
}

// NewBuilder creates a new pipeline builder over db with default settings
func NewBuilder(db persistence.Database) *Builder {
	return &Builder{
		db:           db,
		config:       DefaultConfig(),
		engineConfig: clustering.DefaultEngineConfig(),
	}
}

// WithFetcher sets the feed fetcher
func (b *Builder) WithFetcher(fetcher FeedFetcher) *Builder {
	b.fetcher = fetcher
	return b
}

// WithNarrator sets the text-generation capability
func (b *Builder) WithNarrator(narrator Narrator) *Builder {
	b.narrator = narrator
	return b
}

// WithLocker enables cross-process stage locking
func (b *Builder) WithLocker(locker Locker) *Builder {
	b.locker = locker
	return b
}

// WithRecorder adds a stage observer; may be called more than once
func (b *Builder) WithRecorder(recorder Recorder) *Builder {
	if recorder != nil {
		b.recorders = append(b.recorders, recorder)
	}
	return b
}

// WithConfig sets the pipeline configuration
func (b *Builder) WithConfig(config *Config) *Builder {
	b.config = config
	return b
}

// WithEngineConfig overrides the clustering parameters
func (b *Builder) WithEngineConfig(config clustering.EngineConfig) *Builder {
	b.engineConfig = config
	return b
}

// Build constructs a fully configured Pipeline
func (b *Builder) Build() (*Pipeline, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if b.fetcher == nil {
		return nil, fmt.Errorf("feed fetcher is required")
	}

	var recorder Recorder
	switch len(b.recorders) {
	case 0:
	case 1:
		recorder = b.recorders[0]
	default:
		recorder = MultiRecorder(b.recorders)
	}

	engine := clustering.NewEngine(b.db.Articles(), b.db.Clusters(), b.engineConfig)

	return NewPipeline(Deps{
		Sources:  b.db.Sources(),
		Articles: b.db.Articles(),
		Clusters: b.db.Clusters(),
		Digests:  b.db.Digests(),
		Status:   b.db.Status(),
		Fetcher:  b.fetcher,
		Assigner: engine,
		Narrator: b.narrator,
		Locker:   b.locker,
		Recorder: recorder,
	}, b.config), nil
}
