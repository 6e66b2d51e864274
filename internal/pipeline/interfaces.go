package pipeline

import (
	"context"
	"time"

	"axial/internal/clustering"
	"axial/internal/core"
)

// FeedFetcher retrieves normalized items from a feed URL
type FeedFetcher interface {
	// FetchStrict returns the feed's items, or the error that prevented fetching them
	FetchStrict(ctx context.Context, url string) ([]core.FeedItem, error)
}

// ClusterAssigner places articles into story clusters
type ClusterAssigner interface {
	// Assign attaches a scored article to a cluster, or leaves it unclustered
	Assign(ctx context.Context, article core.Article) (clustering.Assignment, error)

	// Refresh recomputes a cluster's derived stats from its members
	Refresh(ctx context.Context, clusterID string) error
}

// Narrator is the optional text-generation capability used by enrichment and digests
type Narrator interface {
	// Available reports whether generation can be attempted at all
	Available() bool

	// Summarize writes a short factual synthesis of a cluster's members
	Summarize(ctx context.Context, members []core.ClusterMember) (string, error)

	// AnalyzeBias compares framing across the three coverage buckets
	AnalyzeBias(ctx context.Context, topic string, left, center, right []string) (core.BiasAnalysis, error)

	// ComposeDigest writes the daily digest narrative
	ComposeDigest(ctx context.Context, stories []core.DigestStory) (string, error)
}

// Locker provides cross-process mutual exclusion for stage runs
type Locker interface {
	// Acquire takes the named lock without waiting. It returns an error
	// matching runlock.ErrLockNotAcquired when another holder has it.
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// Recorder observes stage outcomes for metrics and analytics
type Recorder interface {
	RecordSync(result SyncResult, elapsed time.Duration)
	RecordEnrichment(enriched int, elapsed time.Duration)
	RecordDigest(created bool, elapsed time.Duration)
	RecordBusy(stage Stage)
}

// ScheduleReporter exposes the configured schedules for status reports
type ScheduleReporter interface {
	Schedules() []ScheduleEntry
}
