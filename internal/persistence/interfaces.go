// Package persistence provides database abstraction interfaces for storing sources, articles, clusters and digests
package persistence

import (
	"context"
	"time"

	"axial/internal/core"
)

// SourceRepository handles feed source persistence operations
type SourceRepository interface {
	// Create inserts a new source, returning ErrDuplicate if the feed URL exists
	Create(ctx context.Context, source *core.Source) error

	// CreateIfAbsent inserts a source unless its feed URL exists and reports whether it inserted
	CreateIfAbsent(ctx context.Context, source *core.Source) (bool, error)

	// Get retrieves a source by ID
	Get(ctx context.Context, id string) (*core.Source, error)

	// List retrieves sources with pagination
	List(ctx context.Context, opts ListOptions) ([]core.Source, error)

	// ListActive retrieves all active sources
	ListActive(ctx context.Context) ([]core.Source, error)

	// SetActive toggles whether ingestion visits the source
	SetActive(ctx context.Context, id string, active bool) error

	// MarkFetched stamps the source's last fetch time
	MarkFetched(ctx context.Context, id string, at time.Time) error

	// Count returns the number of sources
	Count(ctx context.Context) (int, error)
}

// ArticleRepository handles article persistence and state transitions
type ArticleRepository interface {
	// ExistsByLink reports whether an article with this link was already ingested
	ExistsByLink(ctx context.Context, link string) (bool, error)

	// Insert stores a new article in the fetched state and reports whether it inserted
	Insert(ctx context.Context, article *core.Article) (bool, error)

	// Get retrieves an article by ID
	Get(ctx context.Context, id string) (*core.Article, error)

	// SaveScores stores scores and keywords, moving the article from fetched to scored
	SaveScores(ctx context.Context, id string, heat, substance float64, keywords []string) error

	// AssignCluster sets the cluster, moving the article from scored to clustered
	AssignCluster(ctx context.Context, articleID, clusterID string) error

	// Transition moves an article between states, returning ErrStateConflict if it is not in from
	Transition(ctx context.Context, id string, from, to core.ArticleState) error

	// ListByStates returns up to limit articles in any of the states, oldest fetch first
	ListByStates(ctx context.Context, states []core.ArticleState, limit int) ([]core.Article, error)

	// RecentClustered returns clustered articles published after since, newest first
	RecentClustered(ctx context.Context, since time.Time, excludeID string, limit int) ([]core.Article, error)

	// ClusterMembers returns all members of a cluster joined with their source bias, oldest first
	ClusterMembers(ctx context.Context, clusterID string) ([]core.ClusterMember, error)

	// RecentClusterMembers returns the newest members of a cluster joined with their source bias
	RecentClusterMembers(ctx context.Context, clusterID string, limit int) ([]core.ClusterMember, error)
}

// ClusterRepository handles story cluster persistence operations
type ClusterRepository interface {
	// Create inserts a new cluster
	Create(ctx context.Context, cluster *core.Cluster) error

	// Get retrieves a cluster by ID
	Get(ctx context.Context, id string) (*core.Cluster, error)

	// UpdateStats overwrites the derived fields of a cluster
	UpdateStats(ctx context.Context, id string, stats core.ClusterStats) error

	// DeleteEmpty removes a cluster no article references and reports whether it did
	DeleteEmpty(ctx context.Context, id string) (bool, error)

	// ListForEnrichment returns active unsummarized clusters with at least minArticles, largest first
	ListForEnrichment(ctx context.Context, minArticles, limit int) ([]core.Cluster, error)

	// SaveEnrichment stores summary and bias analysis together, only if the cluster has no summary yet
	SaveEnrichment(ctx context.Context, id, summary string, analysis core.BiasAnalysis, at time.Time) (bool, error)

	// ListActiveSince returns active clusters whose last article is after since, largest first
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]core.Cluster, error)

	// WindowTotals counts distinct clusters and their articles for clusters active after since
	WindowTotals(ctx context.Context, since time.Time) (clusters int, articles int, err error)
}

// DigestRepository handles daily digest persistence operations
type DigestRepository interface {
	// ExistsForDate reports whether a digest exists for the YYYY-MM-DD date
	ExistsForDate(ctx context.Context, date string) (bool, error)

	// Create inserts a digest unless one exists for its date and reports whether it inserted
	Create(ctx context.Context, digest *core.DailyDigest) (bool, error)

	// Latest returns the most recent digest
	Latest(ctx context.Context) (*core.DailyDigest, error)
}

// StatusRepository computes aggregate pipeline counters
type StatusRepository interface {
	Counts(ctx context.Context, now time.Time) (StatusCounts, error)
}

// StatusCounts are the store-side numbers behind the pipeline status report
type StatusCounts struct {
	ActiveSources   int        `json:"activeSources"`
	TotalArticles   int        `json:"totalArticles"`
	ActiveClusters  int        `json:"activeClusters"` // Last article within 7 days
	ArticlesLast24h int        `json:"articlesLast24h"`
	PendingArticles int        `json:"pendingArticles"` // Not yet processed
	LastFetchAt     *time.Time `json:"lastFetchAt,omitempty"`
}

// ListOptions provides pagination options for list operations
type ListOptions struct {
	Limit  int // Maximum number of results (0 for no limit)
	Offset int // Number of results to skip
}

// Database represents the main database interface that aggregates all repositories
type Database interface {
	// Sources returns the source repository
	Sources() SourceRepository

	// Articles returns the article repository
	Articles() ArticleRepository

	// Clusters returns the cluster repository
	Clusters() ClusterRepository

	// Digests returns the digest repository
	Digests() DigestRepository

	// Status returns the status repository
	Status() StatusRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	Sources() SourceRepository
	Articles() ArticleRepository
	Clusters() ClusterRepository
	Digests() DigestRepository

	Commit() error
	Rollback() error
}
