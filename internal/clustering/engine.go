package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"axial/internal/core"
	"axial/internal/logger"

	"github.com/google/uuid"
)

// EngineConfig holds the greedy assignment parameters.
type EngineConfig struct {
	SimilarityThreshold float64       // Candidates must score strictly above this
	Window              time.Duration // Trailing publish-time window for candidates
	CandidateLimit      int           // Most recent clustered articles compared per assignment
}

// DefaultEngineConfig returns the production clustering parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SimilarityThreshold: 0.35,
		Window:              72 * time.Hour,
		CandidateLimit:      500,
	}
}

// ArticleStore is the article access the engine needs.
type ArticleStore interface {
	// RecentClustered returns clustered articles published after since, newest first, excluding excludeID.
	RecentClustered(ctx context.Context, since time.Time, excludeID string, limit int) ([]core.Article, error)
	// AssignCluster sets the article's cluster and moves it from scored to clustered.
	AssignCluster(ctx context.Context, articleID, clusterID string) error
	// ClusterMembers returns every article in a cluster joined with its source's bias label.
	ClusterMembers(ctx context.Context, clusterID string) ([]core.ClusterMember, error)
}

// ClusterStore is the cluster access the engine needs.
type ClusterStore interface {
	Create(ctx context.Context, cluster *core.Cluster) error
	Get(ctx context.Context, id string) (*core.Cluster, error)
	UpdateStats(ctx context.Context, id string, stats core.ClusterStats) error
	// DeleteEmpty removes a cluster that no article references and reports whether it did.
	DeleteEmpty(ctx context.Context, id string) (bool, error)
}

// Assignment describes where an article landed.
type Assignment struct {
	ClusterID  string  // Empty when the article was left unclustered
	Created    bool    // A new cluster was seeded by this article
	Similarity float64 // Similarity to the matched candidate, 0 for new clusters
}

// Clustered reports whether the article was placed in a cluster.
func (a Assignment) Clustered() bool { return a.ClusterID != "" }

// Candidate is a scored comparison target.
type Candidate struct {
	ClusterID  string
	Similarity float64
}

// Engine incrementally groups articles into story clusters.
type Engine struct {
	articles   ArticleStore
	clusters   ClusterStore
	aggregator *Aggregator
	locks      *KeyedMutex
	config     EngineConfig
	now        func() time.Time
	log        *slog.Logger
}

// NewEngine creates a clustering engine over the given stores.
func NewEngine(articles ArticleStore, clusters ClusterStore, config EngineConfig) *Engine {
	return &Engine{
		articles:   articles,
		clusters:   clusters,
		aggregator: NewAggregator(articles, clusters),
		locks:      NewKeyedMutex(),
		config:     config,
		now:        time.Now,
		log:        logger.Get().With("component", "clustering"),
	}
}

// Aggregator returns the stats aggregator the engine recomputes through.
func (e *Engine) Aggregator() *Aggregator { return e.aggregator }

// BestMatch scans candidates in order and returns the most similar one above
// threshold. Equal similarities keep the first candidate seen.
func BestMatch(vec Vector, candidates []core.Article, threshold float64) (Candidate, bool) {
	var best Candidate
	found := false

	for _, c := range candidates {
		if c.ClusterID == nil {
			continue
		}
		sim := Cosine(vec, NewVector(Tokenize(c.Text())))
		if sim > threshold && (!found || sim > best.Similarity) {
			best = Candidate{ClusterID: *c.ClusterID, Similarity: sim}
			found = true
		}
	}

	return best, found
}

// Assign places article into the most similar recent cluster, or seeds a new
// one. Articles with fewer than three meaningful tokens are left unclustered
// and a zero Assignment is returned.
func (e *Engine) Assign(ctx context.Context, article core.Article) (Assignment, error) {
	tokens := Tokenize(article.Text())
	if len(tokens) < MinMeaningfulTokens {
		return Assignment{}, nil
	}
	vec := NewVector(tokens)

	since := e.now().Add(-e.config.Window)
	candidates, err := e.articles.RecentClustered(ctx, since, article.ID, e.config.CandidateLimit)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to load cluster candidates: %w", err)
	}

	if best, ok := BestMatch(vec, candidates, e.config.SimilarityThreshold); ok {
		if err := e.attach(ctx, article.ID, best.ClusterID); err != nil {
			return Assignment{}, err
		}
		e.log.Debug("Article joined cluster",
			"article_id", article.ID, "cluster_id", best.ClusterID, "similarity", best.Similarity)
		return Assignment{ClusterID: best.ClusterID, Similarity: best.Similarity}, nil
	}

	cluster := newCluster(article)
	if err := e.clusters.Create(ctx, cluster); err != nil {
		return Assignment{}, fmt.Errorf("failed to create cluster: %w", err)
	}
	if err := e.attach(ctx, article.ID, cluster.ID); err != nil {
		e.discard(ctx, cluster.ID)
		return Assignment{}, err
	}

	e.log.Debug("Article seeded cluster", "article_id", article.ID, "cluster_id", cluster.ID, "topic", cluster.Topic)
	return Assignment{ClusterID: cluster.ID, Created: true}, nil
}

// attach persists the membership and recomputes the cluster under its lock so
// concurrent assignments to one cluster never interleave their recomputes.
func (e *Engine) attach(ctx context.Context, articleID, clusterID string) error {
	unlock := e.locks.Lock(clusterID)
	defer unlock()

	if err := e.articles.AssignCluster(ctx, articleID, clusterID); err != nil {
		return fmt.Errorf("failed to assign article %s to cluster %s: %w", articleID, clusterID, err)
	}
	if err := e.aggregator.Recompute(ctx, clusterID); err != nil {
		return fmt.Errorf("failed to recompute cluster %s: %w", clusterID, err)
	}
	return nil
}

// discard drops a freshly created cluster whose seed article never attached.
// A cluster the article did reach is kept for Refresh to repair.
func (e *Engine) discard(ctx context.Context, clusterID string) {
	unlock := e.locks.Lock(clusterID)
	defer unlock()

	removed, err := e.clusters.DeleteEmpty(context.WithoutCancel(ctx), clusterID)
	if err != nil {
		logger.Error("Failed to discard empty cluster", err, "cluster_id", clusterID)
		return
	}
	if removed {
		e.log.Debug("Discarded empty cluster", "cluster_id", clusterID)
	}
}

// Refresh recomputes a cluster's stats under its lock. Used when resuming an
// article that was attached but never finished.
func (e *Engine) Refresh(ctx context.Context, clusterID string) error {
	unlock := e.locks.Lock(clusterID)
	defer unlock()
	return e.aggregator.Recompute(ctx, clusterID)
}

// newCluster seeds a cluster with no members counted; attach fills in the
// real stats once the article references it.
func newCluster(article core.Article) *core.Cluster {
	topic := ExtractTopic(article.Title)
	return &core.Cluster{
		ID:       uuid.NewString(),
		Topic:    topic,
		IsActive: true,
		ClusterStats: core.ClusterStats{
			FirstArticleAt:         article.PublishedAt,
			LastArticleAt:          article.PublishedAt,
			RepresentativeHeadline: article.Title,
			TopicSlug:              SlugFor(topic, article.Title),
		},
	}
}
