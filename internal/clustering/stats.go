package clustering

import (
	"context"
	"fmt"

	"axial/internal/core"
)

// Aggregator recomputes a cluster's derived fields from its members.
//
// Every call is a full recompute rather than an incremental update. This keeps
// the aggregate consistent with its members at O(cluster size) per assignment,
// which suits clusters of tens of articles. Clusters in the thousands would
// call for incremental counters with periodic reconciliation instead.
type Aggregator struct {
	articles ArticleStore
	clusters ClusterStore
}

// NewAggregator creates an aggregator over the given stores.
func NewAggregator(articles ArticleStore, clusters ClusterStore) *Aggregator {
	return &Aggregator{articles: articles, clusters: clusters}
}

// Recompute reloads every member of the cluster and stores fresh stats.
func (a *Aggregator) Recompute(ctx context.Context, clusterID string) error {
	cluster, err := a.clusters.Get(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("failed to load cluster: %w", err)
	}

	members, err := a.articles.ClusterMembers(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("failed to load cluster members: %w", err)
	}
	if len(members) == 0 {
		return fmt.Errorf("cluster %s has no members", clusterID)
	}

	stats := ComputeStats(cluster.Topic, members)
	if err := a.clusters.UpdateStats(ctx, clusterID, stats); err != nil {
		return fmt.Errorf("failed to store cluster stats: %w", err)
	}
	return nil
}

// ComputeStats derives cluster stats from members.
//
// Bias buckets tally member articles, not distinct sources, so a source with
// several articles in the cluster counts once per article. The four buckets
// therefore need not sum to SourceCount.
func ComputeStats(topic string, members []core.ClusterMember) core.ClusterStats {
	var stats core.ClusterStats
	if len(members) == 0 {
		return stats
	}

	sources := make(map[string]struct{}, len(members))
	var heatSum, substanceSum float64
	earliest := members[0]

	for i, m := range members {
		sources[m.SourceID] = struct{}{}
		heatSum += m.HeatScore
		substanceSum += m.SubstanceScore

		switch m.BiasLabel.Bucket() {
		case core.BucketLeft:
			stats.LeftCount++
		case core.BucketCenter:
			stats.CenterCount++
		case core.BucketRight:
			stats.RightCount++
		case core.BucketInternational:
			stats.InternationalCount++
		}

		if i == 0 || m.PublishedAt.Before(stats.FirstArticleAt) {
			stats.FirstArticleAt = m.PublishedAt
			earliest = m
		}
		if i == 0 || m.PublishedAt.After(stats.LastArticleAt) {
			stats.LastArticleAt = m.PublishedAt
		}
	}

	n := float64(len(members))
	stats.ArticleCount = len(members)
	stats.SourceCount = len(sources)
	stats.AvgHeat = heatSum / n
	stats.AvgSubstance = substanceSum / n
	stats.RepresentativeHeadline = earliest.Title
	stats.TopicSlug = SlugFor(topic, earliest.Title)

	return stats
}

// SlugFor slugifies topic, falling back to headline when topic is empty.
func SlugFor(topic, headline string) string {
	if topic != "" {
		return Slugify(topic)
	}
	return Slugify(headline)
}
