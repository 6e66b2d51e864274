package pipeline

import (
	"context"
	"fmt"

	"axial/internal/core"
	"axial/internal/narrative"
)

// RunEnrichment attaches a summary and framing analysis to the largest
// unsummarized clusters. It is a no-op when text generation is unavailable.
func (p *Pipeline) RunEnrichment(ctx context.Context) (int, error) {
	if !p.AIAvailable() {
		p.log.Info("Text generation not configured, skipping enrichment")
		return 0, nil
	}

	release, err := p.acquire(ctx, StageEnrich)
	if err != nil {
		return 0, err
	}
	defer release()

	ctx, cancel := p.stageContext(ctx)
	defer cancel()

	start := p.now()
	clusters, err := p.clusters.ListForEnrichment(ctx, p.config.EnrichMinArticles, p.config.EnrichLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to select clusters for enrichment: %w", err)
	}
	p.log.Info("Starting enrichment", "clusters", len(clusters))

	enriched := 0
	for _, cluster := range clusters {
		saved, err := p.enrichCluster(ctx, cluster)
		if err != nil {
			p.log.Warn("Cluster enrichment failed", "cluster_id", cluster.ID, "error", err)
			continue
		}
		if saved {
			enriched++
			p.log.Info("Enriched cluster", "cluster_id", cluster.ID, "topic", cluster.Topic)
		}
	}

	elapsed := p.now().Sub(start)
	p.recorder.RecordEnrichment(enriched, elapsed)
	p.log.Info("Enrichment complete", "enriched", enriched, "duration", elapsed)
	return enriched, nil
}

func (p *Pipeline) enrichCluster(ctx context.Context, cluster core.Cluster) (bool, error) {
	members, err := p.articles.RecentClusterMembers(ctx, cluster.ID, p.config.EnrichMembers)
	if err != nil {
		return false, fmt.Errorf("failed to load members: %w", err)
	}
	if len(members) == 0 {
		return false, fmt.Errorf("cluster has no members")
	}

	summary, err := p.narrator.Summarize(ctx, members)
	if err != nil {
		return false, err
	}

	topic := cluster.Topic
	if topic == "" {
		topic = members[0].Title
	}
	left, center, right := narrative.PartitionByBias(members)
	analysis, err := p.narrator.AnalyzeBias(ctx, topic, left, center, right)
	if err != nil {
		return false, err
	}

	return p.clusters.SaveEnrichment(ctx, cluster.ID, summary, analysis, p.now().UTC())
}
