package pipeline

import (
	"context"
	"fmt"

	"axial/internal/core"
	"axial/internal/narrative"
)

// RunDigest writes today's digest over the top clusters of the trailing
// window. It reports false when a digest for today already exists or there
// is nothing to cover. Without text generation the digest is templated.
func (p *Pipeline) RunDigest(ctx context.Context) (bool, error) {
	release, err := p.acquire(ctx, StageDigest)
	if err != nil {
		return false, err
	}
	defer release()

	ctx, cancel := p.stageContext(ctx)
	defer cancel()

	start := p.now()
	created, err := p.buildDigest(ctx)
	if err != nil {
		return false, err
	}

	p.recorder.RecordDigest(created, p.now().Sub(start))
	return created, nil
}

func (p *Pipeline) buildDigest(ctx context.Context) (bool, error) {
	now := p.now().UTC()
	date := core.DigestDate(now)

	exists, err := p.digests.ExistsForDate(ctx, date)
	if err != nil {
		return false, fmt.Errorf("failed to check digest for %s: %w", date, err)
	}
	if exists {
		p.log.Info("Digest already exists for today", "date", date)
		return false, nil
	}

	since := p.since(p.config.DigestWindow)
	clusters, err := p.clusters.ListActiveSince(ctx, since, p.config.DigestLimit)
	if err != nil {
		return false, fmt.Errorf("failed to select digest clusters: %w", err)
	}
	if len(clusters) == 0 {
		p.log.Info("No clusters for digest", "date", date)
		return false, nil
	}

	clusterCount, articleCount, err := p.clusters.WindowTotals(ctx, since)
	if err != nil {
		return false, fmt.Errorf("failed to count digest window: %w", err)
	}

	stories := make([]core.DigestStory, 0, len(clusters))
	for _, c := range clusters {
		story := core.DigestStory{Topic: c.Topic, ArticleCount: c.ArticleCount}
		if c.Summary != nil {
			story.Summary = *c.Summary
		}
		stories = append(stories, story)
	}

	digest := &core.DailyDigest{
		DigestDate:   date,
		Summary:      p.composeDigest(ctx, stories),
		KeyTopics:    narrative.KeyTopics(stories),
		ClosingLine:  core.DefaultClosingLine,
		ClusterCount: clusterCount,
		ArticleCount: articleCount,
		CreatedAt:    now,
	}

	created, err := p.digests.Create(ctx, digest)
	if err != nil {
		return false, fmt.Errorf("failed to store digest: %w", err)
	}
	if created {
		p.log.Info("Daily digest created", "date", date, "clusters", clusterCount, "articles", articleCount)
	}
	return created, nil
}

// composeDigest prefers generated text and falls back to the template
func (p *Pipeline) composeDigest(ctx context.Context, stories []core.DigestStory) string {
	if !p.AIAvailable() {
		return narrative.TemplateDigest(stories)
	}

	text, err := p.narrator.ComposeDigest(ctx, stories)
	if err != nil {
		p.log.Warn("Digest generation failed, using template", "error", err)
		return narrative.TemplateDigest(stories)
	}
	return text
}
