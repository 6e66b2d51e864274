package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"axial/internal/core"
	"axial/internal/persistence"
	"axial/internal/scoring"

	"golang.org/x/sync/errgroup"
)

// SyncResult summarizes one ingestion run
type SyncResult struct {
	Fetched int `json:"fetched"` // Items returned by all feeds
	New     int `json:"new"`     // Articles inserted by this run
	Errors  int `json:"errors"`  // Failed sources plus failed items
	Resumed int `json:"resumed"` // Unfinished articles from earlier runs driven to processed
}

type sourceBatch struct {
	source core.Source
	items  []core.FeedItem
	err    error
}

// RunSync ingests every active source. Per-source and per-item failures are
// counted and logged; only failing to start the run returns an error.
func (p *Pipeline) RunSync(ctx context.Context) (SyncResult, error) {
	release, err := p.acquire(ctx, StageSync)
	if err != nil {
		return SyncResult{}, err
	}
	defer release()

	ctx, cancel := p.stageContext(ctx)
	defer cancel()

	start := p.now()
	var result SyncResult

	p.resume(ctx, &result)

	sources, err := p.sources.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list active sources: %w", err)
	}
	p.log.Info("Starting feed sync", "sources", len(sources))

	for _, batch := range p.fetchAll(ctx, sources) {
		if batch.err != nil {
			result.Errors++
			p.log.Warn("Feed fetch failed", "source", batch.source.Name, "feed_url", batch.source.FeedURL, "error", batch.err)
			continue
		}
		result.Fetched += len(batch.items)

		for _, item := range batch.items {
			// A stored item that failed to advance counts as new and as an
			// error; the next run resumes it.
			inserted, err := p.ingestItem(ctx, batch.source, item)
			if inserted {
				result.New++
			}
			if err != nil {
				result.Errors++
				p.log.Warn("Failed to process item", "source", batch.source.Name, "link", item.Link, "error", err)
			}
		}

		if err := p.sources.MarkFetched(ctx, batch.source.ID, p.now().UTC()); err != nil {
			p.log.Warn("Failed to stamp source fetch time", "source", batch.source.Name, "error", err)
		}
	}

	elapsed := p.now().Sub(start)
	p.recorder.RecordSync(result, elapsed)
	p.log.Info("Sync complete",
		"fetched", result.Fetched, "new", result.New, "errors", result.Errors,
		"resumed", result.Resumed, "duration", elapsed)
	return result, nil
}

// fetchAll fetches sources concurrently and returns batches in source order
// so items are processed serially, each source in feed order.
func (p *Pipeline) fetchAll(ctx context.Context, sources []core.Source) []sourceBatch {
	batches := make([]sourceBatch, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.config.FetchConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, source := range sources {
		batches[i].source = source
		g.Go(func() error {
			items, err := p.fetcher.FetchStrict(gctx, source.FeedURL)
			batches[i].items = items
			batches[i].err = err
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

// ingestItem stores one feed item and drives it to processed. It reports
// whether the item was new; a known link is not an error.
func (p *Pipeline) ingestItem(ctx context.Context, source core.Source, item core.FeedItem) (bool, error) {
	exists, err := p.articles.ExistsByLink(ctx, item.Link)
	if err != nil {
		return false, fmt.Errorf("failed to check link: %w", err)
	}
	if exists {
		return false, nil
	}

	article := &core.Article{
		SourceID:    source.ID,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		ImageURL:    item.ImageURL,
		PublishedAt: item.PublishedAt,
		FetchedAt:   p.now().UTC(),
		State:       core.StateFetched,
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = article.FetchedAt
	}

	inserted, err := p.articles.Insert(ctx, article)
	if err != nil {
		return false, err
	}
	if !inserted {
		// Lost a race with another writer for the same link
		return false, nil
	}

	if err := p.advance(ctx, article, false); err != nil {
		return true, err
	}
	return true, nil
}

// resume drives articles left unfinished by an interrupted run to processed
func (p *Pipeline) resume(ctx context.Context, result *SyncResult) {
	pending, err := p.articles.ListByStates(ctx, core.PendingStates(), p.config.ResumeLimit)
	if err != nil {
		result.Errors++
		p.log.Warn("Failed to list unfinished articles", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	p.log.Info("Resuming unfinished articles", "count", len(pending))
	for i := range pending {
		if err := p.advance(ctx, &pending[i], true); err != nil {
			result.Errors++
			p.log.Warn("Failed to resume article", "article_id", pending[i].ID, "state", pending[i].State, "error", err)
			continue
		}
		result.Resumed++
	}
}

// advance moves an article through fetched -> scored -> clustered -> processed
// from whatever state it is in. Each step is a conditional write, so an
// article another run already moved on is left alone.
func (p *Pipeline) advance(ctx context.Context, article *core.Article, resumed bool) error {
	err := p.step(ctx, article, resumed)
	if errors.Is(err, persistence.ErrStateConflict) {
		p.log.Debug("Article already advanced elsewhere", "article_id", article.ID)
		return nil
	}
	return err
}

func (p *Pipeline) step(ctx context.Context, article *core.Article, resumed bool) error {
	if article.State == core.StateFetched {
		text := article.Text()
		score := scoring.Score(text)
		keywords := scoring.Keywords(text)
		if err := p.articles.SaveScores(ctx, article.ID, score.Heat, score.Substance, keywords); err != nil {
			return fmt.Errorf("failed to score article: %w", err)
		}
		article.HeatScore = score.Heat
		article.SubstanceScore = score.Substance
		article.Keywords = keywords
		article.State = core.StateScored
	}

	switch article.State {
	case core.StateScored:
		assignment, err := p.assigner.Assign(ctx, *article)
		if err != nil {
			return fmt.Errorf("failed to cluster article: %w", err)
		}
		if !assignment.Clustered() {
			return p.articles.Transition(ctx, article.ID, core.StateScored, core.StateProcessed)
		}
		article.ClusterID = &assignment.ClusterID
		article.State = core.StateClustered

	case core.StateClustered:
		// Attached before an interruption; its cluster may hold stale stats
		if resumed && article.ClusterID != nil {
			if err := p.assigner.Refresh(ctx, *article.ClusterID); err != nil {
				return fmt.Errorf("failed to refresh cluster: %w", err)
			}
		}

	case core.StateProcessed:
		return nil

	default:
		return fmt.Errorf("unknown article state %q", article.State)
	}

	if err := p.articles.Transition(ctx, article.ID, core.StateClustered, core.StateProcessed); err != nil {
		return err
	}
	article.State = core.StateProcessed
	article.IsProcessed = true
	return nil
}

// since returns the start of a trailing window ending now
func (p *Pipeline) since(window time.Duration) time.Time {
	return p.now().UTC().Add(-window)
}
