package persistence

import (
	"context"
	"database/sql"
	"time"

	"axial/internal/core"
)

// postgresStatusRepo implements StatusRepository for PostgreSQL
type postgresStatusRepo struct {
	conn
}

func (r *postgresStatusRepo) Counts(ctx context.Context, now time.Time) (StatusCounts, error) {
	var (
		counts    StatusCounts
		lastFetch sql.NullTime
	)
	err := r.query().QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sources WHERE is_active = true),
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM clusters WHERE is_active = true AND last_article_at > $1),
			(SELECT COUNT(*) FROM articles WHERE fetched_at > $2),
			(SELECT COUNT(*) FROM articles WHERE state <> $3),
			(SELECT MAX(last_fetched_at) FROM sources)
	`, now.Add(-7*24*time.Hour), now.Add(-24*time.Hour), string(core.StateProcessed)).Scan(
		&counts.ActiveSources, &counts.TotalArticles, &counts.ActiveClusters,
		&counts.ArticlesLast24h, &counts.PendingArticles, &lastFetch,
	)
	if err != nil {
		return StatusCounts{}, err
	}
	counts.LastFetchAt = timePtr(lastFetch)
	return counts, nil
}
