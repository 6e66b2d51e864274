package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"axial/internal/core"

	sq "github.com/Masterminds/squirrel"
)

const clusterColumns = `id, COALESCE(topic, ''), COALESCE(topic_slug, ''), COALESCE(representative_headline, ''),
	summary, summary_generated_at, bias_analysis, avg_heat_score, avg_substance_score,
	article_count, source_count, left_count, center_count, right_count, international_count,
	first_article_at, last_article_at, is_active`

// postgresClusterRepo implements ClusterRepository for PostgreSQL
type postgresClusterRepo struct {
	conn
}

func (r *postgresClusterRepo) Create(ctx context.Context, c *core.Cluster) error {
	query := `
		INSERT INTO clusters (
			id, topic, topic_slug, representative_headline, avg_heat_score, avg_substance_score,
			article_count, source_count, left_count, center_count, right_count, international_count,
			first_article_at, last_article_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.query().ExecContext(ctx, query,
		c.ID, c.Topic, c.TopicSlug, c.RepresentativeHeadline, c.AvgHeat, c.AvgSubstance,
		c.ArticleCount, c.SourceCount, c.LeftCount, c.CenterCount, c.RightCount, c.InternationalCount,
		c.FirstArticleAt, c.LastArticleAt, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", mapError(err))
	}
	return nil
}

func (r *postgresClusterRepo) Get(ctx context.Context, id string) (*core.Cluster, error) {
	row := r.query().QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE id = $1`, id)
	cluster, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cluster, err
}

func (r *postgresClusterRepo) UpdateStats(ctx context.Context, id string, s core.ClusterStats) error {
	n, err := r.execAffected(ctx, `
		UPDATE clusters SET
			article_count = $2, source_count = $3,
			left_count = $4, center_count = $5, right_count = $6, international_count = $7,
			avg_heat_score = $8, avg_substance_score = $9,
			first_article_at = $10, last_article_at = $11,
			representative_headline = $12, topic_slug = $13,
			updated_at = NOW()
		WHERE id = $1
	`, id, s.ArticleCount, s.SourceCount,
		s.LeftCount, s.CenterCount, s.RightCount, s.InternationalCount,
		s.AvgHeat, s.AvgSubstance, s.FirstArticleAt, s.LastArticleAt,
		s.RepresentativeHeadline, s.TopicSlug)
	if err != nil {
		return fmt.Errorf("failed to update cluster stats: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresClusterRepo) DeleteEmpty(ctx context.Context, id string) (bool, error) {
	query, args, err := psql.Delete("clusters").
		Where(sq.Eq{"id": id}).
		Where("NOT EXISTS (SELECT 1 FROM articles WHERE cluster_id = ?)", id).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build cluster delete: %w", err)
	}
	n, err := r.execAffected(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete cluster: %w", err)
	}
	return n == 1, nil
}

func (r *postgresClusterRepo) ListForEnrichment(ctx context.Context, minArticles, limit int) ([]core.Cluster, error) {
	builder := psql.Select(clusterColumns).From("clusters").
		Where(sq.Eq{"is_active": true}).
		Where(sq.GtOrEq{"article_count": minArticles}).
		Where(sq.Eq{"summary": nil}).
		OrderBy("article_count DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.list(ctx, builder)
}

func (r *postgresClusterRepo) SaveEnrichment(ctx context.Context, id, summary string, analysis core.BiasAnalysis, at time.Time) (bool, error) {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return false, fmt.Errorf("failed to marshal bias analysis: %w", err)
	}

	// One statement keeps summary and analysis consistent; the NULL gate makes replays no-ops.
	n, err := r.execAffected(ctx, `
		UPDATE clusters SET summary = $2, bias_analysis = $3, summary_generated_at = $4, updated_at = NOW()
		WHERE id = $1 AND summary IS NULL
	`, id, summary, analysisJSON, at)
	if err != nil {
		return false, fmt.Errorf("failed to save cluster enrichment: %w", err)
	}
	return n == 1, nil
}

func (r *postgresClusterRepo) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]core.Cluster, error) {
	builder := psql.Select(clusterColumns).From("clusters").
		Where(sq.Eq{"is_active": true}).
		Where(sq.Gt{"last_article_at": since}).
		Where(sq.Gt{"article_count": 0}).
		OrderBy("article_count DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.list(ctx, builder)
}

func (r *postgresClusterRepo) WindowTotals(ctx context.Context, since time.Time) (int, int, error) {
	query, args, err := psql.Select("COUNT(DISTINCT c.id)", "COUNT(a.id)").
		From("clusters c").
		Join("articles a ON a.cluster_id = c.id").
		Where(sq.Eq{"c.is_active": true}).
		Where(sq.Gt{"c.last_article_at": since}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build totals query: %w", err)
	}

	var clusters, articles int
	if err := r.query().QueryRowContext(ctx, query, args...).Scan(&clusters, &articles); err != nil {
		return 0, 0, err
	}
	return clusters, articles, nil
}

func (r *postgresClusterRepo) list(ctx context.Context, builder sq.SelectBuilder) ([]core.Cluster, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster query: %w", err)
	}
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []core.Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *cluster)
	}
	return clusters, rows.Err()
}

func scanCluster(row scanner) (*core.Cluster, error) {
	var (
		c           core.Cluster
		summary     sql.NullString
		generatedAt sql.NullTime
		analysis    []byte
	)
	err := row.Scan(&c.ID, &c.Topic, &c.TopicSlug, &c.RepresentativeHeadline,
		&summary, &generatedAt, &analysis, &c.AvgHeat, &c.AvgSubstance,
		&c.ArticleCount, &c.SourceCount, &c.LeftCount, &c.CenterCount, &c.RightCount, &c.InternationalCount,
		&c.FirstArticleAt, &c.LastArticleAt, &c.IsActive)
	if err != nil {
		return nil, err
	}

	if summary.Valid {
		s := summary.String
		c.Summary = &s
	}
	c.SummaryGeneratedAt = timePtr(generatedAt)
	if len(analysis) > 0 {
		var ba core.BiasAnalysis
		if err := json.Unmarshal(analysis, &ba); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bias analysis for cluster %s: %w", c.ID, err)
		}
		c.BiasAnalysis = &ba
	}
	return &c, nil
}
