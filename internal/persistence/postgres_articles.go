package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"axial/internal/core"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const articleColumns = `id, source_id, title, description, link, image_url, published_at, fetched_at,
	heat_score, substance_score, keywords, cluster_id, state, is_processed`

const memberColumns = `a.id, a.source_id, a.title, COALESCE(a.description, ''), COALESCE(s.bias_label, ''),
	a.heat_score, a.substance_score, a.published_at`

// ArticleID derives the stable article identifier from its link
func ArticleID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}

// postgresArticleRepo implements ArticleRepository for PostgreSQL
type postgresArticleRepo struct {
	conn
}

func (r *postgresArticleRepo) ExistsByLink(ctx context.Context, link string) (bool, error) {
	var exists bool
	err := r.query().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE link = $1)`, link).Scan(&exists)
	return exists, err
}

func (r *postgresArticleRepo) Insert(ctx context.Context, article *core.Article) (bool, error) {
	if article.ID == "" {
		article.ID = ArticleID(article.Link)
	}
	if article.FetchedAt.IsZero() {
		article.FetchedAt = time.Now().UTC()
	}
	article.State = core.StateFetched

	query := `
		INSERT INTO articles (id, source_id, title, description, link, image_url, published_at, fetched_at, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (link) DO NOTHING
	`
	n, err := r.execAffected(ctx, query,
		article.ID, article.SourceID, article.Title, nullString(article.Description), article.Link,
		nullString(article.ImageURL), article.PublishedAt, article.FetchedAt, string(core.StateFetched),
	)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}
	return n == 1, nil
}

func (r *postgresArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	row := r.query().QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return article, err
}

func (r *postgresArticleRepo) SaveScores(ctx context.Context, id string, heat, substance float64, keywords []string) error {
	n, err := r.execAffected(ctx, `
		UPDATE articles SET heat_score = $2, substance_score = $3, keywords = $4, state = $5
		WHERE id = $1 AND state = $6
	`, id, heat, substance, pq.Array(keywords), string(core.StateScored), string(core.StateFetched))
	return r.transitioned(n, err, id, core.StateFetched)
}

func (r *postgresArticleRepo) AssignCluster(ctx context.Context, articleID, clusterID string) error {
	n, err := r.execAffected(ctx, `
		UPDATE articles SET cluster_id = $2, state = $3
		WHERE id = $1 AND state = $4
	`, articleID, clusterID, string(core.StateClustered), string(core.StateScored))
	return r.transitioned(n, err, articleID, core.StateScored)
}

func (r *postgresArticleRepo) Transition(ctx context.Context, id string, from, to core.ArticleState) error {
	if err := core.ValidateTransition(from, to); err != nil {
		return err
	}
	n, err := r.execAffected(ctx, `
		UPDATE articles SET state = $2, is_processed = $3
		WHERE id = $1 AND state = $4
	`, id, string(to), to == core.StateProcessed, string(from))
	return r.transitioned(n, err, id, from)
}

// transitioned turns a conditional update's row count into ErrStateConflict
func (r *postgresArticleRepo) transitioned(n int64, err error, id string, from core.ArticleState) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("article %s not in state %s: %w", id, from, ErrStateConflict)
	}
	return nil
}

func (r *postgresArticleRepo) ListByStates(ctx context.Context, states []core.ArticleState, limit int) ([]core.Article, error) {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	builder := psql.Select(articleColumns).From("articles").
		Where(sq.Eq{"state": names}).
		OrderBy("fetched_at ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.list(ctx, builder)
}

func (r *postgresArticleRepo) RecentClustered(ctx context.Context, since time.Time, excludeID string, limit int) ([]core.Article, error) {
	builder := psql.Select(articleColumns).From("articles").
		Where(sq.Gt{"published_at": since}).
		Where(sq.NotEq{"cluster_id": nil}).
		OrderBy("published_at DESC")
	if excludeID != "" {
		builder = builder.Where(sq.NotEq{"id": excludeID})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.list(ctx, builder)
}

func (r *postgresArticleRepo) list(ctx context.Context, builder sq.SelectBuilder) ([]core.Article, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

func (r *postgresArticleRepo) ClusterMembers(ctx context.Context, clusterID string) ([]core.ClusterMember, error) {
	return r.members(ctx, clusterID, "a.published_at ASC", 0)
}

func (r *postgresArticleRepo) RecentClusterMembers(ctx context.Context, clusterID string, limit int) ([]core.ClusterMember, error) {
	return r.members(ctx, clusterID, "a.published_at DESC", limit)
}

func (r *postgresArticleRepo) members(ctx context.Context, clusterID, order string, limit int) ([]core.ClusterMember, error) {
	builder := psql.Select(memberColumns).
		From("articles a").
		Join("sources s ON s.id = a.source_id").
		Where(sq.Eq{"a.cluster_id": clusterID}).
		OrderBy(order)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build member query: %w", err)
	}

	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []core.ClusterMember
	for rows.Next() {
		var (
			m    core.ClusterMember
			bias string
		)
		if err := rows.Scan(&m.ArticleID, &m.SourceID, &m.Title, &m.Description, &bias,
			&m.HeatScore, &m.SubstanceScore, &m.PublishedAt); err != nil {
			return nil, err
		}
		m.BiasLabel = core.BiasLabel(bias)
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanArticle(row scanner) (*core.Article, error) {
	var (
		a           core.Article
		description sql.NullString
		imageURL    sql.NullString
		keywords    pq.StringArray
		clusterID   sql.NullString
		state       string
	)
	err := row.Scan(&a.ID, &a.SourceID, &a.Title, &description, &a.Link, &imageURL,
		&a.PublishedAt, &a.FetchedAt, &a.HeatScore, &a.SubstanceScore, &keywords,
		&clusterID, &state, &a.IsProcessed)
	if err != nil {
		return nil, err
	}
	a.Description = description.String
	a.ImageURL = imageURL.String
	a.Keywords = []string(keywords)
	if clusterID.Valid {
		id := clusterID.String
		a.ClusterID = &id
	}
	a.State = core.ArticleState(state)
	return &a, nil
}
