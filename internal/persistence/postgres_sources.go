package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"axial/internal/core"

	"github.com/google/uuid"
)

const sourceColumns = `id, name, sub_source, feed_url, bias_label, is_active, last_fetched_at, created_at`

// SourceID derives the stable source identifier from its feed URL
func SourceID(feedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedURL)).String()
}

// postgresSourceRepo implements SourceRepository for PostgreSQL
type postgresSourceRepo struct {
	conn
}

func (r *postgresSourceRepo) insert(ctx context.Context, source *core.Source, onConflict string) (int64, error) {
	if source.ID == "" {
		source.ID = SourceID(source.FeedURL)
	}
	if source.BiasLabel == "" {
		source.BiasLabel = core.BiasCenter
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sources (id, name, sub_source, feed_url, bias_label, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	` + onConflict
	return r.execAffected(ctx, query,
		source.ID, source.Name, nullString(source.SubSource), source.FeedURL,
		string(source.BiasLabel), source.IsActive, source.CreatedAt,
	)
}

func (r *postgresSourceRepo) Create(ctx context.Context, source *core.Source) error {
	if _, err := r.insert(ctx, source, ""); err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

func (r *postgresSourceRepo) CreateIfAbsent(ctx context.Context, source *core.Source) (bool, error) {
	n, err := r.insert(ctx, source, "ON CONFLICT (feed_url) DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("failed to insert source: %w", err)
	}
	return n == 1, nil
}

func (r *postgresSourceRepo) Get(ctx context.Context, id string) (*core.Source, error) {
	row := r.query().QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return source, err
}

func (r *postgresSourceRepo) List(ctx context.Context, opts ListOptions) ([]core.Source, error) {
	builder := psql.Select(sourceColumns).From("sources").OrderBy("name", "sub_source")
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		builder = builder.Offset(uint64(opts.Offset))
	}
	return r.list(ctx, builder.ToSql)
}

func (r *postgresSourceRepo) ListActive(ctx context.Context) ([]core.Source, error) {
	return r.list(ctx, psql.Select(sourceColumns).From("sources").
		Where("is_active = true").OrderBy("name", "sub_source").ToSql)
}

func (r *postgresSourceRepo) list(ctx context.Context, build func() (string, []interface{}, error)) ([]core.Source, error) {
	query, args, err := build()
	if err != nil {
		return nil, fmt.Errorf("failed to build source query: %w", err)
	}
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}
	return sources, rows.Err()
}

func (r *postgresSourceRepo) SetActive(ctx context.Context, id string, active bool) error {
	n, err := r.execAffected(ctx,
		`UPDATE sources SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresSourceRepo) MarkFetched(ctx context.Context, id string, at time.Time) error {
	_, err := r.execAffected(ctx,
		`UPDATE sources SET last_fetched_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}

func (r *postgresSourceRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.query().QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&n)
	return n, err
}

func scanSource(row scanner) (*core.Source, error) {
	var (
		source      core.Source
		subSource   sql.NullString
		bias        string
		lastFetched sql.NullTime
	)
	err := row.Scan(&source.ID, &source.Name, &subSource, &source.FeedURL, &bias,
		&source.IsActive, &lastFetched, &source.CreatedAt)
	if err != nil {
		return nil, err
	}
	source.SubSource = subSource.String
	source.BiasLabel = core.BiasLabel(bias)
	source.LastFetchedAt = timePtr(lastFetched)
	return &source, nil
}
