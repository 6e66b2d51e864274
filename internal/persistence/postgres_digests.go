package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"axial/internal/core"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// digestNamespace scopes deterministic digest IDs
var digestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("axial:daily-digest"))

// DigestID derives the stable identifier of the digest for a YYYY-MM-DD date
func DigestID(date string) string {
	return uuid.NewSHA1(digestNamespace, []byte(date)).String()
}

// postgresDigestRepo implements DigestRepository for PostgreSQL
type postgresDigestRepo struct {
	conn
}

func (r *postgresDigestRepo) ExistsForDate(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := r.query().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_digests WHERE digest_date = $1)`, date).Scan(&exists)
	return exists, err
}

func (r *postgresDigestRepo) Create(ctx context.Context, d *core.DailyDigest) (bool, error) {
	if d.ID == "" {
		d.ID = DigestID(d.DigestDate)
	}
	if d.ClosingLine == "" {
		d.ClosingLine = core.DefaultClosingLine
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	n, err := r.execAffected(ctx, `
		INSERT INTO daily_digests (id, digest_date, summary, key_topics, closing_line, cluster_count, article_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (digest_date) DO NOTHING
	`, d.ID, d.DigestDate, d.Summary, pq.Array(d.KeyTopics), d.ClosingLine, d.ClusterCount, d.ArticleCount, d.CreatedAt)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert digest: %w", err)
	}
	return n == 1, nil
}

func (r *postgresDigestRepo) Latest(ctx context.Context) (*core.DailyDigest, error) {
	var (
		d         core.DailyDigest
		date      time.Time
		keyTopics pq.StringArray
	)
	err := r.query().QueryRowContext(ctx, `
		SELECT id, digest_date, summary, key_topics, closing_line, cluster_count, article_count, created_at
		FROM daily_digests ORDER BY digest_date DESC LIMIT 1
	`).Scan(&d.ID, &date, &d.Summary, &keyTopics, &d.ClosingLine, &d.ClusterCount, &d.ArticleCount, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.DigestDate = date.Format("2006-01-02")
	d.KeyTopics = []string(keyTopics)
	return &d, nil
}
