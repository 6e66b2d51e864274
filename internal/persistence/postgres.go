package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // Postgres driver
)

// psql builds statements with PostgreSQL $n placeholders
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PoolSettings configures the connection pool
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolSettings returns the pool settings used when none are configured
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db       *sql.DB
	sources  SourceRepository
	articles ArticleRepository
	clusters ClusterRepository
	digests  DigestRepository
	status   StatusRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, pool PoolSettings) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newPostgresDB(db), nil
}

func newPostgresDB(db *sql.DB) *PostgresDB {
	return &PostgresDB{
		db:       db,
		sources:  &postgresSourceRepo{conn{db: db}},
		articles: &postgresArticleRepo{conn{db: db}},
		clusters: &postgresClusterRepo{conn{db: db}},
		digests:  &postgresDigestRepo{conn{db: db}},
		status:   &postgresStatusRepo{conn{db: db}},
	}
}

func (p *PostgresDB) Sources() SourceRepository   { return p.sources }
func (p *PostgresDB) Articles() ArticleRepository { return p.articles }
func (p *PostgresDB) Clusters() ClusterRepository { return p.clusters }
func (p *PostgresDB) Digests() DigestRepository   { return p.digests }
func (p *PostgresDB) Status() StatusRepository    { return p.status }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresTx{
		tx:       tx,
		sources:  &postgresSourceRepo{conn{db: p.db, tx: tx}},
		articles: &postgresArticleRepo{conn{db: p.db, tx: tx}},
		clusters: &postgresClusterRepo{conn{db: p.db, tx: tx}},
		digests:  &postgresDigestRepo{conn{db: p.db, tx: tx}},
	}, nil
}

// postgresTx implements Transaction interface
type postgresTx struct {
	tx       *sql.Tx
	sources  SourceRepository
	articles ArticleRepository
	clusters ClusterRepository
	digests  DigestRepository
}

func (t *postgresTx) Commit() error               { return t.tx.Commit() }
func (t *postgresTx) Rollback() error             { return t.tx.Rollback() }
func (t *postgresTx) Sources() SourceRepository   { return t.sources }
func (t *postgresTx) Articles() ArticleRepository { return t.articles }
func (t *postgresTx) Clusters() ClusterRepository { return t.clusters }
func (t *postgresTx) Digests() DigestRepository   { return t.digests }

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// conn holds the handle shared by every repository
type conn struct {
	db *sql.DB
	tx *sql.Tx
}

func (c conn) query() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// execAffected runs a statement and returns the number of rows it changed
func (c conn) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := c.query().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
