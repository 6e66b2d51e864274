package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"axial/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationName matches "<version>_<description>.sql"
var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.sql$`)

// migrationLockKey is the advisory lock held while migrating
const migrationLockKey = 7_311_024

const ledgerDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INT PRIMARY KEY,
	description TEXT NOT NULL,
	checksum    TEXT NOT NULL DEFAULT '',
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT NOT NULL DEFAULT '';`

// Migration is one embedded schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
	Checksum    string // sha256 of SQL
}

// MigrationStatus reports one migration against the schema_migrations ledger
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   *time.Time
	Modified    bool // File changed after it was applied
}

type ledgerEntry struct {
	checksum  string
	appliedAt time.Time
}

// MigrationManager applies the embedded migrations in version order
type MigrationManager struct {
	db         *sql.DB
	migrations []Migration
	loadErr    error
	log        *slog.Logger
}

// NewMigrationManager creates a migration manager over the embedded migrations
func NewMigrationManager(db *PostgresDB) *MigrationManager {
	migrations, err := loadMigrations(migrationFiles, "migrations")
	return &MigrationManager{
		db:         db.db,
		migrations: migrations,
		loadErr:    err,
		log:        logger.Get().With("component", "migrations"),
	}
}

// loadMigrations reads every .sql file in dir. Badly named files and
// duplicate versions are errors rather than silently skipped.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	seen := make(map[int]string, len(names))
	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		match := migrationName.FindStringSubmatch(base)
		if match == nil {
			return nil, fmt.Errorf("migration %s: name must look like 001_description.sql", base)
		}
		version, err := strconv.Atoi(match[1])
		if err != nil || version == 0 {
			return nil, fmt.Errorf("migration %s: invalid version", base)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration %s: version %d already used by %s", base, version, other)
		}
		seen[version] = base

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", base, err)
		}
		sum := sha256.Sum256(content)

		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(match[2], "_", " "),
			SQL:         string(content),
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies every pending migration and returns how many it applied.
// Concurrent callers serialize on a Postgres advisory lock.
func (m *MigrationManager) Migrate(ctx context.Context) (int, error) {
	if m.loadErr != nil {
		return 0, m.loadErr
	}

	unlock, err := m.acquireLock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	ledger, err := m.ledger(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, migration := range m.migrations {
		if entry, done := ledger[migration.Version]; done {
			if entry.checksum != "" && entry.checksum != migration.Checksum {
				m.log.Warn("Applied migration was edited afterwards", "version", migration.Version)
			}
			continue
		}

		if err := m.apply(ctx, migration); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Description, err)
		}
		applied++
	}

	m.log.Info("Migrations up to date", "applied", applied, "total", len(m.migrations))
	return applied, nil
}

// Status lists every known migration and whether it has been applied
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	ledger, err := m.ledger(ctx)
	if err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		st := MigrationStatus{Version: migration.Version, Description: migration.Description}
		if entry, ok := ledger[migration.Version]; ok {
			appliedAt := entry.appliedAt
			st.Applied = true
			st.AppliedAt = &appliedAt
			st.Modified = entry.checksum != "" && entry.checksum != migration.Checksum
		}
		status = append(status, st)
	}
	return status, nil
}

// Rollback forgets the most recently applied migration and returns its
// version. Schema changes are not reverted.
func (m *MigrationManager) Rollback(ctx context.Context) (int, error) {
	query, args, err := psql.Select("version").From("schema_migrations").
		OrderBy("version DESC").Limit(1).ToSql()
	if err != nil {
		return 0, err
	}

	var version int
	if err := m.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no migrations to roll back: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to find last migration: %w", err)
	}

	query, args, err = psql.Delete("schema_migrations").Where("version = ?", version).ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := m.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to remove migration %d: %w", version, err)
	}

	m.log.Warn("Migration record removed, revert schema changes manually", "version", version)
	return version, nil
}

// ledger creates schema_migrations when missing and reads it
func (m *MigrationManager) ledger(ctx context.Context) (map[int]ledgerEntry, error) {
	if _, err := m.db.ExecContext(ctx, ledgerDDL); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	query, args, err := psql.Select("version", "checksum", "applied_at").
		From("schema_migrations").OrderBy("version").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	ledger := make(map[int]ledgerEntry)
	for rows.Next() {
		var (
			version int
			entry   ledgerEntry
		)
		if err := rows.Scan(&version, &entry.checksum, &entry.appliedAt); err != nil {
			return nil, err
		}
		ledger[version] = entry
	}
	return ledger, rows.Err()
}

// apply runs one migration and records it in the same transaction
func (m *MigrationManager) apply(ctx context.Context, migration Migration) error {
	m.log.Info("Applying migration", "version", migration.Version, "description", migration.Description)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return err
	}

	query, args, err := psql.Insert("schema_migrations").
		Columns("version", "description", "checksum").
		Values(migration.Version, migration.Description, migration.Checksum).
		Suffix("ON CONFLICT (version) DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// acquireLock holds a session-level advisory lock on a dedicated connection
func (m *MigrationManager) acquireLock(ctx context.Context) (func(), error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve migration connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			m.log.Warn("Failed to release migration lock", "error", err)
		}
		_ = conn.Close()
	}, nil
}
