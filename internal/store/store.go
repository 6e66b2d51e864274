// Package store provides a SQLite cache for text-generation responses
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite-based response cache
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens (creating if needed) the cache database at dbPath
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	store := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	responsesTable := `
	CREATE TABLE IF NOT EXISTS responses (
		cache_key TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		response TEXT NOT NULL,
		date_generated DATETIME NOT NULL
	);`

	indexes := `CREATE INDEX IF NOT EXISTS idx_responses_generated ON responses(date_generated);`

	for _, stmt := range []string{responsesTable, indexes} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the cache key for a model, a response mode and a prompt
func Key(model, mode, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// GetResponse returns a cached response younger than maxAge.
// A zero maxAge accepts any age.
func (s *Store) GetResponse(key string, maxAge time.Duration) (string, bool, error) {
	query := `SELECT response, date_generated FROM responses WHERE cache_key = ?`

	var (
		response  string
		generated time.Time
	)
	err := s.db.QueryRow(query, key).Scan(&response, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil // Cache miss
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached response: %w", err)
	}

	if maxAge > 0 && s.now().UTC().Sub(generated) > maxAge {
		return "", false, nil
	}
	return response, true, nil
}

// PutResponse stores a response, replacing any previous entry for key
func (s *Store) PutResponse(key, model, response string) error {
	query := `
	INSERT OR REPLACE INTO responses (cache_key, model, response, date_generated)
	VALUES (?, ?, ?, ?)`

	if _, err := s.db.Exec(query, key, model, response, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// CacheStats represents cache statistics
type CacheStats struct {
	ResponseCount int
	CacheSize     int64
	LastUpdated   time.Time
}

// GetCacheStats returns statistics about the cache
func (s *Store) GetCacheStats() (*CacheStats, error) {
	stats := &CacheStats{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&stats.ResponseCount); err != nil {
		return nil, fmt.Errorf("failed to get count: %w", err)
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.CacheSize = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}

	return stats, nil
}

// ClearCache removes all cached responses
func (s *Store) ClearCache() error {
	if _, err := s.db.Exec("DELETE FROM responses"); err != nil {
		return fmt.Errorf("failed to clear responses table: %w", err)
	}

	// Vacuum to reclaim space
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	return nil
}

// CleanupOldCache removes responses older than maxAge and reports how many were removed
func (s *Store) CleanupOldCache(maxAge time.Duration) (int64, error) {
	res, err := s.db.Exec("DELETE FROM responses WHERE date_generated < ?", s.now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to clean old responses: %w", err)
	}
	return res.RowsAffected()
}
