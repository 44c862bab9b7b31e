package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"couriergate/internal/logging"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
  generation  TEXT NOT NULL,
  key         TEXT NOT NULL,
  status_code INTEGER NOT NULL,
  headers     TEXT NOT NULL,
  body        BLOB NOT NULL,
  stored_at   INTEGER NOT NULL,
  PRIMARY KEY (generation, key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_generation ON cache_entries (generation);
`

// SQLiteStore persists snapshots in SQLite so cached content survives
// restarts. Operational failures are logged and degrade to cache misses.
type SQLiteStore struct {
	sqlDB  *sql.DB
	logger logging.Logger
}

func OpenSQLiteStore(path string, logger logging.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	if _, err := sqlDB.Exec(cacheSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Match(ctx context.Context, gen, key string) (*Snapshot, bool) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT status_code, headers, body, stored_at
		   FROM cache_entries
		  WHERE generation = ? AND key = ?`,
		gen, key,
	)

	var (
		statusCode int
		headersRaw string
		body       []byte
		storedAt   int64
	)
	if err := row.Scan(&statusCode, &headersRaw, &body, &storedAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logError("cache match failed", gen, key, err)
		}
		return nil, false
	}

	header := make(http.Header)
	if err := json.Unmarshal([]byte(headersRaw), &header); err != nil {
		s.logError("cache entry headers corrupt", gen, key, err)
		return nil, false
	}

	return &Snapshot{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
		StoredAt:   time.UnixMilli(storedAt).UTC(),
	}, true
}

func (s *SQLiteStore) Put(ctx context.Context, gen, key string, snap *Snapshot) {
	headersRaw, err := json.Marshal(snap.Header)
	if err != nil {
		s.logError("cache put marshal headers", gen, key, err)
		return
	}
	storedAt := snap.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO cache_entries (generation, key, status_code, headers, body, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (generation, key) DO UPDATE SET
		   status_code = excluded.status_code,
		   headers     = excluded.headers,
		   body        = excluded.body,
		   stored_at   = excluded.stored_at`,
		gen, key, snap.StatusCode, string(headersRaw), snap.Body, storedAt.UnixMilli(),
	)
	if err != nil {
		s.logError("cache put failed", gen, key, err)
	}
}

func (s *SQLiteStore) Delete(ctx context.Context, gen, key string) {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM cache_entries WHERE generation = ? AND key = ?`,
		gen, key,
	)
	if err != nil {
		s.logError("cache delete failed", gen, key, err)
	}
}

func (s *SQLiteStore) Generations(ctx context.Context) []string {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT DISTINCT generation FROM cache_entries ORDER BY generation`,
	)
	if err != nil {
		s.logError("cache generations query failed", "", "", err)
		return nil
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			s.logError("cache generations scan failed", "", "", err)
			return names
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		s.logError("cache generations rows failed", "", "", err)
	}
	return names
}

func (s *SQLiteStore) DeleteGeneration(ctx context.Context, gen string) {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM cache_entries WHERE generation = ?`,
		gen,
	)
	if err != nil {
		s.logError("cache delete generation failed", gen, "", err)
	}
}

func (s *SQLiteStore) logError(msg, gen, key string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Error(msg, "generation", gen, "key", key, "err", err.Error())
}

var _ Store = (*SQLiteStore)(nil)
