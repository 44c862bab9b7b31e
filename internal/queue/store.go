// Package queue is the durable record store for offline-pending work. It
// is deliberately separate from the HTTP cache: HTTP caching semantics do
// not fit arbitrary JSON payloads.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Known record keys.
const (
	KeyPendingOrderUpdates    = "pendingOrderUpdates"
	KeyPendingLocationUpdates = "pendingLocationUpdates"
	KeyLatestEarnings         = "latestEarnings"
)

const queueSchema = `
CREATE TABLE IF NOT EXISTS records (
  key       TEXT PRIMARY KEY,
  data      BLOB NOT NULL,
  timestamp INTEGER NOT NULL
);
`

// Store holds one record per key: {key, data, timestamp}. Data is opaque
// JSON; pending-mutation keys hold arrays, snapshot keys hold objects.
type Store struct {
	sqlDB *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("queue store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	// One connection serializes the read-modify-write transactions that
	// Append and the drain cycle rely on.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping queue db: %w", err)
	}
	if _, err := sqlDB.Exec(queueSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put upserts the record for a key.
func (s *Store) Put(ctx context.Context, key string, data json.RawMessage) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("record key is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO records (key, data, timestamp) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   data      = excluded.data,
		   timestamp = excluded.timestamp`,
		key, []byte(data), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put record %q: %w", key, err)
	}
	return nil
}

// Get returns the stored data for a key. A missing key is not an error;
// callers must treat it as "no pending items" and get nil back.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM records WHERE key = ?`, key)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record %q: %w", key, err)
	}
	return data, nil
}

// List decodes the record under key as a JSON array. Missing key or a
// non-array record yields an empty slice.
func (s *Store) List(ctx context.Context, key string) ([]json.RawMessage, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []json.RawMessage{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return []json.RawMessage{}, nil
	}
	return items, nil
}

// Append adds one item to the JSON array under key, preserving arrival
// order. The read-modify-write runs in one immediate transaction so
// concurrent appends serialize per store; an append racing a drain may
// still be cleared with the batch, which the dispatcher accepts.
func (s *Store) Append(ctx context.Context, key string, item json.RawMessage) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("record key is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append record %q: begin: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM records WHERE key = ?`, key).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("append record %q: read: %w", key, err)
	}

	var items []json.RawMessage
	if len(existing) > 0 {
		// A corrupt or non-array record is replaced rather than failed on.
		_ = json.Unmarshal(existing, &items)
	}
	items = append(items, item)

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("append record %q: marshal: %w", key, err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO records (key, data, timestamp) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   data      = excluded.data,
		   timestamp = excluded.timestamp`,
		key, data, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append record %q: write: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append record %q: commit: %w", key, err)
	}
	return nil
}

// Clear deletes the record for a key.
func (s *Store) Clear(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear record %q: %w", key, err)
	}
	return nil
}
