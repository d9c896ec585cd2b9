package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex

	// now is injectable for window tests.
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-based durable store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers (no SQLITE_BUSY under
	// concurrent clicks) and keeps ":memory:" pointing at one database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS clicks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_clicks_identity ON clicks(identity, created_at);
	CREATE INDEX IF NOT EXISTS idx_clicks_created_at ON clicks(created_at);
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		detail TEXT,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value for key, with ok=false when the key is absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query state %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes a state field unconditionally.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// InsertIfAbsent writes a state field only when the key does not exist yet.
// Idempotent; existing values are never overwritten.
func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO state (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("insert state %q: %w", key, err)
	}
	return nil
}

// AtomicIncrement increments a numeric state field in a single upsert
// statement and returns the new value. Missing keys start from zero.
func (s *SQLiteStore) AtomicIncrement(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1
		 RETURNING CAST(value AS INTEGER)`,
		key,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment state %q: %w", key, err)
	}
	return n, nil
}

// ConditionalUpdate sets key to newValue only if the current value equals
// expectedOld, returning the affected-row count.
func (s *SQLiteStore) ConditionalUpdate(ctx context.Context, key, expectedOld, newValue string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE state SET value = ? WHERE key = ? AND value = ?",
		newValue, key, expectedOld,
	)
	if err != nil {
		return 0, fmt.Errorf("conditional update %q: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected %q: %w", key, err)
	}
	return affected, nil
}

// BulkSetState overwrites the given fields inside one transaction.
func (s *SQLiteStore) BulkSetState(ctx context.Context, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk set: %w", err)
	}
	for key, value := range fields {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bulk set %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk set: %w", err)
	}
	return nil
}

// InsertClickRecord records an accepted click for an identity.
func (s *SQLiteStore) InsertClickRecord(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO clicks (identity, created_at) VALUES (?, ?)",
		identity, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert click record: %w", err)
	}
	return nil
}

// HasClickRecord reports whether identity has a click within the trailing window.
func (s *SQLiteStore) HasClickRecord(ctx context.Context, identity string, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window).Unix()
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM clicks WHERE identity = ? AND created_at >= ?)",
		identity, cutoff,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query click record: %w", err)
	}
	return exists, nil
}

// CountClicksSince counts clicks within the trailing window across all identities.
func (s *SQLiteStore) CountClicksSince(ctx context.Context, window time.Duration) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window).Unix()
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clicks WHERE created_at >= ?", cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return count, nil
}

// DeleteAllClickRecords removes every click record. Used only by reset.
func (s *SQLiteStore) DeleteAllClickRecords(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM clicks"); err != nil {
		return fmt.Errorf("delete click records: %w", err)
	}
	return nil
}

// AppendLog adds a new audit entry to the log.
func (s *SQLiteStore) AppendLog(ctx context.Context, event, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO logs (event, detail, created_at) VALUES (?, ?, ?)",
		event, detail, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// RecentLogs returns the most recent audit entries, newest first.
func (s *SQLiteStore) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event, COALESCE(detail, ''), created_at FROM logs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Event, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.Timestamp = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
