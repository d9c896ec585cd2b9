// Package store provides the durable store for the tide pool: named state
// fields, click records used for anti-spam windowing, and an append-only
// event log. All cross-request consistency lives here; callers never
// read-modify-write state in separate round trips.
package store

import (
	"context"
	"time"
)

// LogEntry is an append-only audit record.
type LogEntry struct {
	ID        int64
	Event     string
	Detail    string
	Timestamp time.Time
}

// Store is the durable store contract consumed by the tide pool core.
type Store interface {
	// State field primitives. Values are string-encoded; typed access
	// lives in the state repository.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	InsertIfAbsent(ctx context.Context, key, value string) error

	// AtomicIncrement increments a numeric state field by one in a single
	// atomic statement and returns the resulting value. Safe under
	// concurrent callers; never lost-update.
	AtomicIncrement(ctx context.Context, key string) (int64, error)

	// ConditionalUpdate sets key to newValue only when its current value
	// equals expectedOld, returning the number of affected rows. The
	// affected-row count is how callers decide check-and-set races.
	ConditionalUpdate(ctx context.Context, key, expectedOld, newValue string) (int64, error)

	// BulkSetState overwrites the given fields in one transaction.
	BulkSetState(ctx context.Context, fields map[string]string) error

	// Click records.
	InsertClickRecord(ctx context.Context, identity string) error
	HasClickRecord(ctx context.Context, identity string, window time.Duration) (bool, error)
	CountClicksSince(ctx context.Context, window time.Duration) (int64, error)
	DeleteAllClickRecords(ctx context.Context) error

	// Audit log. Write-only from the core; RecentLogs serves the
	// operational /logs command.
	AppendLog(ctx context.Context, event, detail string) error
	RecentLogs(ctx context.Context, limit int) ([]LogEntry, error)

	// Ping verifies store liveness.
	Ping(ctx context.Context) error

	Close() error
}
