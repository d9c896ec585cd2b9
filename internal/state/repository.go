// Package state provides a typed repository over the durable store's fixed
// set of named fields. All values are string-encoded at rest; the repository
// owns the coercion and its fallback values, so reads never fail on bad data.
package state

import (
	"context"
	"strconv"
	"time"

	"git.home.luguber.info/inful/tidepool/internal/store"
)

// Named state fields. The set is fixed; nothing else is stored under state.
const (
	FieldCount       = "count"
	FieldTarget      = "target"
	FieldCA          = "ca"
	FieldLaunched    = "launched"
	FieldLocked      = "locked"
	FieldLockMsg     = "lock_msg"
	FieldDecree      = "decree"
	FieldTideWarning = "tide_warning"
	FieldBlessed     = "blessed"
)

// DefaultTarget is the fallback when target is absent or unparseable.
const DefaultTarget = 100

// defaults seeds first-use bootstrap. Insert-if-absent only; an existing
// value is never overwritten.
func defaults(target int64) map[string]string {
	return map[string]string{
		FieldCount:       "0",
		FieldTarget:      strconv.FormatInt(target, 10),
		FieldCA:          "",
		FieldLaunched:    "false",
		FieldLocked:      "false",
		FieldLockMsg:     "",
		FieldDecree:      "",
		FieldTideWarning: "",
		FieldBlessed:     "",
	}
}

// Snapshot is a point-in-time read of every state field.
type Snapshot struct {
	Count       int64
	Target      int64
	CA          string
	Launched    bool
	Locked      bool
	LockMsg     string
	Decree      string
	TideWarning string
	Blessed     string
}

// Repository provides typed access to the named state fields.
type Repository struct {
	store         store.Store
	defaultTarget int64
}

// NewRepository creates a repository over the given store.
func NewRepository(s store.Store, defaultTarget int64) *Repository {
	if defaultTarget <= 0 {
		defaultTarget = DefaultTarget
	}
	return &Repository{store: s, defaultTarget: defaultTarget}
}

// Bootstrap inserts defaults for every absent field. Idempotent.
func (r *Repository) Bootstrap(ctx context.Context) error {
	for key, value := range defaults(r.defaultTarget) {
		if err := r.store.InsertIfAbsent(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) getInt(ctx context.Context, key string, fallback int64) (int64, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return fallback, nil
	}
	n, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return fallback, nil
	}
	return n, nil
}

func (r *Repository) getBool(ctx context.Context, key string) (bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	b, perr := strconv.ParseBool(raw)
	if perr != nil {
		return false, nil
	}
	return b, nil
}

func (r *Repository) getString(ctx context.Context, key string) (string, error) {
	raw, _, err := r.store.Get(ctx, key)
	return raw, err
}

// Count returns the current click count, 0 when absent or unparseable.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.getInt(ctx, FieldCount, 0)
}

// Target returns the configured target, falling back to the default.
func (r *Repository) Target(ctx context.Context) (int64, error) {
	return r.getInt(ctx, FieldTarget, r.defaultTarget)
}

// Launched reports the one-way launch flag.
func (r *Repository) Launched(ctx context.Context) (bool, error) {
	return r.getBool(ctx, FieldLaunched)
}

// Locked reports the operator-toggled lockdown flag.
func (r *Repository) Locked(ctx context.Context) (bool, error) {
	return r.getBool(ctx, FieldLocked)
}

// LockMsg returns the lockdown message shown to rejected clickers.
func (r *Repository) LockMsg(ctx context.Context) (string, error) {
	return r.getString(ctx, FieldLockMsg)
}

// CA returns the contract address, empty when unset.
func (r *Repository) CA(ctx context.Context) (string, error) {
	return r.getString(ctx, FieldCA)
}

// Decree returns the operator decree message.
func (r *Repository) Decree(ctx context.Context) (string, error) {
	return r.getString(ctx, FieldDecree)
}

// TideWarning returns the operator tide warning message.
func (r *Repository) TideWarning(ctx context.Context) (string, error) {
	return r.getString(ctx, FieldTideWarning)
}

// Blessed returns the designated milestone click index. ok=false when unset
// or not a positive integer.
func (r *Repository) Blessed(ctx context.Context) (int64, bool, error) {
	raw, present, err := r.store.Get(ctx, FieldBlessed)
	if err != nil {
		return 0, false, err
	}
	if !present || raw == "" {
		return 0, false, nil
	}
	n, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil || n <= 0 {
		return 0, false, nil
	}
	return n, true, nil
}

// SetTarget stores a new target. Callers validate positivity.
func (r *Repository) SetTarget(ctx context.Context, target int64) error {
	return r.store.Set(ctx, FieldTarget, strconv.FormatInt(target, 10))
}

// SetCA stores the contract address.
func (r *Repository) SetCA(ctx context.Context, ca string) error {
	return r.store.Set(ctx, FieldCA, ca)
}

// SetBlessed designates a milestone click index.
func (r *Repository) SetBlessed(ctx context.Context, n int64) error {
	return r.store.Set(ctx, FieldBlessed, strconv.FormatInt(n, 10))
}

// SetLockdown enables lockdown with the supplied message.
func (r *Repository) SetLockdown(ctx context.Context, msg string) error {
	if err := r.store.Set(ctx, FieldLocked, "true"); err != nil {
		return err
	}
	return r.store.Set(ctx, FieldLockMsg, msg)
}

// Unlock disables lockdown.
func (r *Repository) Unlock(ctx context.Context) error {
	return r.store.Set(ctx, FieldLocked, "false")
}

// SetDecree stores the operator decree message.
func (r *Repository) SetDecree(ctx context.Context, msg string) error {
	return r.store.Set(ctx, FieldDecree, msg)
}

// SetTideWarning stores the operator tide warning message.
func (r *Repository) SetTideWarning(ctx context.Context, msg string) error {
	return r.store.Set(ctx, FieldTideWarning, msg)
}

// IncrementCount atomically bumps the counter by one and returns the new value.
func (r *Repository) IncrementCount(ctx context.Context) (int64, error) {
	return r.store.AtomicIncrement(ctx, FieldCount)
}

// Launch performs the one-way false->true transition. Returns true only for
// the single caller whose conditional update takes effect; concurrent callers
// crossing the target simultaneously see false.
func (r *Repository) Launch(ctx context.Context) (bool, error) {
	affected, err := r.store.ConditionalUpdate(ctx, FieldLaunched, "false", "true")
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Reset zeroes the counter, clears operator messages and the blessed index,
// resets the launch flag, and drops all click records. The target survives.
func (r *Repository) Reset(ctx context.Context) error {
	fields := map[string]string{
		FieldCount:       "0",
		FieldCA:          "",
		FieldLaunched:    "false",
		FieldLocked:      "false",
		FieldLockMsg:     "",
		FieldDecree:      "",
		FieldTideWarning: "",
		FieldBlessed:     "",
	}
	if err := r.store.BulkSetState(ctx, fields); err != nil {
		return err
	}
	return r.store.DeleteAllClickRecords(ctx)
}

// Snapshot reads every field in one pass for the public /state contract.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.Count, err = r.Count(ctx); err != nil {
		return snap, err
	}
	if snap.Target, err = r.Target(ctx); err != nil {
		return snap, err
	}
	if snap.CA, err = r.CA(ctx); err != nil {
		return snap, err
	}
	if snap.Launched, err = r.Launched(ctx); err != nil {
		return snap, err
	}
	if snap.Locked, err = r.Locked(ctx); err != nil {
		return snap, err
	}
	if snap.LockMsg, err = r.LockMsg(ctx); err != nil {
		return snap, err
	}
	if snap.Decree, err = r.Decree(ctx); err != nil {
		return snap, err
	}
	if snap.TideWarning, err = r.TideWarning(ctx); err != nil {
		return snap, err
	}
	snap.Blessed, err = r.getString(ctx, FieldBlessed)
	return snap, err
}

// ClicksToday counts accepted clicks in the trailing 24 hours.
func (r *Repository) ClicksToday(ctx context.Context) (int64, error) {
	return r.store.CountClicksSince(ctx, 24*time.Hour)
}
