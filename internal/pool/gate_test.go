package pool

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/tidepool/internal/foundation/errors"
	"git.home.luguber.info/inful/tidepool/internal/milestone"
	"git.home.luguber.info/inful/tidepool/internal/state"
	"git.home.luguber.info/inful/tidepool/internal/store"
)

type capNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (c *capNotifier) Notify(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
}

func newTestGate(t *testing.T) (*Gate, *state.Repository, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	repo := state.NewRepository(s, 100)
	require.NoError(t, repo.Bootstrap(t.Context()))

	ev := milestone.NewEvaluator(repo, &capNotifier{}, slog.Default())
	gate := NewGate(repo, s, ev, NewAttemptLimiter(ClickWindow), nil, slog.Default())
	return gate, repo, s
}

func TestClickAccepted(t *testing.T) {
	gate, _, _ := newTestGate(t)

	res, err := gate.Click(t.Context(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, int64(100), res.Target)
	assert.False(t, res.Launched)
}

func TestDuplicateIdentityRejectedWithoutMutation(t *testing.T) {
	gate, repo, s := newTestGate(t)
	ctx := t.Context()

	_, err := gate.Click(ctx, "10.0.0.1")
	require.NoError(t, err)

	// Fresh limiter so the store-backed duplicate check is what rejects.
	gate.limiter = NewAttemptLimiter(ClickWindow)

	_, err = gate.Click(ctx, "10.0.0.1")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRateLimit))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "rejected click must not mutate count")

	n, err := s.CountClicksSince(ctx, ClickWindow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOuterLimiterCapsAttempts(t *testing.T) {
	gate, _, s := newTestGate(t)
	ctx := t.Context()

	_, err := gate.Click(ctx, "10.0.0.1")
	require.NoError(t, err)

	// Remove the click record: the outer limiter must still reject
	// before the store-backed check even runs.
	require.NoError(t, s.DeleteAllClickRecords(ctx))

	_, err = gate.Click(ctx, "10.0.0.1")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRateLimit))
}

func TestLockdownRejectsWithMessage(t *testing.T) {
	gate, repo, _ := newTestGate(t)
	ctx := t.Context()

	require.NoError(t, repo.SetLockdown(ctx, "the tide is out"))

	_, err := gate.Click(ctx, "10.0.0.1")
	require.Error(t, err)
	c, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryLocked, c.Category())
	assert.Equal(t, "the tide is out", c.Message())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// No lost updates: N concurrent accepted clicks raise count by exactly N.
func TestConcurrentClicksCountIntegrity(t *testing.T) {
	gate, repo, _ := newTestGate(t)
	ctx := t.Context()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := gate.Click(ctx, fmt.Sprintf("10.0.%d.%d", i/256, i%256))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}

func TestLaunchedFlagInResponse(t *testing.T) {
	gate, repo, _ := newTestGate(t)
	ctx := t.Context()
	require.NoError(t, repo.SetTarget(ctx, 2))

	res, err := gate.Click(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Launched)

	res, err = gate.Click(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Launched)

	launched, err := repo.Launched(ctx)
	require.NoError(t, err)
	assert.True(t, launched)
}
