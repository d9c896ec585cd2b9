package detector

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func (c *capNotifier) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func newTestDetector(t *testing.T) (*Detector, *state.Repository, *store.SQLiteStore, *capNotifier) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	repo := state.NewRepository(s, 100)
	require.NoError(t, repo.Bootstrap(t.Context()))

	sink := &capNotifier{}
	d, err := New(repo, s, sink, nil, slog.Default(), 3*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Stop() })
	return d, repo, s, sink
}

func TestStallNotificationWhenIdle(t *testing.T) {
	d, _, _, sink := newTestDetector(t)

	d.Check(t.Context())

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "stalled")
	assert.Contains(t, msgs[0], "0 of 100")
}

func TestNoStallNotificationWithRecentClicks(t *testing.T) {
	d, _, s, sink := newTestDetector(t)
	ctx := t.Context()

	require.NoError(t, s.InsertClickRecord(ctx, "10.0.0.1"))
	d.Check(ctx)

	assert.Empty(t, sink.messages())
}

func TestSkippedEntirelyAfterLaunch(t *testing.T) {
	d, repo, _, sink := newTestDetector(t)
	ctx := t.Context()

	_, err := repo.Launch(ctx)
	require.NoError(t, err)

	// Launched: no notification regardless of click volume.
	d.Check(ctx)
	assert.Empty(t, sink.messages())
}

func TestStoreFailureIsSwallowed(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	repo := state.NewRepository(s, 100)
	require.NoError(t, repo.Bootstrap(t.Context()))

	sink := &capNotifier{}
	d, err := New(repo, s, sink, nil, slog.Default(), 3*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Stop() })

	// Close the store under the detector: the check must log and return,
	// not panic or notify.
	require.NoError(t, s.Close())
	d.Check(t.Context())
	assert.Empty(t, sink.messages())
}
