package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tidepool/internal/admin"
	"git.home.luguber.info/inful/tidepool/internal/milestone"
	"git.home.luguber.info/inful/tidepool/internal/pool"
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

type fixture struct {
	repo  *state.Repository
	store *store.SQLiteStore
	gate  *pool.Gate
	sink  *capNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	repo := state.NewRepository(s, 100)
	require.NoError(t, repo.Bootstrap(t.Context()))

	sink := &capNotifier{}
	ev := milestone.NewEvaluator(repo, sink, slog.Default())
	gate := pool.NewGate(repo, s, ev, pool.NewAttemptLimiter(pool.ClickWindow), nil, slog.Default())
	return &fixture{repo: repo, store: s, gate: gate, sink: sink}
}

func TestHandleStateDefaults(t *testing.T) {
	f := newFixture(t)
	h := NewAPIHandlers(f.repo, f.store)

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()
	h.HandleState(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, float64(100), body["target"])
	assert.Nil(t, body["ca"], "empty ca must serialize as null")
	assert.Equal(t, false, body["launched"])
}

func TestHandleStateRejectsPost(t *testing.T) {
	f := newFixture(t)
	h := NewAPIHandlers(f.repo, f.store)

	req := httptest.NewRequest(http.MethodPost, "/state", nil)
	rec := httptest.NewRecorder()
	h.HandleState(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClickAccepted(t *testing.T) {
	f := newFixture(t)
	h := NewClickHandlers(f.gate)

	req := httptest.NewRequest(http.MethodPost, "/click", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	rec := httptest.NewRecorder()
	h.HandleClick(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body pool.ClickResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Count)
	assert.False(t, body.Launched)
}

func TestHandleClickDuplicate(t *testing.T) {
	f := newFixture(t)
	h := NewClickHandlers(f.gate)

	for i, wantStatus := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/click", nil)
		req.RemoteAddr = "203.0.113.9:4242"
		rec := httptest.NewRecorder()
		h.HandleClick(rec, req)
		require.Equal(t, wantStatus, rec.Code, "request %d", i)

		if wantStatus == http.StatusTooManyRequests {
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "already_clicked", body["error"])
		}
	}

	count, err := f.repo.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHandleClickLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.SetLockdown(t.Context(), "gone fishing"))
	h := NewClickHandlers(f.gate)

	req := httptest.NewRequest(http.MethodPost, "/click", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	rec := httptest.NewRecorder()
	h.HandleClick(rec, req)

	require.Equal(t, http.StatusLocked, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "locked", body["error"])
	assert.Equal(t, "gone fishing", body["message"])
}

func TestClickIdentityFromForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/click", nil)
	req.RemoteAddr = "10.0.0.1:99"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", clientIdentity(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1", clientIdentity(req))
}

func TestHandlePing(t *testing.T) {
	f := newFixture(t)
	h := NewAPIHandlers(f.repo, f.store)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	h.HandlePing(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestWebhookAcknowledgesImmediately(t *testing.T) {
	f := newFixture(t)
	proc := admin.NewProcessor("777", f.repo, f.store, f.sink, nil, nil, slog.Default())
	h := NewWebhookHandlers(proc, slog.Default())

	payload := `{"message":{"chat":{"id":777},"text":"/settarget 55"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accepted")

	// Processing is asynchronous; wait for the mutation to land.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		target, err := f.repo.Target(t.Context())
		require.NoError(t, err)
		if target == 55 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("webhook command was not processed")
}

func TestWebhookAcksMalformedPayload(t *testing.T) {
	f := newFixture(t)
	proc := admin.NewProcessor("777", f.repo, f.store, f.sink, nil, nil, slog.Default())
	h := NewWebhookHandlers(proc, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestStatusPageRendersDecreeMarkdown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.SetDecree(t.Context(), "the tide **rises**"))
	h := NewStatusPageHandlers(f.repo, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.HandleStatusPage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>rises</strong>")
	assert.Contains(t, rec.Body.String(), "0 / 100")
}

func TestStatusPageNotFoundOnOtherPaths(t *testing.T) {
	f := newFixture(t)
	h := NewStatusPageHandlers(f.repo, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.HandleStatusPage(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
