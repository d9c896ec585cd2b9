package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
operator:
  chat_id: "777"
telegram:
  token: "abc:def"
  chat_id: "777"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 256, cfg.Server.MaxConns)
	assert.Equal(t, "tidepool.db", cfg.Store.Path)
	assert.Equal(t, int64(100), cfg.Pool.DefaultTarget)
	assert.Equal(t, 3*time.Hour, cfg.Detector.PeriodDuration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadRequiresOperator(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  token: "abc"
  chat_id: "1"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operator.chat_id")
}

func TestLoadRejectsBadDetectorPeriod(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
detector:
  period: "sometimes"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector.period")
}

func TestLoadNATSRequiresURL(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
nats:
  enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.url")
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TP_TEST_OPERATOR", "424242")
	cfg, err := Load(writeConfig(t, `
operator:
  chat_id: "${TP_TEST_OPERATOR}"
telegram:
  token: "abc"
  chat_id: "1"
`))
	require.NoError(t, err)
	assert.Equal(t, "424242", cfg.Operator.ChatID)
}

func TestInitRefusesExistingWithoutForce(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9\"\n")
	err := Init(path, false)
	require.Error(t, err)

	require.NoError(t, Init(path, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "operator:")
}

type recordingReloader struct {
	mu   sync.Mutex
	cfgs []*Config
}

func (r *recordingReloader) ReloadConfig(_ context.Context, cfg *Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs = append(r.cfgs, cfg)
	return nil
}

func (r *recordingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cfgs)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	reloader := &recordingReloader{}

	w, err := NewWatcher(path, reloader, nil)
	require.NoError(t, err)
	w.debounceTime = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(minimalConfig+"\nlogging:\n  level: \"debug\"\n"), 0o644))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reloader.count() > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not trigger a reload")
}
