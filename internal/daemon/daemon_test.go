package daemon

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tidepool/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Store.Path = filepath.Join(t.TempDir(), "tidepool.db")
	cfg.Operator.ChatID = "777"
	cfg.Telegram.Token = "test:token"
	cfg.Telegram.ChatID = "777"
	cfg.Detector.Period = "3h"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestDaemonLifecycle(t *testing.T) {
	d, err := New(testConfig(t), "", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, d.GetStatus())

	ctx := t.Context()
	require.NoError(t, d.Start(ctx))
	assert.Equal(t, StatusRunning, d.GetStatus())

	// Starting twice must fail.
	require.Error(t, d.Start(ctx))

	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, StatusStopped, d.GetStatus())

	// Stopping again is a no-op.
	require.NoError(t, d.Stop(ctx))
}

func TestDaemonBootstrapsState(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pool.DefaultTarget = 250

	d, err := New(cfg, "", nil)
	require.NoError(t, err)

	ctx := t.Context()
	require.NoError(t, d.Start(ctx))
	defer d.Stop(ctx)

	target, err := d.repo.Target(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(250), target)
}

func TestReloadConfigUpdatesOperator(t *testing.T) {
	d, err := New(testConfig(t), "", nil)
	require.NoError(t, err)
	defer d.store.Close()

	newCfg := testConfig(t)
	newCfg.Operator.ChatID = "888"
	require.NoError(t, d.ReloadConfig(t.Context(), newCfg))
	assert.Equal(t, "888", d.config.Operator.ChatID)
}
