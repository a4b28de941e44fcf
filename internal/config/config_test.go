package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://qommons.ai", cfg.Target.BaseURL)
	assert.Equal(t, "https://qommons.ai/login", cfg.Target.LoginURL())
	assert.Equal(t, "プライベートナレッジ", cfg.Target.ChatName)
	assert.Equal(t, 400, cfg.Timing.TickMs)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target:
  base_url: https://staging.example.test
  chat_name: "検証ナレッジ"
  username: alice
  password: secret
timing:
  soft_timeout_sec: 180
  watchdog_sec: 150
output:
  root: /tmp/runs
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.test", cfg.Target.BaseURL)
	assert.Equal(t, "検証ナレッジ", cfg.Target.ChatName)
	assert.Equal(t, 180, cfg.Timing.SoftTimeoutSec)
	assert.Equal(t, 150, cfg.Timing.WatchdogSec)
	assert.Equal(t, "/tmp/runs", cfg.Output.Root)
	// Untouched sections keep defaults.
	assert.Equal(t, 400, cfg.Timing.TickMs)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target:
  username: fileuser
  password: filepass
`), 0o644))

	t.Setenv("ANSWERHOUND_USERNAME", "envuser")
	t.Setenv("ANSWERHOUND_PASSWORD", "envpass")
	t.Setenv("ANSWERHOUND_DEBUGGER_URL", "ws://127.0.0.1:9222/devtools")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "envuser", cfg.Target.Username)
	assert.Equal(t, "envpass", cfg.Target.Password)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools", cfg.Browser.DebuggerURL)
}

func TestValidateRejectsBadTiming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target.Username = "u"
	cfg.Target.Password = "p"
	cfg.Timing.WatchdogSec = cfg.Timing.SoftTimeoutSec

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watchdog_sec")
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Target.Username = "alice"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Target.Username)
	assert.Equal(t, cfg.Timing, loaded.Timing)
}
