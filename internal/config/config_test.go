package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8099", cfg.HTTP.Addr)
	assert.Equal(t, 15, cfg.Sync.DefaultIntervalMin)
	assert.Equal(t, "15:00", cfg.Sync.CheckinTime)
	assert.Equal(t, "11:00", cfg.Sync.CheckoutTime)
	assert.Equal(t, 3, cfg.Sync.FetchRetries)
	assert.Equal(t, "cleaning", cfg.Workflow.AutoJobType)
	assert.Equal(t, 256, cfg.Realtime.BufferSize)
	assert.Equal(t, 100, cfg.Projector.MaxOccurrences)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8099", cfg.HTTP.Addr)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
http:
  addr: ":9000"
sync:
  default_interval_min: 30
  checkin_time: "16:00"
workflow:
  auto_job_type: turnover
  webhook_url: https://hooks.example.com/bookings
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 30, cfg.Sync.DefaultIntervalMin)
	assert.Equal(t, "16:00", cfg.Sync.CheckinTime)
	assert.Equal(t, "turnover", cfg.Workflow.AutoJobType)
	assert.Equal(t, "https://hooks.example.com/bookings", cfg.Workflow.WebhookURL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Fields the file does not set keep their defaults.
	assert.Equal(t, "11:00", cfg.Sync.CheckoutTime)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9000\"\n"), 0o644))

	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("SYNC_INTERVAL_MIN", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 5, cfg.Sync.DefaultIntervalMin)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_MIN", "0")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
