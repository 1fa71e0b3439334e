package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when nothing is set", func(t *testing.T) {

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "./data/payout.db", cfg.Database.Path)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.True(t, cfg.Scheduler.Enabled)
		assert.Equal(t, "1 1 1 * *", cfg.Scheduler.MonthlySpec)
		assert.Equal(t, "30 0 * * *", cfg.Scheduler.DeactivateSpec)
		assert.Equal(t, "0 0 * * *", cfg.Scheduler.CleanupSpec)
		assert.Equal(t, "1000", cfg.Deposit.PenaltyAmount.String())
		assert.Equal(t, 24*time.Hour, cfg.Cleanup.RejectedRetention)
		assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.HTTP.CORSAllowOrigins)
	})

	t.Run("reads a config file", func(t *testing.T) {
		path := writeConfig(t, `
[app]
port = "9090"

[database]
path = ":memory:"

[deposit]
penalty_amount = "750.50"

[scheduler]
enabled = false
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.App.Port)
		assert.Equal(t, ":memory:", cfg.Database.Path)
		assert.Equal(t, "750.5", cfg.Deposit.PenaltyAmount.String())
		assert.False(t, cfg.Scheduler.Enabled)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeConfig(t, "[app]\nport = \"9090\"\n")
		t.Setenv("PAYOUT_APP_PORT", "7070")
		t.Setenv("PAYOUT_HTTP_CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("PAYOUT_CLEANUP_REJECTED_RETENTION", "48h")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "7070", cfg.App.Port)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowOrigins)
		assert.Equal(t, 48*time.Hour, cfg.Cleanup.RejectedRetention)
	})

	t.Run("rejects a missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("rejects a non-positive penalty", func(t *testing.T) {
		t.Setenv("PAYOUT_DEPOSIT_PENALTY_AMOUNT", "0")

		_, err := Load("")
		assert.ErrorContains(t, err, "penalty_amount")
	})
}
