package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir is the pre-Go-1.24 equivalent of t.Chdir.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120*time.Second, cfg.Backend.TestTimeout)
	assert.Equal(t, 3*time.Second, cfg.Monitor.ReconnectDelay)
	assert.Equal(t, 100, cfg.Monitor.RecentEventsCap)
	assert.Equal(t, time.Duration(0), cfg.Monitor.SnapshotTTL)
	assert.Equal(t, []string{"openai", "vertex"}, cfg.Engine.ProviderOrder)
	assert.Equal(t, "gpt-5", cfg.Engine.Models["openai"])
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
backend:
  base_url: http://backend.local:8000
  test_timeout: 90s
monitor:
  domain: brand.example
  reconnect_delay: 5s
countries:
  - code: DE
    als_block: "de-DE, Berlin, EUR"
    expected:
      vat_percent: 19
      plug: ["C", "F"]
      emergency: ["112", "110"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Backend.TestTimeout)
	assert.Equal(t, "brand.example", cfg.Monitor.Domain)
	assert.Equal(t, 5*time.Second, cfg.Monitor.ReconnectDelay)
	assert.Equal(t, 100, cfg.Monitor.RecentEventsCap, "незатронутые поля остаются дефолтными")

	require.Len(t, cfg.Countries, 1)
	assert.Equal(t, "DE", cfg.Countries[0].Code)
	assert.Equal(t, float64(19), cfg.Countries[0].Expected.VATPercent)
	assert.Equal(t, []string{"C", "F"}, cfg.Countries[0].Expected.Plug)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BACKEND_BASE_URL", "http://env.backend:9000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://env.backend:9000", cfg.Backend.BaseURL)
}
