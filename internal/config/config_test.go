package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatch_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "databaseURL: postgres://localhost:5432/dispatch\n")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/dispatch", cfg.DatabaseURL)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 15, cfg.Watchdog.LookbackMinutes)
	assert.Equal(t, 15, cfg.Watchdog.LookaheadMinutes)
	assert.Equal(t, 5, cfg.Watchdog.GraceMinutes)
	assert.Equal(t, "FREQ=MINUTELY;INTERVAL=5", cfg.Watchdog.ScanRule)
	assert.Equal(t, 5.0, cfg.Fanout.ReplacementRadiusMiles)
	assert.Equal(t, 15.0, cfg.Fanout.BookingRadiusMiles)
	assert.Equal(t, 60, cfg.Fanout.OfferTTLSeconds)
	assert.Equal(t, 240, cfg.Fanout.BookingTTLMinutes)
	assert.Equal(t, 20, cfg.Fanout.MaxCandidates)
}

func TestLoadFromPathExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `databaseURL: postgres://localhost:5432/dispatch
serverPort: 9090
watchdog:
  graceMinutes: 10
  scanRule: FREQ=MINUTELY;INTERVAL=1
fanout:
  replacementRadiusMiles: 2.5
  offerTTLSeconds: 30
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 10, cfg.Watchdog.GraceMinutes)
	assert.Equal(t, "FREQ=MINUTELY;INTERVAL=1", cfg.Watchdog.ScanRule)
	assert.Equal(t, 2.5, cfg.Fanout.ReplacementRadiusMiles)
	assert.Equal(t, 30, cfg.Fanout.OfferTTLSeconds)
}

func TestLoadFromPathDatabaseURLFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host:5432/dispatch")
	path := writeConfig(t, "serverPort: 9090\n")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host:5432/dispatch", cfg.DatabaseURL)
}

func TestLoadFromPathMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := writeConfig(t, "serverPort: 9090\n")

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadFromPathInvalidScanRule(t *testing.T) {
	path := writeConfig(t, `databaseURL: postgres://localhost:5432/dispatch
watchdog:
  scanRule: EVERY 5 MINUTES
`)

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "invalid scan rule")
}

func TestLoadFromPathPushRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `databaseURL: postgres://localhost:5432/dispatch
push:
  projectID: covershift-prod
`)

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
