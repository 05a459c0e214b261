package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 150, cfg.Match.DistanceThresholdMeters)
	assert.Equal(t, 2*time.Hour, cfg.Match.WindowBeforeTight)
	assert.Equal(t, time.Hour, cfg.Match.WindowAfterTight)
	assert.Equal(t, 24*time.Hour, cfg.Match.WindowLoose)
	assert.Equal(t, 6, cfg.Match.DistanceBucketCount)
	assert.Equal(t, 12, cfg.Match.StartTimeBucketCount)
	assert.Equal(t, 1_000_000, cfg.Match.NoMatchDistanceSentinel)
	assert.Equal(t, "geodesic", cfg.DistanceModel)
	assert.Equal(t, 1, cfg.Workers)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.RunMigrations)
}

func TestLoadFileAndEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linker.yaml")
	yaml := `
http:
  addr: ":9090"
match:
  distance_threshold_m: 200
  window_loose: 12h
file_paths:
  windows: 'C:\data\all.xlsx'
  mac: /Users/ops/data/all.xlsx
  linux: /srv/data/all.xlsx
log:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MATCH_WORKERS", "4")
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("MIGRATE", "TRUE")

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 200, cfg.Match.DistanceThresholdMeters)
	assert.Equal(t, 12*time.Hour, cfg.Match.WindowLoose)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.RunMigrations)

	assert.Equal(t, `C:\data\all.xlsx`, cfg.InputPaths.Resolve("windows"))
	assert.Equal(t, "/Users/ops/data/all.xlsx", cfg.InputPaths.Resolve("darwin"))
	assert.Equal(t, "/srv/data/all.xlsx", cfg.InputPaths.Resolve("linux"))
	assert.Equal(t, "/srv/data/all.xlsx", cfg.InputPaths.Resolve("freebsd"))
}

func TestLoadCollectsErrors(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("MATCH_DISTANCE_BUCKETS", "many")
	t.Setenv("MATCH_WORKERS", "0")

	_, err := load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP_READ_TIMEOUT")
	assert.Contains(t, err.Error(), "invalid MATCH_DISTANCE_BUCKETS")
	assert.Contains(t, err.Error(), "MATCH_WORKERS must be > 0")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
