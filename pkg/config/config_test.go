package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultHasSaneValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, runtime.NumCPU(), cfg.Search.WorkerThreads)
	assert.Equal(t, uint32(5_000_000), cfg.Search.MaxExpansions)
	assert.Equal(t, uint8(2), cfg.Resources.Surge.InitialCharges)
	assert.Equal(t, uint32(20_400), cfg.Resources.Surge.CooldownMS)
	assert.Equal(t, 4096, cfg.Cache.LRUSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestValidateRequiresSnapshotPaths(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "missing snapshot/tiles paths must fail validation")

	cfg.Snapshot.Path = "/data/world.snap"
	assert.Error(t, cfg.Validate(), "tiles path still missing")

	cfg.Snapshot.TilesPath = "/data/world.tiles"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveWorkerThreads(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Path = "a"
	cfg.Snapshot.TilesPath = "b"
	cfg.Search.WorkerThreads = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFromFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "navd.yaml")
	yamlBody := "snapshot:\n  path: /data/world.snap\n  tiles_path: /data/world.tiles\nsearch:\n  worker_threads: 4\n"
	assert.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "/data/world.snap", cfg.Snapshot.Path)
	assert.Equal(t, 4, cfg.Search.WorkerThreads)
	// fields the file didn't touch keep their Default() values
	assert.Equal(t, uint32(5_000_000), cfg.Search.MaxExpansions)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "navd.yaml")
	yamlBody := "snapshot:\n  path: /file/world.snap\n  tiles_path: /file/world.tiles\nsearch:\n  worker_threads: 4\n"
	assert.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	t.Setenv("SNAPSHOT_PATH", "/env/world.snap")
	t.Setenv("WORKER_THREADS", "7")

	cfg, err := LoadFromEnvOrFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "/env/world.snap", cfg.Snapshot.Path, "env var must win over the file")
	assert.Equal(t, 7, cfg.Search.WorkerThreads)
	assert.Equal(t, "/file/world.tiles", cfg.Snapshot.TilesPath, "untouched-by-env field keeps the file's value")
}

func TestEnvBoolValAcceptsCommonSpellings(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Path = "a"
	cfg.Snapshot.TilesPath = "b"

	for _, v := range []string{"yes", "1", "true", "on"} {
		cfg.Cache.Enabled = false
		t.Setenv("ROUTE_CACHE_ENABLED", v)
		applyEnv(cfg)
		assert.True(t, cfg.Cache.Enabled, v)
	}
}

func TestEnvDurationValParsesRouteCacheTTL(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Path = "a"
	cfg.Snapshot.TilesPath = "b"

	t.Setenv("ROUTE_CACHE_TTL", "30m")
	applyEnv(cfg)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestLoadFromEnvOrFileFailsValidationWithoutSnapshotPaths(t *testing.T) {
	_, err := LoadFromEnvOrFile("")
	assert.Error(t, err)
}
