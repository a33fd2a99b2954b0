package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beryldb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/beryldb
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/beryldb", cfg.DataDir)
	require.Equal(t, Default().Listen, cfg.Listen)
	require.Equal(t, Default().Workers, cfg.Workers)
	require.Equal(t, Default().IterLimit, cfg.IterLimit)
}

func TestLoadOverridesEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beryldb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 0.0.0.0:7000
data_dir: /data
workers: 32
iter_limit: 250
sweep_interval: 2s
metrics_listen: 0.0.0.0:7001
log_level: debug
log_json: true
databases:
  - name: sessions
    bloom_bits: 1048576
    bloom_hash: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7000", cfg.Listen)
	require.Equal(t, 32, cfg.Workers)
	require.Equal(t, 250, cfg.IterLimit)
	require.Equal(t, 2*time.Second, cfg.SweepInterval)
	require.True(t, cfg.LogJSON)
	require.Len(t, cfg.Databases, 1)
	require.Equal(t, "sessions", cfg.Databases[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/beryldb.yaml")
	require.Error(t, err)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.IterLimit = -1
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DataDir = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Databases = []Database{{Name: ""}}
	require.Error(t, cfg.Validate())
}
