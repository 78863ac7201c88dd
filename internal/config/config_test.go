package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Listen, cfg.Listen)
	assert.Equal(t, d.Sync.Schedule, cfg.Sync.Schedule)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.Sync.OnStart)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 0.0.0.0:9000
data_dir: /var/lib/eventfinder
remote:
  base_url: https://events.example.com/
  timeout: 5s
sync:
  schedule: 10m
  on_start: false
log:
  max_backups: 7
`), 0o600))

	t.Setenv("EVENTFINDER_LISTEN", "127.0.0.1:7000")
	t.Setenv("EVENTFINDER_REMOTE_PROBE_TIMEOUT", "750ms")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Listen, "env overrides file")
	assert.Equal(t, "/var/lib/eventfinder", cfg.DataDir)
	assert.Equal(t, "https://events.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "https://events.example.com/", cfg.Remote.ImagesBaseURL)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 750*time.Millisecond, cfg.Remote.ProbeTimeout)
	assert.Equal(t, "10m", cfg.Sync.Schedule)
	assert.False(t, cfg.Sync.OnStart)
	assert.Equal(t, 7, cfg.Log.MaxBackups)
	assert.Equal(t, filepath.Join("/var/lib/eventfinder", "eventfinder.db"), cfg.DBPath())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Remote.BaseURL = "events.example.com"
	assert.Error(t, cfg.Validate())

	cfg.Remote.BaseURL = "http://events.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestNormalize(t *testing.T) {
	var cfg Config
	cfg.Remote.Timeout = -time.Second
	cfg.Log.MaxBackups = -1
	cfg.Normalize()

	d := Default()
	assert.Equal(t, d.Listen, cfg.Listen)
	assert.Equal(t, d.Remote.Timeout, cfg.Remote.Timeout)
	assert.Equal(t, d.Sync.Schedule, cfg.Sync.Schedule)
	assert.Zero(t, cfg.Log.MaxBackups)
	assert.Empty(t, cfg.Remote.ImagesBaseURL, "no images URL without a base URL")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "eventfinder.yaml")
	cfg := Default()
	cfg.Remote.BaseURL = "https://events.example.com"

	require.NoError(t, WriteFile(path, cfg, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	remote := raw["remote"].(map[string]any)
	assert.Equal(t, "30s", remote["timeout"])

	loaded, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Remote.Timeout, loaded.Remote.Timeout)
	assert.Equal(t, cfg.Remote.BaseURL, loaded.Remote.BaseURL)

	assert.Error(t, WriteFile(path, cfg, false), "refuses to overwrite")
	assert.NoError(t, WriteFile(path, cfg, true))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  schedule: 10m\n"), 0o600))

	v := NewViper()
	_, err := Load(v, path)
	require.NoError(t, err)

	changes := make(chan Config, 16)
	Watch(v, func(cfg Config) {
		select {
		case changes <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("sync:\n  schedule: 20m\n"), 0o600))

	// A write can surface as several events; wait for the final content.
	timeout := time.After(3 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Sync.Schedule == "20m" {
				return
			}
		case <-timeout:
			t.Fatal("no config change observed")
		}
	}
}
