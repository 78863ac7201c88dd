package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncAndList(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/event" {
			w.Write([]byte(`[{"id": 3, "name": "Gala", "date": "2025-06-01", "location": "Hall", "description": "Formal"}]`))
		}
	}))
	defer upstream.Close()

	dataDir := t.TempDir()

	out, err := runCLI(t, "sync", "--data-dir", dataDir, "--remote-url", upstream.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Synced 1 events")

	out, err = runCLI(t, "list", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Gala")
	assert.Contains(t, out, "synced")

	out, err = runCLI(t, "list", "--data-dir", dataDir, "--format", "json")
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.EqualValues(t, 3, events[0]["id"])
}

func TestSync_Offline(t *testing.T) {
	out, err := runCLI(t, "sync", "--data-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "unreachable")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventfinder.yaml")

	out, err := runCLI(t, "config", "init", path, "--remote-url", "https://events.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url: https://events.example.com")

	_, err = runCLI(t, "config", "init", path)
	assert.Error(t, err)

	out, err = runCLI(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "schedule: '@every 15m'") || strings.Contains(out, `schedule: "@every 15m"`))
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "list", "--format", "xml", "--data-dir", t.TempDir())
	assert.Error(t, err)
}

func TestRunHealthCheck(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	assert.NoError(t, runHealthCheck(context.Background(), addr))

	healthy = false
	assert.Error(t, runHealthCheck(context.Background(), addr))
}
