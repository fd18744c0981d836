package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadOrchestratorConfig(t *testing.T) {
	path := writeFile(t, `
workerCount: 4
workspaceBaseDir: /tmp/ws
mainRepoPath: /tmp/repo
maxQueueSize: 50
defaultMaxRetries: 2
defaultTaskTimeout: 5m
acquireTimeout: 30s
cleanupOnCompletion: true
reconcileInterval: 20s
statusAddr: ":9090"
`)

	cfg, err := LoadOrchestratorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 50, cfg.MaxQueueSize)

	oc, err := cfg.ToOrchestratorConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, oc.WorkerCount)
	assert.Equal(t, 5*time.Minute, oc.DefaultTaskTimeout)
	assert.Equal(t, 30*time.Second, oc.AcquireTimeout)
	assert.True(t, oc.CleanupOnCompletion)
	assert.Equal(t, 20*time.Second, oc.ReconcileInterval)
	assert.Equal(t, ":9090", oc.StatusAddr)
}

func TestToOrchestratorConfigRejectsBadDuration(t *testing.T) {
	cfg := OrchestratorConfig{DefaultTaskTimeout: "not-a-duration"}
	_, err := cfg.ToOrchestratorConfig()
	assert.Error(t, err)
}

func TestLoadRequestManifest(t *testing.T) {
	path := writeFile(t, `
requests:
  - id: req-1
    planRef: plans/a.json
    subRange: "1-10"
    maxRetries: 3
    taskTimeout: 90s
  - id: req-2
    planRef: plans/b.json
`)

	manifest, err := LoadRequestManifest(path)
	require.NoError(t, err)
	require.Len(t, manifest.Requests, 2)

	reqs, err := manifest.ToRequests()
	require.NoError(t, err)
	assert.Equal(t, "req-1", reqs[0].ID)
	assert.Equal(t, 3, reqs[0].Config.MaxRetries)
	assert.Equal(t, 90*time.Second, reqs[0].Config.TaskTimeout)
	assert.Equal(t, "req-2", reqs[1].ID)
	assert.Equal(t, time.Duration(0), reqs[1].Config.TaskTimeout)
}

func TestLoadOrchestratorConfigMissingFile(t *testing.T) {
	_, err := LoadOrchestratorConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
