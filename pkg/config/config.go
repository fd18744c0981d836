// Package config loads the YAML-tagged configuration consumed by
// cmd/planrunner: the orchestrator's own tunables, and the request
// manifest naming which plan artifacts to run. Both are parsed with
// gopkg.in/yaml.v3, the same yaml.Unmarshal-into-a-tagged-struct pattern
// the original apply command used for resource manifests.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/proactiva/planrunner/pkg/orchestrator"
	"github.com/proactiva/planrunner/pkg/types"
)

// OrchestratorConfig is the on-disk shape of orchestrator.Config.
type OrchestratorConfig struct {
	WorkerCount      int    `yaml:"workerCount"`
	WorkspaceBaseDir string `yaml:"workspaceBaseDir"`
	MainRepoPath     string `yaml:"mainRepoPath"`
	PrimaryBranch    string `yaml:"primaryBranch"`
	MaxQueueSize     int    `yaml:"maxQueueSize"`

	DefaultMaxRetries  int    `yaml:"defaultMaxRetries"`
	DefaultTaskTimeout string `yaml:"defaultTaskTimeout"`
	AcquireTimeout     string `yaml:"acquireTimeout"`
	DequeueInterval    string `yaml:"dequeueInterval"`
	WorkerJoinTimeout  string `yaml:"workerJoinTimeout"`
	DrainTimeout       string `yaml:"drainTimeout"`

	CleanupOnCompletion      bool `yaml:"cleanupOnCompletion"`
	PreserveFailedWorkspaces bool `yaml:"preserveFailedWorkspaces"`

	ReconcileInterval string `yaml:"reconcileInterval"`
	StatusAddr        string `yaml:"statusAddr"`
}

// LoadOrchestratorConfig reads and parses an OrchestratorConfig from path.
func LoadOrchestratorConfig(path string) (OrchestratorConfig, error) {
	var cfg OrchestratorConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read orchestrator config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse orchestrator config: %w", err)
	}
	return cfg, nil
}

// ToOrchestratorConfig converts the YAML representation into
// orchestrator.Config, parsing duration strings. It fills in no defaults
// itself: a blank duration string stays zero.
func (c OrchestratorConfig) ToOrchestratorConfig() (orchestrator.Config, error) {
	durations := map[string]string{
		"defaultTaskTimeout": c.DefaultTaskTimeout,
		"acquireTimeout":     c.AcquireTimeout,
		"dequeueInterval":    c.DequeueInterval,
		"workerJoinTimeout":  c.WorkerJoinTimeout,
		"drainTimeout":       c.DrainTimeout,
		"reconcileInterval":  c.ReconcileInterval,
	}
	parsed := make(map[string]time.Duration, len(durations))
	for field, raw := range durations {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return orchestrator.Config{}, fmt.Errorf("parse %s: %w", field, err)
		}
		parsed[field] = d
	}

	return orchestrator.Config{
		WorkerCount:              c.WorkerCount,
		WorkspaceBaseDir:         c.WorkspaceBaseDir,
		MainRepoPath:             c.MainRepoPath,
		PrimaryBranch:            c.PrimaryBranch,
		MaxQueueSize:             c.MaxQueueSize,
		DefaultMaxRetries:        c.DefaultMaxRetries,
		DefaultTaskTimeout:       parsed["defaultTaskTimeout"],
		AcquireTimeout:           parsed["acquireTimeout"],
		DequeueInterval:          parsed["dequeueInterval"],
		WorkerJoinTimeout:        parsed["workerJoinTimeout"],
		DrainTimeout:             parsed["drainTimeout"],
		CleanupOnCompletion:      c.CleanupOnCompletion,
		PreserveFailedWorkspaces: c.PreserveFailedWorkspaces,
		ReconcileInterval:        parsed["reconcileInterval"],
		StatusAddr:               c.StatusAddr,
	}, nil
}

// RequestManifest is a YAML list of requests to submit in one session.
// Distinct from the plan parser: it names which plan artifacts to run, it
// does not parse their contents.
type RequestManifest struct {
	Requests []ManifestRequest `yaml:"requests"`
}

// ManifestRequest is one request entry in a RequestManifest.
type ManifestRequest struct {
	ID         string `yaml:"id"`
	PlanRef    string `yaml:"planRef"`
	SubRange   string `yaml:"subRange"`
	MaxRetries int    `yaml:"maxRetries"`
	TaskTimeout string `yaml:"taskTimeout"`
	AutoMerge  bool   `yaml:"autoMerge"`
}

// LoadRequestManifest reads and parses a RequestManifest from path.
func LoadRequestManifest(path string) (RequestManifest, error) {
	var manifest RequestManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, fmt.Errorf("read request manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("parse request manifest: %w", err)
	}
	return manifest, nil
}

// ToRequests converts the manifest entries into types.Request values.
func (m RequestManifest) ToRequests() ([]types.Request, error) {
	reqs := make([]types.Request, 0, len(m.Requests))
	for _, entry := range m.Requests {
		var taskTimeout time.Duration
		if entry.TaskTimeout != "" {
			d, err := time.ParseDuration(entry.TaskTimeout)
			if err != nil {
				return nil, fmt.Errorf("request %s: parse taskTimeout: %w", entry.ID, err)
			}
			taskTimeout = d
		}
		reqs = append(reqs, types.Request{
			ID:       entry.ID,
			PlanRef:  entry.PlanRef,
			SubRange: entry.SubRange,
			Config: types.RequestConfig{
				MaxRetries:  entry.MaxRetries,
				TaskTimeout: taskTimeout,
				AutoMerge:   entry.AutoMerge,
			},
		})
	}
	return reqs, nil
}
