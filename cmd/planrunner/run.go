package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proactiva/planrunner/pkg/config"
	"github.com/proactiva/planrunner/pkg/executor"
	"github.com/proactiva/planrunner/pkg/orchestrator"
	"github.com/proactiva/planrunner/pkg/store"
	"github.com/proactiva/planrunner/pkg/vcs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a request manifest end-to-end and print the report",
	Long: `run loads an orchestrator config and a request manifest, runs one
session to completion, prints the aggregate report, and persists it to the
local report store.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("config", "", "Path to the orchestrator config YAML (required)")
	runCmd.Flags().String("manifest", "", "Path to the request manifest YAML (required)")
	runCmd.Flags().String("data-dir", "./planrunner-data", "Directory for the report store")
	runCmd.Flags().String("command", "", "Shell command to run inside each workspace; omitted means use the built-in simulated executor")
	runCmd.Flags().String("listen", "", "Address for the /health, /ready, and /metrics HTTP server; overrides statusAddr in the config file when set; empty keeps the config file's value")
	_ = runCmd.MarkFlagRequired("config")
	_ = runCmd.MarkFlagRequired("manifest")
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	shellCommand, _ := cmd.Flags().GetString("command")
	listenAddr, _ := cmd.Flags().GetString("listen")

	rawCfg, err := config.LoadOrchestratorConfig(configPath)
	if err != nil {
		return err
	}
	orchCfg, err := rawCfg.ToOrchestratorConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		orchCfg.StatusAddr = listenAddr
	}

	manifest, err := config.LoadRequestManifest(manifestPath)
	if err != nil {
		return err
	}
	requests, err := manifest.ToRequests()
	if err != nil {
		return err
	}

	gitVCS := &vcs.GitCLI{MainRepoPath: orchCfg.MainRepoPath}

	var ex executor.Executor
	if shellCommand != "" {
		ex = &executor.Shell{Command: strings.Fields(shellCommand)}
	} else {
		ex = executor.NewFake()
	}

	o := orchestrator.New(orchCfg, gitVCS, ex)

	report, err := o.Run(context.Background(), requests)
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}

	fmt.Printf("Session %s: %s\n", report.SessionID, report.Status)
	fmt.Printf("  Total:   %d\n", report.TotalRequests)
	fmt.Printf("  Passed:  %d\n", report.Passed)
	fmt.Printf("  Failed:  %d\n", report.Failed)
	fmt.Printf("  Success: %.1f%%\n", report.SuccessRate)
	fmt.Printf("  Duration: %s\n", report.Duration)
	for _, r := range report.FailedResults {
		fmt.Printf("  FAILED %s: %s\n", r.RequestID, r.Error)
	}

	reportStore, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}
	defer reportStore.Close()

	if err := reportStore.SaveReport(report); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	return nil
}
