// Package main provides the CLI entry point for agentcore, a headless
// conversational agent runtime: one LLM-driven conversation per
// conversation id, each backed by a lazily-provisioned sandboxed
// container and a registry of tools the model may call mid-turn.
//
// # Basic Usage
//
// Start the runtime (exposes /metrics, blocks until a shutdown signal):
//
//	agentcore serve --config agentcore.yaml
//
// Inspect configuration and persisted state:
//
//	agentcore status
//
// Wipe all persisted conversations, tool state, and containers:
//
//	agentcore reset
//
// # Environment Variables
//
//   - RUNTIME_ROOT: base directory for state and working directories
//   - ANTHROPIC_API_KEY: Anthropic API key for the primary/backup models
//   - BACKUP_MODEL, INITIAL_BACKOFF, MAX_BACKOFF, BACKOFF_MULTIPLIER,
//     FALLBACK_RETRY_COUNT, IDLE_TIMEOUT_SECONDS, MEMORY_LIMIT_MB,
//     CPU_LIMIT: see internal/config for the full overlay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/containers"
	"github.com/haasonsaas/agentcore/internal/conversation"
	"github.com/haasonsaas/agentcore/internal/llm"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/state"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/internal/tools/shelltool"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore - sandboxed, tool-using conversational agent runtime",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildResetCmd(), buildStatusCmd())
	return rootCmd
}

// runtime bundles the five wired components a subcommand needs, plus
// whatever teardown each opened along the way.
type runtime struct {
	cfg        config.Config
	store      *state.Store
	registry   *tools.Registry
	containers *containers.Manager
	driver     *llm.Driver
	manager    *conversation.Manager
	metrics    *observability.Metrics
}

// buildRuntime loads configuration and wires the State Store, Tool
// Registry (with the shell tool provider registered), Lazy Container
// Manager, LLM Driver (Anthropic primary, optional Anthropic backup), and
// Conversation Manager together: every component is constructed here and
// handed to the next by pointer, with no hidden package-level singletons.
func buildRuntime(configPath string, logger *slog.Logger) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureRuntimeDirs(); err != nil {
		return nil, fmt.Errorf("prepare runtime directories: %w", err)
	}

	metrics := observability.NewMetrics()

	store := state.New(cfg.StatePath(), logger)
	registry := tools.NewRegistry(store, logger)
	registry.SetMetrics(metrics)

	containerMgr := containers.New(cfg.Containers, cfg.WorkingDirFor, logger)
	containerMgr.SetMetrics(metrics)

	if err := registry.RegisterProvider(shelltool.New(containerMgr, logger)); err != nil {
		return nil, fmt.Errorf("register shell tool provider: %w", err)
	}

	primary, err := llm.NewAnthropicService(llm.AnthropicConfig{
		APIKey:       cfg.LLM.APIKey,
		DefaultModel: cfg.LLM.PrimaryModel,
	})
	if err != nil {
		return nil, fmt.Errorf("configure primary completion service: %w", err)
	}

	var backup llm.CompletionService
	if cfg.LLM.BackupModel != "" {
		backupSvc, err := llm.NewAnthropicService(llm.AnthropicConfig{
			APIKey:       cfg.LLM.APIKey,
			DefaultModel: cfg.LLM.BackupModel,
		})
		if err != nil {
			return nil, fmt.Errorf("configure backup completion service: %w", err)
		}
		backup = backupSvc
	}

	driver := llm.New(primary, backup, registry, cfg.Driver, logger)
	manager := conversation.New(driver, containerMgr, registry, cfg, logger)

	return &runtime{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		containers: containerMgr,
		driver:     driver,
		manager:    manager,
		metrics:    metrics,
	}, nil
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentcore runtime and expose /metrics",
		Long: `Wires the State Store, Tool Registry, Lazy Container Manager, LLM
Driver, and Conversation Manager together, starts the idle container
reaper, and serves Prometheus metrics on --addr until a shutdown signal
(SIGINT/SIGTERM) is received. Prompt ingestion itself arrives over
whatever internal/promptchannel.PromptChannel transport the deployment
wires in front of the Conversation Manager's OnPrompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, addr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().StringVar(&addr, "addr", ":9090", "address to serve /metrics on")
	return cmd
}

func runServe(ctx context.Context, configPath, addr string) error {
	logger := slog.Default()
	rt, err := buildRuntime(configPath, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("agentcore started", "metrics_addr", addr, "runtime_root", rt.cfg.RuntimeRoot)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		logger.Error("metrics server failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown did not complete cleanly", "error", err)
	}
	rt.containers.Shutdown(shutdownCtx)

	logger.Info("agentcore stopped")
	return nil
}

func buildResetCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe all conversations, tool state, and containers",
		Long: `Calls the Conversation Manager's wipe_all operation: clears every
in-memory conversation, resets the Tool Registry's persisted state
buckets, and destroys every tracked container. The runtime directory
itself is left in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			rt, err := buildRuntime(configPath, logger)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rt.manager.WipeAll(ctx)
			rt.containers.Shutdown(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Reset complete.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	return cmd
}

func buildStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and persisted state summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store := state.New(cfg.StatePath(), slog.Default())
			buckets := store.Load()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentcore %s (commit: %s)\n\n", version, commit)
			fmt.Fprintf(out, "Runtime root:        %s\n", cfg.RuntimeRoot)
			fmt.Fprintf(out, "State file:          %s\n", cfg.StatePath())
			fmt.Fprintf(out, "Primary model:       %s\n", cfg.LLM.PrimaryModel)
			if cfg.LLM.BackupModel != "" {
				fmt.Fprintf(out, "Backup model:        %s\n", cfg.LLM.BackupModel)
			} else {
				fmt.Fprintln(out, "Backup model:        (none configured)")
			}
			fmt.Fprintf(out, "API key configured:  %t\n", cfg.LLM.APIKey != "")
			fmt.Fprintf(out, "Container image:     %s\n", cfg.Containers.Image)
			fmt.Fprintf(out, "Idle timeout:        %s\n", cfg.Containers.IdleTimeout)
			fmt.Fprintf(out, "Tool loop cap:       %d iterations\n", cfg.Driver.MaxToolLoopIterations)
			fmt.Fprintf(out, "Persisted conversations: %d\n", len(buckets.Conversations))
			fmt.Fprintf(out, "Global state buckets:    %d\n", len(buckets.Global))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	return cmd
}
