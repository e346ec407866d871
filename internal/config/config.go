// Package config loads agentcore's runtime configuration from YAML with an
// environment-variable overlay for the toggles described in the external
// interfaces section of the design.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an agentcore process.
type Config struct {
	// RuntimeRoot is the base directory for the state file and per-conversation
	// scratch directories.
	RuntimeRoot string `yaml:"runtime_root"`

	LLM        LLMConfig        `yaml:"llm"`
	Containers ContainersConfig `yaml:"containers"`
	Driver     DriverConfig     `yaml:"driver"`
}

// LLMConfig configures the completion service and its fallback model.
type LLMConfig struct {
	APIKey       string `yaml:"api_key"`
	PrimaryModel string `yaml:"primary_model"`
	BackupModel  string `yaml:"backup_model"`
}

// ContainersConfig configures the lazy container manager's resource caps and
// idle reaping.
type ContainersConfig struct {
	MemoryLimitMB     int           `yaml:"memory_limit_mb"`
	CPULimit          float64       `yaml:"cpu_limit"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	NetworkIsolated   bool          `yaml:"network_isolated"`
	Image             string        `yaml:"image"`
}

// DriverConfig configures the LLM Driver's retry/backoff and tool-loop cap.
type DriverConfig struct {
	InitialBackoff      time.Duration `yaml:"initial_backoff"`
	MaxBackoff          time.Duration `yaml:"max_backoff"`
	BackoffMultiplier   float64       `yaml:"backoff_multiplier"`
	FallbackRetryCount  int           `yaml:"fallback_retry_count"`
	MaxToolLoopIterations int         `yaml:"max_tool_loop_iterations"`
}

// Default returns a Config populated with the defaults named in the design:
// idle timeout disabled by default at the library level (0 = no timeout),
// a 60s sweep interval, 2 GiB memory / 2.0 CPU container caps, 0.1s->3s
// backoff, and a 25-iteration tool-loop cap.
func Default() Config {
	return Config{
		RuntimeRoot: "./agentcore-runtime",
		LLM: LLMConfig{
			PrimaryModel: "claude-sonnet-4-20250514",
		},
		Containers: ContainersConfig{
			MemoryLimitMB: 2048,
			CPULimit:      2.0,
			IdleTimeout:   0,
			SweepInterval: 60 * time.Second,
			Image:         "agentcore-shell:latest",
		},
		Driver: DriverConfig{
			InitialBackoff:        100 * time.Millisecond,
			MaxBackoff:            3 * time.Second,
			BackoffMultiplier:     2,
			FallbackRetryCount:    10,
			MaxToolLoopIterations: 25,
		},
	}
}

// Load reads a YAML config file at path (if non-empty and present), then
// applies environment-variable overrides via applyEnvOverrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides overlays the environment toggles named in the external
// interfaces section onto cfg. Only non-empty values are applied.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("RUNTIME_ROOT")); v != "" {
		cfg.RuntimeRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("BACKUP_MODEL")); v != "" {
		cfg.LLM.BackupModel = v
	}
	if v := strings.TrimSpace(os.Getenv("INITIAL_BACKOFF")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Driver.InitialBackoff = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_BACKOFF")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Driver.MaxBackoff = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("BACKOFF_MULTIPLIER")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Driver.BackoffMultiplier = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("FALLBACK_RETRY_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Driver.FallbackRetryCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("IDLE_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Containers.IdleTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMORY_LIMIT_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Containers.MemoryLimitMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CPU_LIMIT")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Containers.CPULimit = f
		}
	}
}

// StatePath returns the path to the persisted state file under RuntimeRoot.
func (c Config) StatePath() string {
	return filepath.Join(c.RuntimeRoot, "state.bin")
}

// WorkingDirFor returns the host-side scratch directory for a conversation.
func (c Config) WorkingDirFor(conversationID string) string {
	return filepath.Join(c.RuntimeRoot, "agent-working-directory", conversationID)
}

// EnsureRuntimeDirs creates RuntimeRoot and the scratch-directory parent.
func (c Config) EnsureRuntimeDirs() error {
	if err := os.MkdirAll(c.RuntimeRoot, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(c.RuntimeRoot, "agent-working-directory"), 0o755)
}
