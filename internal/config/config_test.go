package config

import (
	"os"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Containers.IdleTimeout != 0 {
		t.Errorf("expected idle timeout disabled by default, got %v", cfg.Containers.IdleTimeout)
	}
	if cfg.Driver.MaxToolLoopIterations != 25 {
		t.Errorf("expected tool loop cap 25, got %d", cfg.Driver.MaxToolLoopIterations)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("IDLE_TIMEOUT_SECONDS", "120")
	t.Setenv("BACKUP_MODEL", "claude-haiku-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Containers.IdleTimeout != 120*time.Second {
		t.Errorf("expected idle timeout 120s, got %v", cfg.Containers.IdleTimeout)
	}
	if cfg.LLM.BackupModel != "claude-haiku-test" {
		t.Errorf("expected backup model override, got %q", cfg.LLM.BackupModel)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(os.DevNull + "-does-not-exist")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RuntimeRoot == "" {
		t.Error("expected non-empty default runtime root")
	}
}
