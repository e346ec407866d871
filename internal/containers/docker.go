package containers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/retry"
)

// dockerBackend provisions and drives sandbox containers via the docker
// CLI, the same way internal/tools/sandbox/executor.go's dockerExecutor
// does (exec.CommandContext(ctx, "docker", ...) rather than the Docker
// SDK), generalized from one-shot `docker run --rm` invocations to
// long-lived containers that persist across many tool calls.
type dockerBackend struct {
	cfg        config.ContainersConfig
	workDirFor func(conversationID string) string
	logger     *slog.Logger
}

func newDockerBackend(cfg config.ContainersConfig, workDirFor func(string) string, logger *slog.Logger) *dockerBackend {
	return &dockerBackend{cfg: cfg, workDirFor: workDirFor, logger: logger.With("backend", "docker")}
}

func (d *dockerBackend) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Factor:       1.0,
		Jitter:       false,
	}
}

// create starts a fresh, idling container for conversationID and returns
// its id. The container runs a keep-alive command so subsequent commands
// can be injected with `docker exec`.
func (d *dockerBackend) create(ctx context.Context, conversationID string) (string, error) {
	hostDir := d.workDirFor(conversationID)
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return "", fmt.Errorf("create host working directory: %w", err)
	}

	name := containerName(conversationID)
	args := []string{"run", "-d", "--name", name}
	args = append(args, d.baseArgs(hostDir)...)
	args = append(args, d.cfg.Image, "sleep", "infinity")

	var id string
	result := retry.Do(ctx, d.retryConfig(), func() error {
		out, err := d.run(ctx, args...)
		if err != nil {
			return err
		}
		id = strings.TrimSpace(out)
		return nil
	})
	if result.Err != nil {
		return "", fmt.Errorf("docker run: %w", result.Err)
	}
	if id == "" {
		return "", fmt.Errorf("docker run returned an empty container id")
	}
	return id, nil
}

// baseArgs assembles the hardening flags every sandbox container runs
// with, generalized from dockerExecutor.baseDockerArgs for a long-lived
// container instead of a one-shot `docker run --rm`.
func (d *dockerBackend) baseArgs(hostDir string) []string {
	args := []string{
		"--read-only",
		"--tmpfs", "/tmp:noexec,nosuid,size=64m",
		"--tmpfs", "/root/.cache:noexec,nosuid,size=64m",
		"-v", hostDir + ":/mnt",
		"--cap-drop=ALL",
		"--cap-add=CHOWN",
		"--cap-add=SETUID",
		"--cap-add=SETGID",
		"--security-opt", "no-new-privileges",
		"--memory", fmt.Sprintf("%dm", d.cfg.MemoryLimitMB),
		"--memory-swap", fmt.Sprintf("%dm", d.cfg.MemoryLimitMB),
		"--cpus", fmt.Sprintf("%.2f", d.cfg.CPULimit),
		"--pids-limit", "256",
		"--ulimit", "nofile=1024:2048",
		"--ulimit", "nproc=512:1024",
	}
	if d.cfg.NetworkIsolated {
		args = append(args, "--network", "none")
	} else {
		args = append(args, "--network", "host")
	}
	return args
}

func (d *dockerBackend) start(ctx context.Context, containerID string) error {
	result := retry.Do(ctx, d.retryConfig(), func() error {
		_, err := d.run(ctx, "start", containerID)
		return err
	})
	return result.Err
}

func (d *dockerBackend) stop(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, "stop", "--time", "5", containerID)
	return err
}

func (d *dockerBackend) remove(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, "rm", "-f", containerID)
	return err
}

// exec injects cmd into the running container and returns its output.
func (d *dockerBackend) exec(ctx context.Context, containerID string, cmd []string) (stdout, stderr string, exitCode int, err error) {
	args := append([]string{"exec", containerID}, cmd...)
	execCmd := exec.CommandContext(ctx, "docker", args...)

	var outBuf, errBuf strings.Builder
	execCmd.Stdout = &outBuf
	execCmd.Stderr = &errBuf

	runErr := execCmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	if runErr == nil {
		return stdout, stderr, 0, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return stdout, stderr, exitErr.ExitCode(), nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return stdout, stderr, -1, fmt.Errorf("docker exec timed out: %w", ctx.Err())
	}
	return stdout, stderr, -1, fmt.Errorf("docker exec: %w", runErr)
}

func (d *dockerBackend) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	var out, errOut strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(errOut.String()))
	}
	return out.String(), nil
}

func containerName(conversationID string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, conversationID)
	return "agentcore-" + sanitized
}
