// Package shelltool implements the Shell Tool Provider: the bash/
// bash_status/bash_reset tools that bridge the Tool Registry onto the
// Lazy Container Manager and the Stateful Shell.
//
// Grounded on internal/tools/sandbox/executor.go's tool-shape methods
// (Name/Description/Schema) adapted to the declare()/invoke() provider
// contract used by internal/tools.Provider instead of a flatter
// agent.Tool interface.
package shelltool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/internal/containers"
	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/internal/shell"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ProviderName identifies this provider's state buckets.
const ProviderName = "shell"

// Provider serves bash, bash_status, and bash_reset, each operating on
// the calling conversation's lazily-provisioned container and its single
// long-lived shell session.
type Provider struct {
	containers *containers.Manager
	logger     *slog.Logger

	mu     sync.Mutex
	shells map[string]*shell.Shell
}

// New creates a shell tool provider backed by mgr.
func New(mgr *containers.Manager, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		containers: mgr,
		logger:     logger.With("component", "shelltool"),
		shells:     make(map[string]*shell.Shell),
	}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Declare() tools.Declaration {
	return tools.Declaration{
		Tools: []schema.Declaration{
			{
				ID:          "bash",
				Name:        "bash",
				Description: "Run a shell command in this conversation's sandboxed container. The shell persists across calls: exported variables, the working directory, and background jobs all survive between invocations.",
				Parameters: schema.Tree{Params: []schema.Param{
					{Name: "command", Type: schema.TypeString, Required: true, Description: "the shell command to run"},
					{Name: "timeout_seconds", Type: schema.TypeInteger, Description: "maximum seconds to wait before interrupting the command; defaults to 30"},
				}},
			},
			{
				ID:          "bash_status",
				Name:        "bash_status",
				Description: "Report whether this conversation has a container and shell session, and its current lifecycle phase.",
				Parameters:  schema.Tree{},
			},
			{
				ID:          "bash_reset",
				Name:        "bash_reset",
				Description: "Destroy this conversation's container and shell session. The next bash call provisions a fresh one.",
				Parameters: schema.Tree{Params: []schema.Param{
					{Name: "keep_data", Type: schema.TypeBoolean, Description: "keep the host-side scratch directory (mounted at /mnt) instead of wiping it; defaults to false"},
				}},
			},
		},
		ConversationTemplate: map[string]any{"command_count": 0},
	}
}

func (p *Provider) Invoke(ctx context.Context, inv *tools.Invocation) (tools.Result, *tools.ToolError) {
	switch inv.ToolID {
	case "bash":
		return p.runBash(ctx, inv)
	case "bash_status":
		return p.status(inv), nil
	case "bash_reset":
		return p.reset(ctx, inv)
	default:
		return tools.Result{}, nil
	}
}

// shellRunResult is the wire shape reported back to the model for a bash
// call: every field a routine non-zero exit needs to be reasoned about
// without being mistaken for a tool-provider error.
type shellRunResult struct {
	ExitCode                     int    `json:"exit_code"`
	Stdout                       string `json:"stdout"`
	Stderr                       string `json:"stderr"`
	Success                      bool   `json:"success"`
	CommandNumber                int    `json:"command_number"`
	ContainerWasCreatedOrResumed bool   `json:"container_was_created_or_resumed"`
	TimedOut                     bool   `json:"timed_out,omitempty"`
	Truncated                    bool   `json:"truncated,omitempty"`
}

// shellTimeoutExitCode is the exit code reported for a command that was
// interrupted after exceeding its timeout (the same code timeout(1)
// uses); the result's timed_out field is set alongside it.
const shellTimeoutExitCode = 124

func (p *Provider) runBash(ctx context.Context, inv *tools.Invocation) (tools.Result, *tools.ToolError) {
	command, _ := inv.Args["command"].(string)
	if command == "" {
		return tools.Result{}, &tools.ToolError{Kind: tools.ErrInvalidArgs, ToolID: "bash", Message: "command must be a non-empty string"}
	}

	timeout := shell.DefaultCommandTimeout
	if raw, ok := inv.Args["timeout_seconds"]; ok {
		if n, ok := toInt(raw); ok && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	containerID, containerWasCreatedOrResumed, err := p.containers.Ensure(ctx, inv.ConversationID)
	if err != nil {
		return tools.Result{}, &tools.ToolError{
			Kind: tools.ErrContainerUnavailable, ToolID: "bash",
			Message: "could not provision a container for this conversation", Cause: err,
		}
	}

	sh, err := p.shellFor(ctx, inv.ConversationID, containerID)
	if err != nil {
		return tools.Result{}, &tools.ToolError{
			Kind: tools.ErrContainerUnavailable, ToolID: "bash",
			Message: "could not open a shell session for this conversation", Cause: err,
		}
	}

	result, err := sh.Run(ctx, command, timeout)
	commandNumber := 1
	if count, ok := inv.ConversationState["command_count"].(int); ok {
		commandNumber = count + 1
	}
	inv.ConversationState["command_count"] = commandNumber

	if err != nil {
		return tools.Result{}, &tools.ToolError{Kind: tools.ErrToolProviderError, ToolID: "bash", Message: err.Error(), Cause: err}
	}

	// A command that runs to completion and exits nonzero (grep finding no
	// match, a test failure) is a normal result, not a tool error: exit_code
	// carries that signal to the model. The same is true of a timeout,
	// reported here as exit 124 rather than as a provider error.
	exitCode := result.ExitCode
	if result.TimedOut {
		exitCode = shellTimeoutExitCode
		result.Stderr += "\ncommand exceeded its timeout and was interrupted"
	}

	payload := shellRunResult{
		ExitCode:                     exitCode,
		Stdout:                       result.Output,
		Stderr:                       result.Stderr,
		Success:                      exitCode == 0,
		CommandNumber:                commandNumber,
		ContainerWasCreatedOrResumed: containerWasCreatedOrResumed,
		TimedOut:                     result.TimedOut,
		Truncated:                    result.Truncated,
	}
	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return tools.Result{}, &tools.ToolError{Kind: tools.ErrToolProviderError, ToolID: "bash", Message: marshalErr.Error(), Cause: marshalErr}
	}
	return tools.Result{Content: models.TextContent{Text: string(raw)}, IsError: false}, nil
}

func (p *Provider) status(inv *tools.Invocation) tools.Result {
	phase := p.containers.Status(inv.ConversationID)
	p.mu.Lock()
	_, hasShell := p.shells[inv.ConversationID]
	p.mu.Unlock()

	text := fmt.Sprintf("container phase: %s\nshell session open: %v", phase, hasShell)
	return tools.Result{Content: models.TextContent{Text: text}}
}

func (p *Provider) reset(ctx context.Context, inv *tools.Invocation) (tools.Result, *tools.ToolError) {
	keepData, _ := inv.Args["keep_data"].(bool)

	p.mu.Lock()
	sh, ok := p.shells[inv.ConversationID]
	delete(p.shells, inv.ConversationID)
	p.mu.Unlock()

	if ok {
		if err := sh.Close(); err != nil {
			p.logger.Warn("error closing shell during reset", "conversation_id", inv.ConversationID, "error", err)
		}
	}
	if err := p.containers.Reset(ctx, inv.ConversationID, keepData); err != nil {
		return tools.Result{}, &tools.ToolError{Kind: tools.ErrContainerUnavailable, ToolID: "bash_reset", Message: err.Error(), Cause: err}
	}
	raw, err := json.Marshal(map[string]bool{"ok": true})
	if err != nil {
		return tools.Result{}, &tools.ToolError{Kind: tools.ErrToolProviderError, ToolID: "bash_reset", Message: err.Error(), Cause: err}
	}
	return tools.Result{Content: models.TextContent{Text: string(raw)}}, nil
}

// shellFor returns the cached shell session for conversationID, opening
// one against containerID if none exists yet.
func (p *Provider) shellFor(ctx context.Context, conversationID, containerID string) (*shell.Shell, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sh, ok := p.shells[conversationID]; ok {
		return sh, nil
	}

	sh, err := shell.Open(ctx, containerID, p.logger)
	if err != nil {
		return nil, err
	}
	p.shells[conversationID] = sh
	return sh, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
