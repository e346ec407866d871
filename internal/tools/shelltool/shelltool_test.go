package shelltool

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/containers"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	cfg := config.ContainersConfig{
		MemoryLimitMB: 256,
		CPULimit:      1,
		SweepInterval: time.Hour,
		Image:         "alpine:3.20",
	}
	workDir := t.TempDir()
	mgr := containers.New(cfg, func(conversationID string) string { return workDir + "/" + conversationID }, nil)
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })
	return New(mgr, nil)
}

func TestDeclareListsThreeTools(t *testing.T) {
	p := testProvider(t)
	decl := p.Declare()
	if len(decl.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(decl.Tools))
	}
	names := map[string]bool{}
	for _, tool := range decl.Tools {
		names[tool.ID] = true
	}
	for _, want := range []string{"bash", "bash_status", "bash_reset"} {
		if !names[want] {
			t.Errorf("expected tool %q to be declared", want)
		}
	}
}

func TestRunBashRejectsEmptyCommand(t *testing.T) {
	p := testProvider(t)
	inv := &tools.Invocation{
		ToolID:            "bash",
		ConversationID:    "conv-1",
		Args:              map[string]any{"command": ""},
		ConversationState: map[string]any{},
		GlobalState:       map[string]any{},
	}
	_, toolErr := p.Invoke(context.Background(), inv)
	if toolErr == nil || toolErr.Kind != tools.ErrInvalidArgs {
		t.Fatalf("expected ErrInvalidArgs, got %+v", toolErr)
	}
}

func TestStatusReportsNotCreatedBeforeFirstUse(t *testing.T) {
	p := testProvider(t)
	inv := &tools.Invocation{
		ToolID:            "bash_status",
		ConversationID:    "conv-1",
		ConversationState: map[string]any{},
		GlobalState:       map[string]any{},
	}
	result, toolErr := p.Invoke(context.Background(), inv)
	if toolErr != nil {
		t.Fatalf("unexpected error: %v", toolErr)
	}
	text, ok := result.Content.(models.TextContent)
	if !ok {
		t.Fatalf("expected text status content, got %T", result.Content)
	}
	if !strings.Contains(text.Text, "container phase: "+string(containers.PhaseNotCreated)) {
		t.Errorf("expected status to report %q, got %q", containers.PhaseNotCreated, text.Text)
	}
}
