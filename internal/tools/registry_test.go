package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/internal/state"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type counterProvider struct{}

func (counterProvider) Name() string { return "counter" }

func (counterProvider) Declare() Declaration {
	return Declaration{
		Tools: []schema.Declaration{{
			ID:          "increment",
			Name:        "increment",
			Description: "increments a per-conversation counter",
			Parameters: schema.Tree{Params: []schema.Param{
				{Name: "by", Type: schema.TypeInteger},
			}},
		}},
		InitialGlobalState:   map[string]any{"total_calls": 0},
		ConversationTemplate: map[string]any{"count": 0},
	}
}

func (counterProvider) Invoke(_ context.Context, inv *Invocation) (Result, *ToolError) {
	count, _ := inv.ConversationState["count"].(int)
	count++
	inv.ConversationState["count"] = count

	total, _ := inv.GlobalState["total_calls"].(int)
	total++
	inv.GlobalState["total_calls"] = total

	return Result{Content: models.TextContent{Text: "ok"}}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store := state.New(filepath.Join(t.TempDir(), "state.json"), nil)
	return NewRegistry(store, nil)
}

func TestRegisterProviderDuplicateToolRejected(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.RegisterProvider(counterProvider{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.RegisterProvider(counterProvider{}); err == nil {
		t.Fatal("expected duplicate tool registration to fail")
	}
}

func TestCallUnknownToolReturnsErrUnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	_, toolErr := r.Call(context.Background(), "conv-1", "does_not_exist", []byte(`{}`))
	if toolErr == nil || toolErr.Kind != ErrUnknownTool {
		t.Fatalf("expected ErrUnknownTool, got %+v", toolErr)
	}
}

func TestCallInvalidArgsReturnsErrInvalidArgs(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.RegisterProvider(counterProvider{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, toolErr := r.Call(context.Background(), "conv-1", "increment", []byte(`{"by":"not-a-number"}`))
	if toolErr == nil || toolErr.Kind != ErrInvalidArgs {
		t.Fatalf("expected ErrInvalidArgs, got %+v", toolErr)
	}
}

func TestCallPersistsPerConversationAndGlobalState(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.RegisterProvider(counterProvider{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, toolErr := r.Call(context.Background(), "conv-1", "increment", []byte(`{}`)); toolErr != nil {
			t.Fatalf("call %d: %v", i, toolErr)
		}
	}
	if _, toolErr := r.Call(context.Background(), "conv-2", "increment", []byte(`{}`)); toolErr != nil {
		t.Fatalf("conv-2 call: %v", toolErr)
	}

	r.bucketsMu.Lock()
	conv1 := r.buckets.Conversations["conv-1"]["counter"].(map[string]any)
	conv2 := r.buckets.Conversations["conv-2"]["counter"].(map[string]any)
	global := r.buckets.Global["counter"].(map[string]any)
	r.bucketsMu.Unlock()

	if conv1["count"] != 3 {
		t.Errorf("expected conv-1 count=3, got %v", conv1["count"])
	}
	if conv2["count"] != 1 {
		t.Errorf("expected conv-2 count=1, got %v", conv2["count"])
	}
	if global["total_calls"] != 4 {
		t.Errorf("expected total_calls=4, got %v", global["total_calls"])
	}
}
