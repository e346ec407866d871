package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/internal/state"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// echoToolProvider declares a single "echo" tool that returns its "text"
// argument verbatim, enough to drive the tool loop without a real sandbox.
type echoToolProvider struct{}

func (echoToolProvider) Name() string { return "echo" }

func (echoToolProvider) Declare() tools.Declaration {
	return tools.Declaration{
		Tools: []schema.Declaration{{
			ID:          "echo",
			Name:        "echo",
			Description: "echoes text back",
			Parameters: schema.Tree{Params: []schema.Param{
				{Name: "text", Type: schema.TypeString, Required: true},
			}},
		}},
	}
}

func (echoToolProvider) Invoke(_ context.Context, inv *tools.Invocation) (tools.Result, *tools.ToolError) {
	text, _ := inv.Args["text"].(string)
	return tools.Result{Content: models.TextContent{Text: text}}, nil
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	store := state.New(t.TempDir()+"/state.json", nil)
	r := tools.NewRegistry(store, nil)
	if err := r.RegisterProvider(echoToolProvider{}); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	return r
}

// scriptedService replays a fixed sequence of responses, one per Complete
// call, letting tests drive multi-iteration tool loops deterministically.
type scriptedService struct {
	name      string
	responses []func() []*CompletionChunk
	calls     int
}

func (s *scriptedService) Name() string  { return s.name }
func (s *scriptedService) Models() []Model { return nil }

func (s *scriptedService) Complete(_ context.Context, _ *CompletionRequest) (<-chan *CompletionChunk, error) {
	if s.calls >= len(s.responses) {
		return nil, errors.New("scriptedService: ran out of scripted responses")
	}
	chunks := s.responses[s.calls]()
	s.calls++
	ch := make(chan *CompletionChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func textOnly(text string) func() []*CompletionChunk {
	return func() []*CompletionChunk {
		return []*CompletionChunk{{Text: text}, {Done: true}}
	}
}

func toolUseThen(toolCallID, toolName, argsJSON string) func() []*CompletionChunk {
	return func() []*CompletionChunk {
		return []*CompletionChunk{
			{ToolCall: &models.ToolCall{ID: toolCallID, Name: toolName, Args: []byte(argsJSON)}},
			{Done: true},
		}
	}
}

func testDriverConfig() config.DriverConfig {
	return config.DriverConfig{
		InitialBackoff:        0,
		MaxBackoff:            0,
		BackoffMultiplier:     2,
		FallbackRetryCount:    10,
		MaxToolLoopIterations: 25,
	}
}

func TestRunTurnReturnsTextOnlyCompletion(t *testing.T) {
	registry := newTestRegistry(t)
	svc := &scriptedService{name: "primary", responses: []func() []*CompletionChunk{textOnly("hello there")}}
	d := New(svc, nil, registry, testDriverConfig(), nil)

	conv := &models.Conversation{ID: "conv-1"}
	text, trace, err := d.RunTurn(context.Background(), conv, "claude-sonnet-4-20250514", "", "conv-1", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello there" {
		t.Errorf("expected %q, got %q", "hello there", text)
	}
	if trace.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", trace.Iterations)
	}
	last, ok := conv.LastTurn()
	if !ok || last.Kind != models.TurnAssistantText {
		t.Fatalf("expected history to end with assistant-text, got %+v", last)
	}
}

func TestRunTurnExecutesToolThenReturnsText(t *testing.T) {
	registry := newTestRegistry(t)
	svc := &scriptedService{
		name: "primary",
		responses: []func() []*CompletionChunk{
			toolUseThen("call-1", "echo", `{"text":"ping"}`),
			textOnly("done"),
		},
	}
	d := New(svc, nil, registry, testDriverConfig(), nil)

	conv := &models.Conversation{ID: "conv-2"}
	text, trace, err := d.RunTurn(context.Background(), conv, "claude-sonnet-4-20250514", "", "conv-2", "echo ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "done" {
		t.Errorf("expected %q, got %q", "done", text)
	}
	if trace.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", trace.Iterations)
	}

	var toolResultTurns int
	for _, turn := range conv.History {
		if turn.Kind == models.TurnToolResult {
			toolResultTurns++
			if len(turn.ToolResults) != 1 || turn.ToolResults[0].ToolCallID != "call-1" {
				t.Fatalf("unexpected tool result turn: %+v", turn)
			}
		}
	}
	if toolResultTurns != 1 {
		t.Errorf("expected exactly one tool-result turn, got %d", toolResultTurns)
	}
}

func TestRunTurnUnknownToolSurfacesAsErrorResultNotFatal(t *testing.T) {
	registry := newTestRegistry(t)
	svc := &scriptedService{
		name: "primary",
		responses: []func() []*CompletionChunk{
			toolUseThen("call-1", "does_not_exist", `{}`),
			textOnly("recovered"),
		},
	}
	d := New(svc, nil, registry, testDriverConfig(), nil)

	conv := &models.Conversation{ID: "conv-3"}
	text, _, err := d.RunTurn(context.Background(), conv, "m", "", "conv-3", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "recovered" {
		t.Errorf("expected %q, got %q", "recovered", text)
	}

	for _, turn := range conv.History {
		if turn.Kind == models.TurnToolResult {
			if !turn.ToolResults[0].IsError {
				t.Error("expected unknown-tool result to be marked IsError")
			}
		}
	}
}

func TestRunTurnExceedsIterationCap(t *testing.T) {
	registry := newTestRegistry(t)
	responses := make([]func() []*CompletionChunk, 0, 3)
	for i := 0; i < 3; i++ {
		responses = append(responses, toolUseThen("call", "echo", `{"text":"x"}`))
	}
	svc := &scriptedService{name: "primary", responses: responses}

	cfg := testDriverConfig()
	cfg.MaxToolLoopIterations = 2
	d := New(svc, nil, registry, cfg, nil)

	conv := &models.Conversation{ID: "conv-4"}
	_, _, err := d.RunTurn(context.Background(), conv, "m", "", "conv-4", "hi")
	if err == nil {
		t.Fatal("expected iteration cap error")
	}
}
