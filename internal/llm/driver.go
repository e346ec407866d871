package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/agentcore/internal/backoff"
	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// TurnTrace is the Driver's reduced per-turn telemetry: how many
// model/tool round-trips a turn took, which tools were called at each
// iteration, and the wall-clock elapsed. Supplemented from the
// messaging-agent family's per-turn recorder pattern; it is returned to
// the caller for introspection (e.g. bash_status-style reporting in
// tests) and is never persisted.
type TurnTrace struct {
	Iterations  int
	ToolsCalled [][]string
	Elapsed     time.Duration
}

// Driver turns a (history, user prompt) into an (assistant text, updated
// history), invoking tools via the registry as many times as the model
// requests in between.
type Driver struct {
	failover *FailoverPolicy
	registry *tools.Registry
	logger   *slog.Logger

	maxToolLoopIterations int
	maxTokens             int
}

// New builds a Driver. cfg supplies the backoff policy, fallback
// threshold, and tool-loop iteration cap; registry supplies the current
// tool schemas and dispatches tool-use items.
func New(primary, backup CompletionService, registry *tools.Registry, cfg config.DriverConfig, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	policy := backoff.BackoffPolicy{
		InitialMs: float64(cfg.InitialBackoff.Milliseconds()),
		MaxMs:     float64(cfg.MaxBackoff.Milliseconds()),
		Factor:    cfg.BackoffMultiplier,
		Jitter:    0,
	}
	maxIter := cfg.MaxToolLoopIterations
	if maxIter <= 0 {
		maxIter = 25
	}
	return &Driver{
		failover:              NewFailoverPolicy(primary, backup, policy, cfg.FallbackRetryCount, logger),
		registry:              registry,
		logger:                logger.With("component", "llm_driver"),
		maxToolLoopIterations: maxIter,
		maxTokens:             4096,
	}
}

// Reset restores the primary completion service for subsequent turns.
func (d *Driver) Reset() { d.failover.reset() }

// RunTurn appends prompt to conv's history as a user turn, then drives the
// model/tool loop until a pure-text completion is produced or the
// iteration cap is exceeded. It mutates conv.History in place and returns
// the final assistant text.
func (d *Driver) RunTurn(ctx context.Context, conv *models.Conversation, model, system, conversationID string, prompt string) (string, TurnTrace, error) {
	start := time.Now()
	trace := TurnTrace{}

	conv.Append(models.Turn{Kind: models.TurnUser, Text: prompt})

	for iter := 1; ; iter++ {
		if iter > d.maxToolLoopIterations {
			trace.Elapsed = time.Since(start)
			return "", trace, fmt.Errorf("tool loop exceeded %d iterations for conversation %s", d.maxToolLoopIterations, conversationID)
		}
		trace.Iterations = iter

		req := &CompletionRequest{
			Model:     model,
			System:    system,
			Messages:  toCompletionMessages(conv.History),
			Tools:     wireTools(d.registry),
			MaxTokens: d.maxTokens,
		}

		chunks, err := d.failover.Complete(ctx, req)
		if err != nil {
			trace.Elapsed = time.Since(start)
			return "", trace, fmt.Errorf("completion request failed: %w", err)
		}

		text, toolCalls, usageErr := drainChunks(chunks)
		if usageErr != nil {
			trace.Elapsed = time.Since(start)
			return "", trace, fmt.Errorf("completion stream failed: %w", usageErr)
		}

		if len(toolCalls) == 0 {
			conv.Append(models.Turn{Kind: models.TurnAssistantText, Text: text})
			trace.Elapsed = time.Since(start)
			return text, trace, nil
		}

		conv.Append(models.Turn{Kind: models.TurnAssistantTool, Text: text, ToolCalls: toolCalls})

		names := make([]string, len(toolCalls))
		for i, tc := range toolCalls {
			names[i] = tc.Name
		}
		trace.ToolsCalled = append(trace.ToolsCalled, names)

		results := d.invokeAll(ctx, conversationID, toolCalls)
		conv.Append(models.Turn{Kind: models.TurnToolResult, ToolResults: results})
	}
}

// invokeAll validates and dispatches every tool-use item via the
// registry, in order, preserving that order in the returned results
// regardless of how the registry internally serializes same-conversation
// calls.
func (d *Driver) invokeAll(ctx context.Context, conversationID string, calls []models.ToolCall) []models.ToolResultTurn {
	results := make([]models.ToolResultTurn, len(calls))
	for i, call := range calls {
		result, toolErr := d.registry.Call(ctx, conversationID, call.Name, call.Args)
		if toolErr != nil {
			results[i] = models.ToolResultTurn{
				ToolCallID: call.ID,
				Content:    models.TextContent{Text: toolErr.Error()},
				IsError:    true,
			}
			continue
		}
		results[i] = models.ToolResultTurn{
			ToolCallID: call.ID,
			Content:    result.Content,
			IsError:    result.IsError,
		}
	}
	return results
}

// drainChunks consumes a completion stream to its Done chunk, concatenating
// text and collecting any tool-use requests.
func drainChunks(chunks <-chan *CompletionChunk) (string, []models.ToolCall, error) {
	var text string
	var calls []models.ToolCall
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, chunk.Error
		}
		if chunk.Text != "" {
			text += chunk.Text
		}
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
		if chunk.Done {
			break
		}
	}
	return text, calls, nil
}

// toCompletionMessages reshapes conversation history into the completion
// service's message list.
func toCompletionMessages(history []models.Turn) []CompletionMessage {
	msgs := make([]CompletionMessage, 0, len(history))
	for _, t := range history {
		switch t.Kind {
		case models.TurnUser:
			msgs = append(msgs, CompletionMessage{Role: "user", Content: t.Text})
		case models.TurnAssistantText:
			msgs = append(msgs, CompletionMessage{Role: "assistant", Content: t.Text})
		case models.TurnAssistantTool:
			msgs = append(msgs, CompletionMessage{Role: "assistant", Content: t.Text, ToolCalls: t.ToolCalls})
		case models.TurnToolResult:
			msgs = append(msgs, CompletionMessage{Role: "tool", ToolResults: t.ToolResults})
		}
	}
	return msgs
}

// wireTools renders the registry's current tool declarations into the
// completion service's {name, description, input_schema} wire shape.
func wireTools(registry *tools.Registry) []schema.ToolWireShape {
	decls := registry.Declarations()
	wire := make([]schema.ToolWireShape, len(decls))
	for i, d := range decls {
		wire[i] = schema.Wire(d)
	}
	return wire
}
