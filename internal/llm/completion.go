// Package llm implements the LLM Driver: request shaping against a pluggable
// completion service, the model/tool loop, and retry/fallback between a
// primary and a backup model.
//
// CompletionService is adapted from internal/agent/provider_types.go's
// LLMProvider (channel-streamed chunks), trimmed to the fields this
// module's wire shape needs: vision-attachment and extended-thinking
// fields have no home here and are dropped.
package llm

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// CompletionService is the boundary to an external completion API. Concrete
// implementations (anthropic.go) handle request shaping, SSE decoding, and
// tool-call extraction for one backend.
type CompletionService interface {
	// Complete sends req and returns a channel of streamed chunks. The
	// channel is closed after a chunk with Done set to true, or a single
	// chunk carrying a non-nil Error.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name identifies this service for logging and failover bookkeeping.
	Name() string

	// Models lists the models this service can serve.
	Models() []Model
}

// CompletionRequest carries one completion call's inputs: the model,
// system prompt, conversation history shaped as completion messages, the
// Tool Registry's current wire-shape declarations, and a token cap.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	Tools     []schema.ToolWireShape
	MaxTokens int
}

// CompletionMessage is one role-tagged message in a completion request,
// built from a conversation Turn by the driver.
type CompletionMessage struct {
	Role        string
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResultTurn
}

// CompletionChunk is one streamed piece of a completion response.
type CompletionChunk struct {
	Text         string
	ToolCall     *models.ToolCall
	Done         bool
	Error        error
	InputTokens  int
	OutputTokens int
}

// Model describes one model a CompletionService can serve.
type Model struct {
	ID          string
	Name        string
	ContextSize int
}
