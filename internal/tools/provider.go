package tools

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Declaration is what a Provider contributes to the registry at
// registration time: the tools it serves, the global state it wants to
// exist the first time any of its tools runs, and the per-conversation
// state template new conversations seed from.
type Declaration struct {
	Tools               []schema.Declaration
	InitialGlobalState  map[string]any
	ConversationTemplate map[string]any
}

// Invocation is the validated, normalized input to a single tool call.
type Invocation struct {
	ToolID         string
	ConversationID string
	Args           map[string]any

	// ConversationState is this provider's private per-conversation
	// bucket. Mutate it in place (or assign a replacement map to this
	// field) to persist changes across calls.
	ConversationState map[string]any

	// GlobalState is this provider's private process-wide bucket, shared
	// across every conversation.
	GlobalState map[string]any
}

// Result is what a successful Invoke returns.
type Result struct {
	Content models.ToolResultContent
	IsError bool
}

// Provider implements one or more related tools. A provider's state
// buckets are opaque to the registry: it persists whatever the provider
// leaves in ConversationState/GlobalState after each call, keyed by the
// provider's own Name().
type Provider interface {
	// Name identifies this provider's state buckets in the persisted
	// file. Must be stable across process restarts.
	Name() string

	// Declare returns the tools this provider serves and its state
	// defaults.
	Declare() Declaration

	// Invoke executes one tool call. A non-nil *ToolError aborts the
	// call and is reported to the caller as a failed tool result; the
	// provider's state mutations up to the error are still persisted,
	// since partial progress (e.g. a container spun up before a command
	// failed) is real and shouldn't be discarded.
	Invoke(ctx context.Context, inv *Invocation) (Result, *ToolError)
}
