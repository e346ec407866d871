// Package models holds the wire-level data types shared across agentcore's
// components: conversation turns, tool declarations, and tool results.
//
// Generalized from the flat per-channel Message/ToolCall/ToolResult shapes
// in github.com/haasonsaas/nexus pkg/models/message.go into an explicit
// turn sequence, since this module's Conversation Manager needs the
// alternating user/assistant/tool-result structure directly, not a channel
// transcript.
package models

import "time"

// TurnKind identifies the role of a conversation turn.
type TurnKind string

const (
	TurnUser            TurnKind = "user"
	TurnAssistantText   TurnKind = "assistant-text"
	TurnAssistantTool   TurnKind = "assistant-tool-use"
	TurnToolResult      TurnKind = "tool-result"
)

// Turn is one entry in a conversation's history.
//
// Invariant (enforced by the conversation manager, not this type): history
// alternates user/assistant turns at the top level, and every
// TurnAssistantTool turn is followed by exactly one TurnToolResult turn
// carrying one result per tool-use, in the same order.
type Turn struct {
	Kind TurnKind `json:"kind"`

	// Text holds the textual content for TurnUser and TurnAssistantText, and
	// any text the model emitted alongside tool-use blocks for
	// TurnAssistantTool: mixed text+tool-use turns keep both.
	Text string `json:"text,omitempty"`

	// ToolCalls is populated for TurnAssistantTool.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResults is populated for TurnToolResult, one per ToolCall in the
	// preceding TurnAssistantTool turn, in the same order.
	ToolResults []ToolResultTurn `json:"tool_results,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ToolCall is a single tool-use request emitted by the model.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Args  []byte `json:"args"` // raw JSON object
}

// ToolResultTurn is one tool's outcome, keyed back to the originating
// ToolCall by ID.
type ToolResultTurn struct {
	ToolCallID string             `json:"tool_call_id"`
	Content    ToolResultContent  `json:"content"`
	IsError    bool               `json:"is_error,omitempty"`
}

// Conversation is the Conversation Manager's unit of state: an opaque
// external identifier, its ordered history, per-provider tool state, a
// host-side working directory, and a creation timestamp.
//
// Conversation does not carry a mutex itself; the Conversation Manager owns
// one lock per conversation id and serializes all mutation through it.
type Conversation struct {
	ID          string
	History     []Turn
	WorkingDir  string
	CreatedAt   time.Time
}

// LastTurn returns the most recent turn, or the zero Turn if history is
// empty.
func (c *Conversation) LastTurn() (Turn, bool) {
	if len(c.History) == 0 {
		return Turn{}, false
	}
	return c.History[len(c.History)-1], true
}

// Append adds a turn to the conversation's history.
func (c *Conversation) Append(t Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	c.History = append(c.History, t)
}
