package tools

import "fmt"

// ErrorKind classifies a tool-call failure so callers (the LLM Driver's
// tool loop, and ultimately the model) can distinguish "your arguments
// were wrong" from "the tool's backing infrastructure is unavailable"
// without parsing message text.
type ErrorKind string

const (
	// ErrUnknownTool means no provider declared a tool with this id.
	ErrUnknownTool ErrorKind = "unknown_tool"

	// ErrDuplicateTool is returned at registration time when two
	// providers declare the same tool id.
	ErrDuplicateTool ErrorKind = "duplicate_tool"

	// ErrInvalidArgs means the call's arguments failed schema validation.
	ErrInvalidArgs ErrorKind = "invalid_args"

	// ErrToolProviderError means the provider's Invoke returned an
	// application-level failure (the tool ran but failed).
	ErrToolProviderError ErrorKind = "tool_provider_error"

	// ErrContainerUnavailable means the backing container for this
	// conversation could not be provisioned or resumed.
	ErrContainerUnavailable ErrorKind = "container_unavailable"

	// ErrPersistenceError means state could not be durably saved after a
	// successful invocation. The invocation's result still stands; this
	// only flags an operator-visible durability gap.
	ErrPersistenceError ErrorKind = "persistence_error"
)

// ToolError is the error type every Registry.Call failure path returns.
// Name/Kind are stable enough to feed back to the model as part of a
// failed tool result: a provider failure is reported to the model as
// the tool result content rather than aborting the turn.
type ToolError struct {
	Kind    ErrorKind
	ToolID  string
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.ToolID != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.ToolID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

func newToolError(kind ErrorKind, toolID, message string, cause error) *ToolError {
	return &ToolError{Kind: kind, ToolID: toolID, Message: message, Cause: cause}
}
