// Package promptchannel defines the two wire message shapes the core
// exchanges with an external prompt transport, and the interface the core
// depends on to receive and publish them. No transport implementation
// lives here: the transport itself is out of scope, so this package is
// interface-only, a pluggable boundary without a concrete store.
package promptchannel

// InboundPrompt is a message bearing recipient="agent", type="new_prompt".
// Any other message shape is ignored by the core.
type InboundPrompt struct {
	ConversationID string `json:"conversation_id"`
	Prompt         string `json:"prompt"`
}

// OutboundResponse is a message bearing recipient="user_device",
// type="agent_response": the assistant's final text for one turn, echoing
// the conversation id it answers.
type OutboundResponse struct {
	ConversationID string `json:"conversation_id"`
	Prompt         string `json:"prompt"`
}

// PromptChannel is the core's boundary to whatever transport carries
// prompts in and responses out (a queue, a socket, a CLI loop in tests).
type PromptChannel interface {
	// Publish sends one outbound response.
	Publish(resp OutboundResponse) error

	// Subscribe returns a channel of inbound prompts. Closed when the
	// channel is shut down.
	Subscribe() <-chan InboundPrompt
}
