package models

// ToolResultContent is the payload of a tool-result turn: TextContent or
// ImageContent, image being the only non-text variant. The driver keeps
// the variant in the conversation history as returned. The Anthropic
// completion service (internal/llm/anthropic.go) sends TextContent as the
// tool result's text; it does not send ImageContent's image data, only a
// short text placeholder naming its media type.
type ToolResultContent interface {
	isToolResultContent()
}

// TextContent is the default tool-result shape: a string, typically a
// JSON-encoded representation of the provider's result value.
type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) isToolResultContent() {}

// ImageContent is emitted when a tool declares and returns an image result.
type ImageContent struct {
	MediaType string `json:"media_type"`
	DataB64   string `json:"data_b64"`
}

func (ImageContent) isToolResultContent() {}
