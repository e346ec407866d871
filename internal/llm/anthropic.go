package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// AnthropicService is a CompletionService backed by the Anthropic Messages
// API. Cut down from internal/agent/providers/anthropic.go's
// AnthropicProvider to the request-shaping/SSE-decode/tool-call-extraction
// core: vision-attachment encoding, extended-thinking budget plumbing, and
// the beta computer-use path have no home here and are dropped.
type AnthropicService struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures an AnthropicService.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicService builds a CompletionService from cfg.
func NewAnthropicService(cfg AnthropicConfig) (*AnthropicService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicService{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (s *AnthropicService) Name() string { return "anthropic" }

func (s *AnthropicService) Models() []Model {
	return []Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextSize: 200000},
	}
}

// Complete shapes req into an Anthropic streaming request and converts the
// SSE event stream into CompletionChunks. Creation errors (malformed
// messages or tool schemas) are returned directly; once the stream starts,
// failures are delivered as a chunk carrying Error.
func (s *AnthropicService) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model(req.Model)),
		Messages:  messages,
		MaxTokens: int64(s.maxTokens(req.MaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}

	stream := s.client.Messages.NewStreaming(ctx, params)

	chunks := make(chan *CompletionChunk)
	go func() {
		defer close(chunks)
		processStream(stream, chunks)
	}()
	return chunks, nil
}

func (s *AnthropicService) model(requested string) string {
	if requested == "" {
		return s.defaultModel
	}
	return requested
}

func (s *AnthropicService) maxTokens(requested int) int {
	if requested <= 0 {
		return 4096
	}
	return requested
}

// convertMessages reshapes CompletionMessages into Anthropic's content-block
// message format, tool results and tool-use blocks alongside free text.
func convertMessages(messages []CompletionMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tr := range msg.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, toolResultText(tr.Content), tr.IsError))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if len(tc.Args) > 0 {
				if err := json.Unmarshal(tc.Args, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call args for %s: %w", tc.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

// toolResultText renders a tool-result content variant as the string
// Anthropic's tool_result block expects; image variants are serialized as
// a short placeholder here since the streaming image-input path is out of
// scope for this trimmed service. Image result shaping still applies to
// the driver's internal bookkeeping, just not to re-feeding images back
// to this particular completion service.
func toolResultText(c models.ToolResultContent) string {
	switch v := c.(type) {
	case models.TextContent:
		return v.Text
	case models.ImageContent:
		return fmt.Sprintf("[image result: %s]", v.MediaType)
	default:
		return ""
	}
}

// convertTools renders the registry's wire-shape tool declarations into
// Anthropic's tool parameter format.
func convertTools(wireTools []schema.ToolWireShape) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, t := range wireTools {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for tool %s: %w", t.Name, err)
		}
		var schemaParam anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schemaParam); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schemaParam, t.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

// processStream consumes Anthropic's SSE event stream, converting
// content_block_start/delta/stop and message_start/delta events into
// CompletionChunks. Tool-use input arrives as streamed JSON fragments
// across multiple delta events and is accumulated until content_block_stop.
func processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *CompletionChunk) {
	var currentToolCall *models.ToolCall
	var currentToolInput strings.Builder
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentToolCall = &models.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentToolInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- &CompletionChunk{Text: delta.Text}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput.WriteString(delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if currentToolCall != nil {
				currentToolCall.Args = []byte(currentToolInput.String())
				chunks <- &CompletionChunk{ToolCall: currentToolCall}
				currentToolCall = nil
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}

		case "message_stop":
			chunks <- &CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return
		}
	}
	if err := stream.Err(); err != nil {
		chunks <- &CompletionChunk{Error: fmt.Errorf("anthropic: stream error: %w", err)}
		return
	}
	chunks <- &CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
}
