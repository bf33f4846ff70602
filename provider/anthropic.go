package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"aide/model"
)

// maxTokens is required by the Anthropic API on every request.
const anthropicMaxTokens = 4096

// AnthropicBackend implements model.Backend using the official Anthropic Go
// SDK. It serves both native strategies: Stream for incremental delivery and
// Complete for the synchronous single-shot call.
type AnthropicBackend struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
}

// NewAnthropicBackend creates an Anthropic backend. The API key is required;
// this is the direct-credential path.
func NewAnthropicBackend(baseURL, apiKey, modelName string) (*AnthropicBackend, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	var anthropicModel anthropic.Model
	if modelName == "" {
		anthropicModel = anthropic.ModelClaudeSonnet4_5_20250929
	} else {
		anthropicModel = anthropic.Model(modelName)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicBackend{
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
	}, nil
}

// Stream implements model.Backend.Stream.
//
// Event mapping: message_start carries prompt-token usage;
// content_block_start introduces a tool-use block's id and name at its block
// index; content_block_delta carries text fragments (TextDelta) or argument
// fragments (InputJSONDelta); content_block_stop raises the completion flag
// for tool blocks; message_delta carries completion-token usage.
func (p *AnthropicBackend) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, handler model.StreamHandler) error {
	anthropicMessages, systemBlocks := ConvertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: anthropicMaxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToAnthropicFormat(tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	// Indices of content blocks that are tool-use blocks, so the stop event
	// only flags completion for those.
	toolBlocks := make(map[int]bool)

	for stream.Next() {
		event := stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			if in := eventVariant.Message.Usage.InputTokens; in > 0 {
				handler.UsageDelta(model.Usage{PromptTokens: int(in)})
			}

		case anthropic.ContentBlockStartEvent:
			if tu, ok := eventVariant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				idx := int(eventVariant.Index)
				toolBlocks[idx] = true
				handler.ToolCallDelta(idx, tu.ID, tu.Name, "", false)
			}

		case anthropic.ContentBlockDeltaEvent:
			idx := int(eventVariant.Index)
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				handler.TextDelta(deltaVariant.Text)
			case anthropic.InputJSONDelta:
				if toolBlocks[idx] {
					handler.ToolCallDelta(idx, "", "", deltaVariant.PartialJSON, false)
				}
			}

		case anthropic.ContentBlockStopEvent:
			idx := int(eventVariant.Index)
			if toolBlocks[idx] {
				handler.ToolCallDelta(idx, "", "", "", true)
			}

		case anthropic.MessageDeltaEvent:
			if out := eventVariant.Usage.OutputTokens; out > 0 {
				handler.UsageDelta(model.Usage{CompletionTokens: int(out)})
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("Anthropic streaming error: %w", err)
	}
	return nil
}

// Complete implements model.Backend.Complete with a non-streaming request.
func (p *AnthropicBackend) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (model.Message, error) {
	anthropicMessages, systemBlocks := ConvertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: anthropicMaxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToAnthropicFormat(tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return model.Message{}, fmt.Errorf("Anthropic completion error: %w", err)
	}

	msg := model.NewMessage(model.RoleAssistant, "")
	msg.Model = string(resp.Model)
	msg.Provider = p.Name()
	for _, block := range resp.Content {
		switch blockVariant := block.AsAny().(type) {
		case anthropic.TextBlock:
			msg.Content += blockVariant.Text
		case anthropic.ToolUseBlock:
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:        blockVariant.ID,
				Name:      blockVariant.Name,
				Arguments: string(blockVariant.Input),
				Completed: true,
			})
		}
	}
	msg.Usage = model.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	return msg, nil
}

// Name implements model.Backend.Name.
func (p *AnthropicBackend) Name() string {
	return "anthropic"
}

// Model implements model.Backend.Model.
func (p *AnthropicBackend) Model() string {
	return string(p.model)
}

// SetModel implements model.Backend.SetModel.
func (p *AnthropicBackend) SetModel(modelName string) {
	p.model = anthropic.Model(modelName)
}

// ListModels implements model.Backend.ListModels. Anthropic has no models
// list API, so this returns a curated list of known models as of the SDK
// version in use.
func (p *AnthropicBackend) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     "anthropic",
		})
	}
	return result, nil
}

// Ping implements model.Backend.Ping with a minimal request; Anthropic has
// no health endpoint.
func (p *AnthropicBackend) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
