package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aide/model"
)

// defaultGatewayURL is the hosted proxy gateway. The gateway speaks the
// OpenAI chat-completions protocol and authenticates the app itself, so a
// per-user provider credential is optional on this path.
const defaultGatewayURL = "https://gateway.aide.chat/v1"

// defaultGatewayModel is used when no model is configured.
const defaultGatewayModel = "anthropic/claude-sonnet-4"

// GatewayBackend implements model.Backend against the proxy gateway using
// the official OpenAI Go SDK with a custom base URL.
type GatewayBackend struct {
	client  openai.Client
	model   string
	baseURL string
}

// NewGatewayBackend creates a gateway backend. Unlike the direct providers
// the API key may be empty; the gateway accepts unauthenticated app traffic.
func NewGatewayBackend(baseURL, apiKey, modelName string) (*GatewayBackend, error) {
	if baseURL == "" {
		baseURL = defaultGatewayURL
	}
	if modelName == "" {
		modelName = defaultGatewayModel
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &GatewayBackend{
		client:  openai.NewClient(opts...),
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

// Stream implements model.Backend.Stream. Text and tool-call fragments are
// forwarded per chunk; the SDK accumulator tells us when a tool call's last
// fragment has arrived so the completion flag can be raised per index.
func (p *GatewayBackend) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, handler model.StreamHandler) error {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(p.model),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToOpenAIFormat(tools)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			handler.ToolCallDelta(tool.Index, "", "", "", true)
		}

		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				handler.TextDelta(delta.Content)
			}
			for _, tc := range delta.ToolCalls {
				handler.ToolCallDelta(int(tc.Index), tc.ID, tc.Function.Name, tc.Function.Arguments, false)
			}
		}

		// Usage arrives on the final chunk when IncludeUsage is set.
		if chunk.Usage.TotalTokens > 0 {
			handler.UsageDelta(model.Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			})
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("gateway streaming error: %w", err)
	}
	return nil
}

// Complete implements model.Backend.Complete with a non-streaming call.
func (p *GatewayBackend) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (model.Message, error) {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToOpenAIFormat(tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Message{}, fmt.Errorf("gateway completion error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Message{}, fmt.Errorf("gateway returned no choices")
	}

	choice := resp.Choices[0]
	msg := model.NewMessage(model.RoleAssistant, choice.Message.Content)
	msg.Model = resp.Model
	msg.Provider = p.Name()
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
			Completed: true,
		})
	}
	msg.Usage = model.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return msg, nil
}

// Name implements model.Backend.Name.
func (p *GatewayBackend) Name() string {
	return "gateway"
}

// Model implements model.Backend.Model. Returns the full model name with
// vendor prefix for API calls.
func (p *GatewayBackend) Model() string {
	return p.model
}

// SetModel implements model.Backend.SetModel.
func (p *GatewayBackend) SetModel(modelName string) {
	p.model = modelName
}

// ListModels implements model.Backend.ListModels with vendor prefixes
// stripped for display.
func (p *GatewayBackend) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateway models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:         StripVendorPrefix(m.ID),
			InternalName: m.ID,
			Provider:     "gateway",
		})
	}
	return result, nil
}

// Ping implements model.Backend.Ping by attempting to list models.
func (p *GatewayBackend) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("gateway ping failed: %w", err)
	}
	return nil
}
