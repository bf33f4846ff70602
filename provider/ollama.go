package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"aide/model"
)

// OllamaBackend implements model.Backend against a local Ollama server. No
// credential is involved; it is selected by configuring "ollama" as the
// native provider.
type OllamaBackend struct {
	client  *api.Client
	model   string
	baseURL string
}

// NewOllamaBackend creates an Ollama backend.
func NewOllamaBackend(baseURL, modelName string) (*OllamaBackend, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llama3.1:latest"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaBackend{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

// Stream implements model.Backend.Stream. Ollama delivers text
// incrementally but tool calls whole, so each tool call is emitted as a
// single already-completed delta at its arrival position; usage comes from
// the metrics on the final response.
func (p *OllamaBackend) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, handler model.StreamHandler) error {
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: ConvertToOllamaMessages(messages),
		Tools:    ConvertToolsToOllamaFormat(tools),
		Stream:   func(b bool) *bool { return &b }(true),
	}

	nextToolIndex := 0
	respFunc := func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			handler.TextDelta(resp.Message.Content)
		}
		for _, call := range resp.Message.ToolCalls {
			args, err := json.Marshal(call.Function.Arguments)
			if err != nil {
				return fmt.Errorf("failed to encode tool arguments: %w", err)
			}
			handler.ToolCallDelta(nextToolIndex, "", call.Function.Name, string(args), true)
			nextToolIndex++
		}
		if resp.Done {
			usage := model.Usage{
				PromptTokens:     resp.Metrics.PromptEvalCount,
				CompletionTokens: resp.Metrics.EvalCount,
			}
			if !usage.Zero() {
				handler.UsageDelta(usage)
			}
		}
		return nil
	}

	if err := p.client.Chat(ctx, req, respFunc); err != nil {
		return fmt.Errorf("Ollama streaming error: %w", err)
	}
	return nil
}

// Complete implements model.Backend.Complete with a non-streaming request.
func (p *OllamaBackend) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (model.Message, error) {
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: ConvertToOllamaMessages(messages),
		Tools:    ConvertToolsToOllamaFormat(tools),
		Stream:   func(b bool) *bool { return &b }(false),
	}

	msg := model.NewMessage(model.RoleAssistant, "")
	msg.Model = p.model
	msg.Provider = p.Name()

	respFunc := func(resp api.ChatResponse) error {
		msg.Content += resp.Message.Content
		for _, call := range resp.Message.ToolCalls {
			args, err := json.Marshal(call.Function.Arguments)
			if err != nil {
				return fmt.Errorf("failed to encode tool arguments: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				Name:      call.Function.Name,
				Arguments: string(args),
				Completed: true,
			})
		}
		if resp.Done {
			msg.Usage = model.Usage{
				PromptTokens:     resp.Metrics.PromptEvalCount,
				CompletionTokens: resp.Metrics.EvalCount,
				TotalTokens:      resp.Metrics.PromptEvalCount + resp.Metrics.EvalCount,
			}
		}
		return nil
	}

	if err := p.client.Chat(ctx, req, respFunc); err != nil {
		return model.Message{}, fmt.Errorf("Ollama completion error: %w", err)
	}
	return msg, nil
}

// Name implements model.Backend.Name.
func (p *OllamaBackend) Name() string {
	return "ollama"
}

// Model implements model.Backend.Model.
func (p *OllamaBackend) Model() string {
	return p.model
}

// SetModel implements model.Backend.SetModel.
func (p *OllamaBackend) SetModel(modelName string) {
	p.model = modelName
}

// ListModels implements model.Backend.ListModels.
func (p *OllamaBackend) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list Ollama models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		result = append(result, model.ModelInfo{
			Name:         m.Name,
			InternalName: m.Name,
			Size:         m.Size,
			Provider:     "ollama",
		})
	}
	return result, nil
}

// Ping implements model.Backend.Ping.
func (p *OllamaBackend) Ping(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("Ollama ping failed: %w", err)
	}
	return nil
}
