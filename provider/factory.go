package provider

import (
	"fmt"

	"aide/model"
)

// NewBackend creates a backend from configuration. This is the centralized
// factory for every backend type; it dispatches on Config.Type and returns an
// error for unknown types or when a backend-specific constructor fails.
func NewBackend(cfg Config) (model.Backend, error) {
	switch cfg.Type {
	case ProviderTypeGateway:
		return NewGatewayBackend(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeAnthropic:
		return NewAnthropicBackend(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeOllama:
		return NewOllamaBackend(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts a config provider id to a factory
// ProviderType. Unknown ids pass through as-is; the factory will error.
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "gateway":
		return ProviderTypeGateway
	case "anthropic":
		return ProviderTypeAnthropic
	case "ollama":
		return ProviderTypeOllama
	default:
		return ProviderType(id)
	}
}
