// Package provider implements the concrete backend streaming sources behind
// the model.Backend interface.
//
// Three backends are supported: the proxy gateway (an OpenAI-compatible API,
// usable without a direct provider credential), Anthropic's native API, and a
// local Ollama server. All three are adapted to the same delta callback shape
// (model.StreamHandler), so the chat engine never sees provider-specific
// types; the conversion functions in conversions.go handle the mapping in
// both directions.
package provider

// ProviderType identifies the backend implementation.
type ProviderType string

const (
	ProviderTypeGateway   ProviderType = "gateway"
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOllama    ProviderType = "ollama"
)

// Config holds backend-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama; optional for the gateway
}
