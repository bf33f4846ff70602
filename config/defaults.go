package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/aide",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Chat: ChatConfig{
			ForceGateway:    false,
			PreferStreaming: true,
			HistoryWindow:   15,
		},
		NativeProvider: "anthropic",
		Security: SecurityConfig{
			Method: "plaintext",
		},
		Providers: []ProviderConfig{
			{ID: "gateway", Name: "Gateway", Enabled: true},
			{ID: "anthropic", Name: "Anthropic", Enabled: true, BaseURL: "https://api.anthropic.com"},
			{ID: "ollama", Name: "Ollama", Enabled: false, BaseURL: "http://localhost:11434"},
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Aide System Configuration
# Location: ~/.config/aide/settings.toml
# This file uses TOML format: https://toml.io

# Directory where sessions and user config are stored
data_directory = "~/.local/share/aide"
`
}

func GenerateUserConfigTemplate() string {
	return `# Aide User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Native provider used when a direct credential is configured
# ("anthropic" or "ollama")
native_provider = "anthropic"

[chat]
# Route every send through the proxy gateway even when a direct
# provider credential is configured
force_gateway = false

# Prefer the native provider's streaming API over the synchronous call
prefer_streaming = true

# Number of recent messages replayed into each request
history_window = 15

[security]
# Credential storage: "plaintext" or "ssh_key"
method = "plaintext"

[[providers]]
id = "gateway"
name = "Gateway"
enabled = true

[[providers]]
id = "anthropic"
name = "Anthropic"
enabled = true
base_url = "https://api.anthropic.com"

[[providers]]
id = "ollama"
name = "Ollama"
enabled = false
base_url = "http://localhost:11434"
`
}
