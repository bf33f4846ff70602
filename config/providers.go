package config

import (
	"fmt"
)

// SetCredential stores an API key for a provider and persists the credential
// file with the configured security method. An empty key clears the stored
// credential instead.
func SetCredential(cfg *Config, providerID, apiKey string) error {
	if cfg.CredentialStore == nil {
		return fmt.Errorf("no credential store configured")
	}

	if apiKey == "" {
		if err := cfg.CredentialStore.Delete(providerID); err != nil {
			return fmt.Errorf("failed to clear API key: %w", err)
		}
	} else {
		if err := cfg.CredentialStore.Set(providerID, apiKey); err != nil {
			return fmt.Errorf("failed to set API key: %w", err)
		}
	}

	if err := cfg.CredentialStore.Save(cfg.DataDir()); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	return nil
}

// SetProviderEnabled updates a provider's enabled flag in the user config on
// disk. Unknown providers are added with their default entry so enabling a
// provider works even before it appears in config.toml.
func SetProviderEnabled(dataDir, providerID string, enabled bool) error {
	cfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	found := false
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == providerID {
			cfg.Providers[i].Enabled = enabled
			found = true
			break
		}
	}
	if !found {
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			ID:      providerID,
			Name:    providerDisplayName(providerID),
			Enabled: enabled,
			BaseURL: providerDefaultBaseURL(providerID),
		})
	}

	if err := SaveUserConfig(cfg, dataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// SetDataDirectory updates the machine-level settings file. The change takes
// effect on the next startup; the running process keeps its resolved paths.
func SetDataDirectory(path string) error {
	cfg, err := LoadSystemConfig()
	if err != nil {
		return fmt.Errorf("failed to load system config: %w", err)
	}

	cfg.DataDirectory = path

	if err := SaveSystemConfig(cfg); err != nil {
		return fmt.Errorf("failed to save system config: %w", err)
	}

	return nil
}

// providerDisplayName returns the display name for a provider
func providerDisplayName(providerID string) string {
	switch providerID {
	case "gateway":
		return "Gateway"
	case "anthropic":
		return "Anthropic"
	case "ollama":
		return "Ollama"
	default:
		return providerID
	}
}

// providerDefaultBaseURL returns the default base URL for a provider
func providerDefaultBaseURL(providerID string) string {
	switch providerID {
	case "anthropic":
		return "https://api.anthropic.com"
	case "ollama":
		return "http://localhost:11434"
	default:
		return ""
	}
}
