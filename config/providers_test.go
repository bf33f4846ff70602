package config

import (
	"testing"
)

func TestSetCredentialPersistsToStore(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		DataDirectory:   dir,
		CredentialStore: NewCredentialStore(SecurityPlainText, ""),
	}

	if err := SetCredential(cfg, "anthropic", "sk-test-123"); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}
	if got := cfg.CredentialStore.Get("anthropic"); got != "sk-test-123" {
		t.Errorf("Get(anthropic) = %q", got)
	}

	// The key must survive a fresh load from disk
	reloaded := NewCredentialStore(SecurityPlainText, "")
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := reloaded.Get("anthropic"); got != "sk-test-123" {
		t.Errorf("reloaded Get(anthropic) = %q", got)
	}

	// An empty key clears the credential
	if err := SetCredential(cfg, "anthropic", ""); err != nil {
		t.Fatalf("SetCredential clear failed: %v", err)
	}
	reloaded = NewCredentialStore(SecurityPlainText, "")
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := reloaded.Get("anthropic"); got != "" {
		t.Errorf("credential survived clear: %q", got)
	}
}

func TestSetCredentialWithoutStore(t *testing.T) {
	cfg := &Config{DataDirectory: t.TempDir()}

	if err := SetCredential(cfg, "anthropic", "sk-test"); err == nil {
		t.Error("expected error when no credential store is configured")
	}
}

func TestSetProviderEnabled(t *testing.T) {
	dir := t.TempDir()

	if err := SetProviderEnabled(dir, "ollama", true); err != nil {
		t.Fatalf("SetProviderEnabled failed: %v", err)
	}

	cfg, err := LoadUserConfig(dir)
	if err != nil {
		t.Fatalf("LoadUserConfig failed: %v", err)
	}
	found := false
	for _, p := range cfg.Providers {
		if p.ID == "ollama" {
			found = true
			if !p.Enabled {
				t.Error("ollama not enabled after SetProviderEnabled")
			}
		}
	}
	if !found {
		t.Fatal("ollama missing from provider list")
	}

	if err := SetProviderEnabled(dir, "ollama", false); err != nil {
		t.Fatalf("SetProviderEnabled failed: %v", err)
	}
	cfg, err = LoadUserConfig(dir)
	if err != nil {
		t.Fatalf("LoadUserConfig failed: %v", err)
	}
	if p := findProvider(cfg, "ollama"); p == nil || p.Enabled {
		t.Error("ollama still enabled after disable")
	}
}

func TestSetProviderEnabledAddsUnknownProvider(t *testing.T) {
	dir := t.TempDir()

	if err := SetProviderEnabled(dir, "openrouter", true); err != nil {
		t.Fatalf("SetProviderEnabled failed: %v", err)
	}

	cfg, err := LoadUserConfig(dir)
	if err != nil {
		t.Fatalf("LoadUserConfig failed: %v", err)
	}
	p := findProvider(cfg, "openrouter")
	if p == nil {
		t.Fatal("openrouter was not added to the provider list")
	}
	if !p.Enabled {
		t.Error("openrouter added but not enabled")
	}
}

func findProvider(cfg *UserConfig, id string) *ProviderConfig {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == id {
			return &cfg.Providers[i]
		}
	}
	return nil
}
