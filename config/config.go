package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SystemConfig is the machine-level settings file (~/.config/aide).
type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// ProviderConfig is one entry in the user's provider table.
type ProviderConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

// ChatConfig holds the send-strategy knobs.
type ChatConfig struct {
	ForceGateway    bool `toml:"force_gateway"`
	PreferStreaming bool `toml:"prefer_streaming"`
	HistoryWindow   int  `toml:"history_window"`
}

// SecurityConfig selects how credentials are stored on disk.
type SecurityConfig struct {
	Method     string `toml:"method"` // "plaintext" or "ssh_key"
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// UserConfig lives in the data directory and holds per-user settings.
type UserConfig struct {
	Chat           ChatConfig       `toml:"chat"`
	NativeProvider string           `toml:"native_provider"`
	GatewayURL     string           `toml:"gateway_url,omitempty"`
	Security       SecurityConfig   `toml:"security"`
	Providers      []ProviderConfig `toml:"providers,omitempty"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory   string
	ForceGateway    bool
	PreferStreaming bool
	HistoryWindow   int
	NativeProvider  string
	GatewayURL      string
	Providers       []ProviderConfig
	CredentialStore *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Provider returns the table entry for a provider id, or nil.
func (c *Config) Provider(id string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return &c.Providers[i]
		}
	}
	return nil
}

// HasNativeCredential reports whether the configured native provider is
// usable directly. Ollama is local and has no credential concept, so an
// enabled Ollama entry counts; cloud providers need a stored API key.
func (c *Config) HasNativeCredential() bool {
	if c.NativeProvider == "ollama" {
		p := c.Provider("ollama")
		return p != nil && p.Enabled
	}
	if c.CredentialStore == nil {
		return false
	}
	return c.CredentialStore.Get(c.NativeProvider) != ""
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("AIDE_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if gatewayURL := os.Getenv("AIDE_GATEWAY_URL"); gatewayURL != "" {
		c.GatewayURL = gatewayURL
	}
	if force := os.Getenv("AIDE_FORCE_GATEWAY"); force == "true" || force == "1" {
		c.ForceGateway = true
	}
	if nativeProvider := os.Getenv("AIDE_NATIVE_PROVIDER"); nativeProvider != "" {
		c.NativeProvider = nativeProvider
	}
}

func CheckDebug() bool {
	debug := os.Getenv("AIDE_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log in the data directory when AIDE_DEBUG is
// set. Callers guard every use with a nil check.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log may contain conversation fragments
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (AIDE_DEBUG=%s) ===", os.Getenv("AIDE_DEBUG"))
}

// Load resolves the full runtime configuration: system config, user config,
// env overrides, then credentials according to the security method.
func Load() (*Config, error) {
	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{
		DataDirectory: systemCfg.DataDirectory,
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.ForceGateway = userCfg.Chat.ForceGateway
	cfg.PreferStreaming = userCfg.Chat.PreferStreaming
	cfg.HistoryWindow = userCfg.Chat.HistoryWindow
	cfg.NativeProvider = userCfg.NativeProvider
	cfg.GatewayURL = userCfg.GatewayURL
	cfg.Providers = userCfg.Providers

	cfg.applyEnvOverrides()

	method := SecurityMethod(userCfg.Security.Method)
	if method == "" {
		method = SecurityPlainText
	}
	keyPath := ExpandPath(userCfg.Security.SSHKeyPath)
	if method == SecuritySSHKey && keyPath == "" {
		// No key configured; fall back to the first usable key in ~/.ssh
		if keys, err := FindSSHKeys(); err == nil && len(keys) > 0 {
			keyPath = keys[0]
		}
	}
	store := NewCredentialStore(method, keyPath)
	cfg.CredentialStore = store
	if err := store.Load(dataDir); err != nil {
		if errors.Is(err, ErrPassphraseRequired) {
			// The config itself is usable; the caller prompts for the
			// passphrase and retries via LoadCredentialsWithPassphrase.
			return cfg, err
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return cfg, nil
}

// LoadCredentialsWithPassphrase retries the credential load for an encrypted
// SSH key after the user has supplied its passphrase.
func LoadCredentialsWithPassphrase(cfg *Config, passphrase string) error {
	if cfg.CredentialStore == nil {
		return fmt.Errorf("no credential store configured")
	}
	cfg.CredentialStore.SetPassphrase(passphrase)
	if err := cfg.CredentialStore.Load(cfg.DataDir()); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	return nil
}
