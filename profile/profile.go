// Package profile loads the user profile that seeds the assistant's system
// prompt. The profile lives in a TOML file under the data directory and is
// re-read on each turn so edits take effect without a restart.
package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"aide/config"
)

// Profile holds the user-supplied facts injected into the system prompt.
type Profile struct {
	Name     string   `toml:"name"`
	Timezone string   `toml:"timezone"`
	About    string   `toml:"about"`
	Notes    []string `toml:"notes"`
}

// Store reads the profile file on demand. It implements the engine's context
// provider contract.
type Store struct {
	path string
}

// NewStore returns a store backed by profile.toml in dataDir.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, "profile.toml")}
}

// Path returns the profile file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the profile from disk. A missing file yields an empty profile.
func (s *Store) Load() (*Profile, error) {
	if !config.FileExists(s.path) {
		return &Profile{}, nil
	}

	var p Profile
	if _, err := toml.DecodeFile(s.path, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &p, nil
}

// Save writes the profile to disk with 0600 permissions.
func (s *Store) Save(p *Profile) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create profile file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return nil
}

// UserContext renders the profile as prompt text. Errors are swallowed here
// on purpose: a broken profile file should degrade the prompt, not fail the
// turn. The error is logged when debug logging is on.
func (s *Store) UserContext(ctx context.Context) string {
	p, err := s.Load()
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Profile] load failed: %v", err)
		}
		return ""
	}
	return p.Render()
}

// Render formats the profile as plain text for prompt injection. Returns ""
// when nothing is filled in.
func (p *Profile) Render() string {
	var b strings.Builder

	if p.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", p.Name)
	}
	if p.Timezone != "" {
		fmt.Fprintf(&b, "Timezone: %s\n", p.Timezone)
	}
	if p.About != "" {
		fmt.Fprintf(&b, "About: %s\n", p.About)
	}
	for _, n := range p.Notes {
		if n = strings.TrimSpace(n); n != "" {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
