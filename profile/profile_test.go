package profile

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestLoadMissingFileYieldsEmptyProfile(t *testing.T) {
	store := NewStore(t.TempDir())

	p, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Render() != "" {
		t.Errorf("empty profile rendered %q", p.Render())
	}
	if got := store.UserContext(context.Background()); got != "" {
		t.Errorf("UserContext = %q, want empty", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	in := &Profile{
		Name:     "Sam",
		Timezone: "Europe/Lisbon",
		About:    "Software engineer",
		Notes:    []string{"prefers metric units", "  ", "vegetarian"},
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Name != "Sam" || out.Timezone != "Europe/Lisbon" {
		t.Errorf("loaded = %+v", out)
	}
}

func TestRender(t *testing.T) {
	p := &Profile{
		Name:  "Sam",
		Notes: []string{"prefers metric units", "   "},
	}

	rendered := p.Render()

	if !strings.Contains(rendered, "Name: Sam") {
		t.Errorf("rendered = %q", rendered)
	}
	if !strings.Contains(rendered, "- prefers metric units") {
		t.Errorf("rendered = %q", rendered)
	}
	// Blank notes are dropped
	if strings.Contains(rendered, "-  ") || strings.HasSuffix(rendered, "\n") {
		t.Errorf("rendered has blank note or trailing newline: %q", rendered)
	}
}

func TestUserContextSwallowsParseErrors(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := os.WriteFile(store.Path(), []byte("not [ valid toml"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if got := store.UserContext(context.Background()); got != "" {
		t.Errorf("UserContext = %q, want empty on parse error", got)
	}
}
