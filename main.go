package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"aide/chat"
	"aide/config"
	"aide/model"
	"aide/profile"
	"aide/provider"
	"aide/storage"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrPassphraseRequired) {
		err = promptPassphrase(cfg)
	}
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	store, err := storage.NewStore(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	gateway, native := buildBackends(cfg)
	if gateway == nil && native == nil {
		fmt.Println("No usable backend configured. Check your provider settings.")
		os.Exit(1)
	}

	session := resumeOrNewSession(store)

	history := chat.NewHistoryBuilder()
	if cfg.HistoryWindow > 0 {
		history.Window = cfg.HistoryWindow
	}

	engine := chat.NewEngine(session, chat.Options{
		Gateway:         gateway,
		Native:          native,
		ForceGateway:    cfg.ForceGateway,
		PreferStreaming: cfg.PreferStreaming,
		HasCredential:   cfg.HasNativeCredential(),
		History:         history,
		Context:         profile.NewStore(cfg.DataDir()),
		Sink:            store,
	})

	if err := store.SaveCurrentSessionID(session.ID); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("Warning: failed to save current session id: %v", err)
	}

	fmt.Printf("aide %s (%s) - session %q\n", Version, License, session.Title)
	fmt.Println("Type a message, or /help for commands.")

	repl(engine, store, cfg)
}

// buildBackends constructs the gateway backend and, when configured, the
// native backend for the user's chosen direct provider.
func buildBackends(cfg *config.Config) (gateway, native model.Backend) {
	gatewayModel := ""
	if p := cfg.Provider("gateway"); p != nil {
		gatewayModel = p.Model
	}
	gw, err := provider.NewBackend(provider.Config{
		Type:    provider.ProviderTypeGateway,
		BaseURL: cfg.GatewayURL,
		APIKey:  cfg.CredentialStore.Get("gateway"),
		Model:   gatewayModel,
	})
	if err != nil {
		fmt.Printf("Warning: gateway backend unavailable: %v\n", err)
	} else {
		gateway = gw
	}

	p := cfg.Provider(cfg.NativeProvider)
	if p == nil || !p.Enabled {
		return gateway, nil
	}

	nb, err := provider.NewBackend(provider.Config{
		Type:    provider.MapProviderIDToType(cfg.NativeProvider),
		BaseURL: p.BaseURL,
		APIKey:  cfg.CredentialStore.Get(cfg.NativeProvider),
		Model:   p.Model,
	})
	if err != nil {
		fmt.Printf("Warning: %s backend unavailable: %v\n", cfg.NativeProvider, err)
		return gateway, nil
	}

	return gateway, nb
}

// promptPassphrase asks for the SSH key passphrase and retries the credential
// load. The key guards credentials.enc, so startup cannot proceed without it.
func promptPassphrase(cfg *config.Config) error {
	reader := bufio.NewReader(os.Stdin)
	for attempt := 0; attempt < 3; attempt++ {
		fmt.Print("SSH key passphrase: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		passphrase := strings.TrimRight(line, "\r\n")
		if passphrase == "" {
			fmt.Println("Passphrase cannot be empty.")
			continue
		}
		if err := config.LoadCredentialsWithPassphrase(cfg, passphrase); err != nil {
			fmt.Println("Incorrect passphrase.")
			continue
		}
		return nil
	}
	return fmt.Errorf("too many failed passphrase attempts")
}

// resumeOrNewSession loads the last active session, falling back to a fresh
// one when nothing can be resumed.
func resumeOrNewSession(store *storage.Store) *model.Session {
	ctx := context.Background()
	if lastID, err := store.LoadCurrentSessionID(); err == nil && lastID != "" {
		if session, err := store.LoadSession(ctx, lastID); err == nil {
			return session
		}
	}
	return model.NewSession(model.SessionTypeChat)
}

func repl(engine *chat.Engine, store *storage.Store, cfg *config.Config) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(engine, store, cfg, line); quit {
				return
			}
			continue
		}

		sendAndStream(engine, line)
	}
}

// sendAndStream starts a turn and echoes the assistant's output as it
// arrives, by polling session snapshots until the turn settles.
func sendAndStream(engine *chat.Engine, text string) {
	ctx := context.Background()

	done, err := engine.Send(ctx, text, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	printed := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			printed = printAssistantTail(engine, printed)
			fmt.Println()
			if err := engine.LastError(); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			printTurnStats(engine)
			return
		case <-ticker.C:
			printed = printAssistantTail(engine, printed)
		}
	}
}

// printAssistantTail prints any assistant content beyond what was already
// written and returns the new high-water mark.
func printAssistantTail(engine *chat.Engine, printed int) int {
	session := engine.Snapshot()
	if len(session.Messages) == 0 {
		return printed
	}
	last := session.Messages[len(session.Messages)-1]
	if last.Role != model.RoleAssistant {
		return printed
	}
	if len(last.Content) > printed {
		fmt.Print(last.Content[printed:])
		return len(last.Content)
	}
	return printed
}

func printTurnStats(engine *chat.Engine) {
	session := engine.Snapshot()
	if len(session.Messages) == 0 {
		return
	}
	last := session.Messages[len(session.Messages)-1]
	if last.Role != model.RoleAssistant {
		return
	}
	if !last.Usage.Zero() {
		fmt.Printf("[%s/%s: %d tokens, %dms]\n", last.Provider, last.Model, last.Usage.TotalTokens, last.LatencyMS)
	}
	for _, tc := range last.ToolCalls {
		fmt.Printf("[tool call: %s(%s)]\n", tc.Name, tc.Arguments)
	}
}

// runCommand handles slash commands. Returns true when the REPL should exit.
func runCommand(engine *chat.Engine, store *storage.Store, cfg *config.Config, line string) bool {
	ctx := context.Background()
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /new               start a new session")
		fmt.Println("  /sessions          list saved sessions")
		fmt.Println("  /load <id>         switch to a saved session")
		fmt.Println("  /rename <title>    rename the current session")
		fmt.Println("  /delete <id>       delete a saved session")
		fmt.Println("  /search <query>    search messages across sessions")
		fmt.Println("  /models            list models on the active backend")
		fmt.Println("  /export [path]     export the current session as JSON")
		fmt.Println("  /key <provider> [api-key]   store or clear a provider API key")
		fmt.Println("  /provider <id> on|off       enable or disable a provider")
		fmt.Println("  /datadir <path>             change the data directory")
		fmt.Println("  /quit              exit")

	case "/new":
		session := model.NewSession(model.SessionTypeChat)
		if err := engine.SetSession(session); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if err := store.SaveCurrentSessionID(session.ID); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Println("Started a new session.")

	case "/sessions":
		sessions, err := store.ListSessions(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if len(sessions) == 0 {
			fmt.Println("No saved sessions.")
			return false
		}
		for _, s := range sessions {
			fmt.Printf("  %s  %-40q  %d messages  %s\n",
				s.ID, s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
		}

	case "/load":
		if arg == "" {
			fmt.Println("Usage: /load <id>")
			return false
		}
		session, err := store.LoadSession(ctx, arg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if err := engine.SetSession(session); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if err := store.SaveCurrentSessionID(session.ID); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Printf("Switched to %q (%d messages).\n", session.Title, len(session.Messages))

	case "/rename":
		if arg == "" {
			fmt.Println("Usage: /rename <title>")
			return false
		}
		session := engine.Snapshot()
		session.Title = arg
		if err := store.SaveSession(ctx, session); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if err := engine.SetSession(session); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		fmt.Printf("Renamed to %q.\n", arg)

	case "/delete":
		if arg == "" {
			fmt.Println("Usage: /delete <id>")
			return false
		}
		if arg == engine.Snapshot().ID {
			fmt.Println("Cannot delete the active session. Switch away first.")
			return false
		}
		if err := store.DeleteSession(ctx, arg); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		fmt.Println("Deleted.")

	case "/search":
		if arg == "" {
			fmt.Println("Usage: /search <query>")
			return false
		}
		matches, err := store.Search(ctx, arg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return false
		}
		for _, m := range matches {
			fmt.Printf("  [%s] %s: %s\n", m.SessionTitle, m.Role, m.Preview)
		}

	case "/models":
		backend := pickBackend(engine, cfg)
		if backend == nil {
			fmt.Println("No backend available.")
			return false
		}
		models, err := backend.ListModels(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		for _, m := range models {
			fmt.Printf("  %s (%s)\n", m.Name, m.Provider)
		}

	case "/export":
		session := engine.Snapshot()
		path := arg
		if path == "" {
			path = storage.GenerateExportPath(session.Title)
		}
		// Flush current in-memory state before exporting
		if err := store.SaveSession(ctx, session); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if err := store.ExportToJSON(ctx, session.ID, path); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		fmt.Printf("Exported to %s\n", path)

	case "/key":
		providerID, apiKey, _ := strings.Cut(arg, " ")
		providerID = strings.TrimSpace(providerID)
		apiKey = strings.TrimSpace(apiKey)
		if providerID == "" {
			fmt.Println("Usage: /key <provider> [api-key]   (no key clears it)")
			return false
		}
		if err := config.SetCredential(cfg, providerID, apiKey); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		if apiKey == "" {
			fmt.Printf("Cleared the %s API key.\n", providerID)
		} else {
			fmt.Printf("Stored the %s API key.\n", providerID)
		}
		fmt.Println("Strategy selection picks it up on the next start.")

	case "/provider":
		providerID, state, _ := strings.Cut(arg, " ")
		providerID = strings.TrimSpace(providerID)
		state = strings.TrimSpace(state)
		if providerID == "" || (state != "on" && state != "off") {
			fmt.Println("Usage: /provider <id> on|off")
			return false
		}
		if err := config.SetProviderEnabled(cfg.DataDir(), providerID, state == "on"); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		fmt.Printf("Provider %s is now %s. Takes effect on the next start.\n", providerID, state)

	case "/datadir":
		if arg == "" {
			fmt.Printf("Data directory: %s\n", cfg.DataDir())
			return false
		}
		if err := config.SetDataDirectory(arg); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		fmt.Printf("Data directory set to %s. Takes effect on the next start.\n", arg)

	default:
		fmt.Printf("Unknown command %q. Try /help.\n", cmd)
	}

	return false
}

// pickBackend resolves the backend the next send would use, for commands
// that talk to the provider directly.
func pickBackend(engine *chat.Engine, cfg *config.Config) model.Backend {
	strategy := chat.SelectStrategy(cfg.ForceGateway, cfg.HasNativeCredential(), cfg.PreferStreaming)
	return engine.Backend(strategy)
}
