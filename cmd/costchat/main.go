// costchat - terminal client for a streaming renovation cost assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	chatstore "github.com/hvollmer/costchat/internal/chat"
	"github.com/hvollmer/costchat/internal/config"
	"github.com/hvollmer/costchat/internal/history"
	"github.com/hvollmer/costchat/internal/server"
	"github.com/hvollmer/costchat/internal/stream"
	chatui "github.com/hvollmer/costchat/internal/ui/chat"
	"github.com/hvollmer/costchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "costchat: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobal(cfg)

	args := os.Args[1:]
	if len(args) == 0 {
		runTUI(cfg)
		return
	}

	switch args[0] {
	case "serve":
		runServe(cfg)
	case "sessions":
		runSessions(cfg, args[1:])
	case "version", "--version", "-v":
		fmt.Printf("costchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "costchat: unknown command %q\n\n", args[0])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`costchat - streaming renovation cost assistant

Usage:
  costchat                   start the chat TUI
  costchat serve             run the relay server
  costchat sessions list     list stored sessions
  costchat sessions show ID  print a stored session
  costchat sessions export ID [--json]
                             export a session to a file
  costchat sessions delete ID
                             delete a stored session
  costchat sessions clear    delete all stored sessions
  costchat version           print version information
`)
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(cfg *config.Config) {
	hist := openHistory(cfg)
	if hist != nil {
		defer hist.Close()
	}

	client := stream.NewClient(&stream.Config{
		StreamURL:      cfg.Backend.StreamURL,
		ConnectTimeout: time.Duration(cfg.Backend.ConnectTimeoutSecs) * time.Second,
	})

	store := chatstore.New(chatstore.Options{
		Client:      client,
		History:     hist,
		UserID:      cfg.Chat.UserID,
		RevealDelay: time.Duration(cfg.Chat.RevealDelayMs) * time.Millisecond,
	})

	theme := styles.NewThemeWithBackground(cfg.UI.Theme != "light")

	m := chatui.New(chatui.Options{
		Store:     store,
		History:   hist,
		Theme:     theme,
		ExportDir: cfg.Chat.ExportDir,
		Sidebar:   cfg.UI.ShowSidebar,
		Compact:   cfg.UI.CompactMode,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)

	// Store notifications arrive on the store's goroutines; bridge them
	// into the program's update loop.
	unsubscribe := store.Subscribe(func(c chatstore.Change) {
		p.Send(chatui.StoreChangedMsg{Change: c})
	})
	defer unsubscribe()

	// Pick up config edits while the TUI runs.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, err := config.NewWatcher(path, 500*time.Millisecond, func(*config.Config) {
			p.Send(chatui.ConfigReloadedMsg{})
		}); err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "costchat: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// RELAY SERVER
// =============================================================================

func runServe(cfg *config.Config) {
	srv := server.NewServer(&server.Config{
		Listen:          cfg.Server.Listen,
		UpstreamURL:     cfg.Server.UpstreamURL,
		APIKey:          cfg.Server.APIKey,
		RateLimitPerMin: cfg.Server.RateLimitPerMin,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	if err := srv.Start(); err != nil {
		log.Fatalf("costchat serve: %v", err)
	}
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

func runSessions(cfg *config.Config, args []string) {
	hist := openHistory(cfg)
	if hist == nil {
		fmt.Fprintln(os.Stderr, "costchat: could not open session history")
		os.Exit(1)
	}
	defer hist.Close()

	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		handleSessionList(hist)
	case "show":
		requireID(args)
		handleSessionShow(hist, args[1])
	case "export":
		requireID(args)
		asJSON := len(args) > 2 && args[2] == "--json"
		handleSessionExport(cfg, hist, args[1], asJSON)
	case "delete":
		requireID(args)
		if err := hist.Delete(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "costchat: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("deleted", args[1])
	case "clear":
		if err := hist.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "costchat: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("all sessions deleted")
	default:
		fmt.Fprintf(os.Stderr, "costchat: unknown sessions command %q\n", args[0])
		os.Exit(1)
	}
}

func requireID(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "costchat: session id required")
		os.Exit(1)
	}
}

func handleSessionList(hist *history.Store) {
	metas, err := hist.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "costchat: %v\n", err)
		os.Exit(1)
	}
	if len(metas) == 0 {
		fmt.Println("no stored sessions")
		return
	}
	for _, meta := range metas {
		fmt.Printf("%s  %s  %3d msgs  %s\n",
			meta.ID[:8],
			meta.UpdatedAt.Format("2006-01-02 15:04"),
			meta.MessageCount,
			meta.Preview)
	}
}

func handleSessionShow(hist *history.Store, id string) {
	rec, err := hist.Load(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "costchat: %v\n", err)
		os.Exit(1)
	}

	var md string
	for _, msg := range rec.Messages {
		md += fmt.Sprintf("### %s\n\n%s\n\n", msg.Role.DisplayName(), msg.Content)
	}
	fmt.Print(renderMarkdown(md))
}

func handleSessionExport(cfg *config.Config, hist *history.Store, id string, asJSON bool) {
	rec, err := hist.Load(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "costchat: %v\n", err)
		os.Exit(1)
	}

	opts := history.DefaultExportOptions()
	if cfg.Chat.ExportDir != "" {
		opts.OutputDir = cfg.Chat.ExportDir
	}

	var path string
	if asJSON {
		path, err = history.ExportJSON(rec, opts)
	} else {
		path, err = history.ExportMarkdown(rec, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "costchat: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("exported to", path)
}

// =============================================================================
// HELPERS
// =============================================================================

// openHistory opens the session store, honoring a configured override path.
// A broken history is not fatal for the TUI; chat still works without it.
func openHistory(cfg *config.Config) *history.Store {
	var (
		hist *history.Store
		err  error
	)
	if cfg.Chat.HistoryPath != "" {
		hist, err = history.NewStoreWithPath(cfg.Chat.HistoryPath)
	} else {
		hist, err = history.NewStore()
	}
	if err != nil {
		log.Printf("costchat: session history unavailable: %v", err)
		return nil
	}
	if cfg.Chat.MaxSessions > 0 {
		hist.MaxSessions = cfg.Chat.MaxSessions
	}
	return hist
}

// renderMarkdown renders markdown for terminal display, falling back to the
// raw text when stdout is not a TTY or the renderer cannot initialize.
func renderMarkdown(content string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return content
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
