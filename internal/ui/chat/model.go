// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	chatstore "github.com/hvollmer/costchat/internal/chat"
	"github.com/hvollmer/costchat/internal/history"
	"github.com/hvollmer/costchat/internal/model"
	"github.com/hvollmer/costchat/internal/ui/styles"
)

// =============================================================================
// FOCUS
// =============================================================================

// focusArea identifies which pane receives keyboard input.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
	focusForm
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. All session state lives
// in the store; the model holds only presentation state.
type Model struct {
	store *chatstore.Store
	hist  *history.Store

	theme *styles.Theme
	keys  KeyMap

	// Dimensions
	width  int
	height int
	ready  bool

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Sidebar
	showSidebar   bool
	sessions      []history.Meta
	sessionCursor int

	// Pending interactive form
	form *formState

	// Focus and overlays
	focus    focusArea
	showHelp bool

	// Compact mode drops per-message timestamp lines
	compact bool

	// Transient status line
	statusMsg string
	statusSeq int

	// Where exports and saved documents land
	exportDir string
}

// Options configures a new chat model.
type Options struct {
	Store     *chatstore.Store
	History   *history.Store
	Theme     *styles.Theme
	ExportDir string
	Sidebar   bool
	Compact   bool
}

// New creates a chat model wired to the given session store.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}

	ti := textinput.New()
	ti.Placeholder = "Describe your renovation project..."
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return Model{
		store:       opts.Store,
		hist:        opts.History,
		theme:       theme,
		keys:        DefaultKeyMap(),
		input:       ti,
		spinner:     sp,
		showSidebar: opts.Sidebar,
		compact:     opts.Compact,
		exportDir:   opts.ExportDir,
	}
}

// Init starts the spinner, cursor blink, and the initial sidebar load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		loadSessionsCmd(m.hist),
	)
}

// lastAttachment returns the most recent document attachment in the
// transcript, whether carried by a document message or a cost estimate.
func (m *Model) lastAttachment() *model.DocumentAttachment {
	msgs := m.store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if att := msgs[i].DocumentAttachment; att != nil {
			return att
		}
		if att := msgs[i].CostEstimate.Attachment(); att != nil {
			return att
		}
	}
	return nil
}

// setStatus replaces the transient status line and schedules its expiry.
func (m *Model) setStatus(text string) tea.Cmd {
	m.statusMsg = text
	m.statusSeq++
	return expireStatusCmd(m.statusSeq)
}
