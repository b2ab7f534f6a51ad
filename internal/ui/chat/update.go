// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	chatstore "github.com/hvollmer/costchat/internal/chat"
	"github.com/hvollmer/costchat/internal/ui/styles"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update handles all Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.onResize(msg)

	case tea.KeyMsg:
		return m.onKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StoreChangedMsg:
		return m.onStoreChanged(msg.Change)

	case ConfigReloadedMsg:
		return m, m.setStatus("configuration reloaded")

	case sessionsLoadedMsg:
		if msg.err != nil {
			return m, m.setStatus("loading sessions failed: " + msg.err.Error())
		}
		m.sessions = msg.metas
		if m.sessionCursor >= len(m.sessions) {
			m.sessionCursor = max(0, len(m.sessions)-1)
		}
		return m, nil

	case sessionOpenedMsg:
		if msg.err != nil {
			return m, m.setStatus("open session: " + msg.err.Error())
		}
		m.focus = focusInput
		m.input.Focus()
		m.refreshTranscript()
		return m, nil

	case sessionDeletedMsg:
		if msg.err != nil {
			return m, m.setStatus("delete session: " + msg.err.Error())
		}
		return m, loadSessionsCmd(m.hist)

	case exportDoneMsg:
		if msg.err != nil {
			return m, m.setStatus("export failed: " + msg.err.Error())
		}
		return m, m.setStatus("exported to " + msg.path)

	case attachmentSavedMsg:
		if msg.err != nil {
			return m, m.setStatus("save document: " + msg.err.Error())
		}
		return m, m.setStatus("document saved to " + msg.path)

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg = ""
		}
		return m, nil
	}

	return m, nil
}

// onResize recalculates the layout for a new terminal size.
func (m Model) onResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// Narrow terminals drop the sidebar entirely.
	if m.theme.GetLayoutMode() == styles.LayoutNarrow {
		m.showSidebar = false
	}

	contentWidth := m.transcriptWidth()
	contentHeight := m.transcriptHeight()
	if !m.ready {
		m.viewport = viewport.New(contentWidth, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = contentHeight
	}
	m.input.Width = max(10, m.width-6)

	m.refreshTranscript()
	return m, nil
}

// onStoreChanged reacts to a session store notification.
func (m Model) onStoreChanged(change chatstore.Change) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch change {
	case chatstore.ChangeMessages:
		m.refreshTranscript()

	case chatstore.ChangeState:
		form := m.store.FormPayload()
		switch {
		case form != nil && m.form == nil:
			m.form = newFormState(form, m.theme)
			m.focus = focusForm
			m.input.Blur()
		case form == nil && m.form != nil:
			m.form = nil
			m.focus = focusInput
			m.input.Focus()
		}
		m.resizeViewport()
		m.refreshTranscript()
		if m.store.IsLoading() {
			cmds = append(cmds, m.spinner.Tick)
		}

	case chatstore.ChangeHistory:
		cmds = append(cmds, loadSessionsCmd(m.hist))
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Quit always wins.
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = true
		return m, nil
	}

	switch m.focus {
	case focusForm:
		return m.onFormKey(msg)
	case focusSidebar:
		return m.onSidebarKey(msg)
	default:
		return m.onInputKey(msg)
	}
}

// onInputKey handles keys while the message input has focus.
func (m Model) onInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.store.SendMessage(text)
		return m, m.spinner.Tick

	case key.Matches(msg, m.keys.Cancel):
		if m.store.IsLoading() {
			m.store.CancelOngoingRequest()
			return m, m.setStatus("request cancelled")
		}
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		m.store.InitializeNewSession()
		return m, loadSessionsCmd(m.hist)

	case key.Matches(msg, m.keys.Sidebar):
		if m.theme.GetLayoutMode() == styles.LayoutNarrow {
			return m, m.setStatus("terminal too narrow for the session list")
		}
		m.showSidebar = !m.showSidebar
		if m.showSidebar {
			m.focus = focusSidebar
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m.onResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})

	case key.Matches(msg, m.keys.Export):
		return m, exportSessionCmd(m.store, m.exportDir)

	case key.Matches(msg, m.keys.SaveDoc):
		att := m.lastAttachment()
		if att == nil {
			return m, m.setStatus("no document in this session")
		}
		return m, saveAttachmentCmd(att, m.exportDir)

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down),
		key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// Alt+1..9 sends the corresponding suggested question.
	if q, ok := m.suggestionForKey(msg.String()); ok {
		m.store.SendMessage(q)
		return m, m.spinner.Tick
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// suggestionForKey maps alt+N to the Nth suggested question.
func (m *Model) suggestionForKey(keyStr string) (string, bool) {
	if !strings.HasPrefix(keyStr, "alt+") || len(keyStr) != 5 {
		return "", false
	}
	n := int(keyStr[4] - '0')
	suggestions := m.store.SuggestedQuestions()
	if n < 1 || n > len(suggestions) || n > 9 {
		return "", false
	}
	return suggestions[n-1], true
}

// onSidebarKey handles keys while the session list has focus.
func (m Model) onSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sessionCursor > 0 {
			m.sessionCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.sessionCursor < len(m.sessions)-1 {
			m.sessionCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.sessionCursor < len(m.sessions) {
			return m, openSessionCmd(m.store, m.sessions[m.sessionCursor].ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Sidebar):
		m.focus = focusInput
		m.input.Focus()
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		m.store.InitializeNewSession()
		m.focus = focusInput
		m.input.Focus()
		return m, loadSessionsCmd(m.hist)
	}

	if msg.String() == "d" && m.sessionCursor < len(m.sessions) {
		return m, deleteSessionCmd(m.hist, m.sessions[m.sessionCursor].ID)
	}
	return m, nil
}

// onFormKey handles keys while the interactive form has focus.
func (m Model) onFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form

	switch msg.String() {
	case "esc":
		m.form = nil
		m.focus = focusInput
		m.input.Focus()
		m.resizeViewport()
		m.store.DismissForm()
		return m, nil

	case "tab", "down":
		f.next()
		return m, nil

	case "shift+tab", "up":
		f.prev()
		return m, nil

	case "left":
		f.cycleOption(-1)
		return m, nil

	case "right":
		f.cycleOption(1)
		return m, nil

	case "enter":
		if !f.onLastField() {
			f.next()
			return m, nil
		}
		f.leaveField()
		if label := f.missingRequired(); label != "" {
			f.hint = label + " is required"
			return m, nil
		}
		values := f.collect()
		m.form = nil
		m.focus = focusInput
		m.input.Focus()
		m.resizeViewport()
		m.store.SubmitForm(values)
		return m, m.spinner.Tick
	}

	return m, f.update(msg)
}
