// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hvollmer/costchat/internal/model"
	"github.com/hvollmer/costchat/internal/ui/styles"
	"github.com/hvollmer/costchat/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

// chromeHeight is the fixed vertical space around the transcript viewport:
// header, input border, input line, status bar.
const chromeHeight = 4

func (m *Model) sidebarWidth() int {
	if !m.showSidebar {
		return 0
	}
	if m.theme.GetLayoutMode() == styles.LayoutWide {
		return 32
	}
	return 26
}

func (m *Model) transcriptWidth() int {
	return max(20, m.width-m.sidebarWidth())
}

func (m *Model) transcriptHeight() int {
	return max(3, m.height-chromeHeight-m.formHeight())
}

func (m *Model) formHeight() int {
	if m.form == nil {
		return 0
	}
	// border + title + one line per field + hint/help line
	return len(m.form.spec.Fields) + 5
}

// resizeViewport re-applies the layout after the form opens or closes.
func (m *Model) resizeViewport() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.transcriptWidth()
	m.viewport.Height = m.transcriptHeight()
}

// refreshTranscript re-renders the transcript into the viewport, pinned to
// the newest message.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// =============================================================================
// TOP-LEVEL VIEW
// =============================================================================

// View renders the complete chat interface.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	body := m.viewport.View()
	if m.showSidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}
	sections = append(sections, body)

	if m.form != nil {
		sections = append(sections, m.renderForm())
	}
	sections = append(sections, m.renderInput())
	sections = append(sections, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("costchat")
	subtitle := m.theme.HeaderSubtitle.Render("renovation cost assistant")
	line := title + " " + subtitle

	id := m.store.SessionID()
	if len(id) > 8 {
		id = id[:8]
	}
	session := m.theme.MessageMeta.Render("session " + id)

	gap := m.width - lipgloss.Width(line) - lipgloss.Width(session) - 2
	if gap < 1 {
		return line
	}
	return " " + line + strings.Repeat(" ", gap) + session
}

func (m *Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m *Model) renderStatusBar() string {
	var left string
	if m.store.IsLoading() {
		left = m.spinner.View() + m.theme.ThinkingText.Render(" analyzing...")
	} else {
		left = m.theme.ShortcutDesc.Render("ready")
	}

	right := m.statusMsg
	if right == "" {
		var parts []string
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			parts = append(parts,
				m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
		right = strings.Join(parts, "  ")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every message plus the trailing suggestion block.
func (m *Model) renderTranscript() string {
	msgs := m.store.Messages()
	if len(msgs) == 0 {
		return m.renderWelcome()
	}

	var blocks []string
	for _, msg := range msgs {
		blocks = append(blocks, m.renderMessage(msg))
	}
	if s := m.renderSuggestions(); s != "" {
		blocks = append(blocks, s)
	}
	return strings.Join(blocks, "\n")
}

func (m *Model) renderWelcome() string {
	return m.theme.Container.Render(
		m.theme.HeaderTitle.Render("Welcome to costchat") + "\n\n" +
			m.theme.ThinkingText.Render("Describe your renovation project to get a cost estimate.\n") +
			m.theme.ShortcutDesc.Render("Example: \"Renovate a 120 sqm apartment, mid quality\""))
}

// renderMessage picks a style per message kind.
func (m *Model) renderMessage(msg *model.Message) string {
	w := max(16, m.transcriptWidth()-10)
	ts := m.theme.MessageMeta.Render(msg.Timestamp.Format("15:04"))
	if m.compact {
		ts = ""
	}

	switch {
	case msg.Role == model.RoleUser && msg.MediaType == model.MediaAudio:
		content := "🎤 Voice message\n" + msg.Transcript
		return ts + " " + msg.Role.DisplayName() + "\n" +
			m.theme.UserBubble.Width(w).Render(content)

	case msg.Role == model.RoleUser:
		return ts + " " + msg.Role.DisplayName() + "\n" +
			m.theme.UserBubble.Width(w).Render(msg.Content)

	case msg.IsThinking || strings.HasPrefix(msg.Content, "💭"):
		return m.theme.ThinkingBubble.Width(w).Render(msg.Content)

	case msg.DocumentAttachment != nil:
		return m.renderAttachment(msg.DocumentAttachment)

	case msg.CostEstimate != nil:
		out := ""
		if msg.Content != "" {
			out = ts + " " + msg.Role.DisplayName() + "\n" +
				m.theme.AssistantBubble.Width(w).Render(msg.Content) + "\n"
		}
		return out + m.renderEstimate(msg.CostEstimate, w)

	case strings.HasPrefix(msg.Content, "⌛"):
		return m.theme.ProgressNotice.Render(msg.Content)

	default:
		return ts + " " + msg.Role.DisplayName() + "\n" +
			m.theme.AssistantBubble.Width(w).Render(msg.Content)
	}
}

func (m *Model) renderAttachment(att *model.DocumentAttachment) string {
	size := ""
	if att.Size > 0 {
		size = fmt.Sprintf(" (%d KB)", att.Size/1024)
	}
	line := fmt.Sprintf("📄 %s%s", att.Filename, size)
	hint := m.theme.FormHint.Render("  press " + m.keys.SaveDoc.Help().Key + " to save")
	return m.theme.AttachmentLine.Render(line) + hint
}

// renderEstimate formats a cost estimate as a bordered summary block.
func (m *Model) renderEstimate(est *model.CostEstimate, w int) string {
	var b strings.Builder

	b.WriteString(m.theme.EstimateTitle.Render("Cost estimate"))
	if est.ConfidenceLevel != "" {
		b.WriteString(" " + m.theme.ConfidenceBadge.Render(est.ConfidenceLevel))
	}
	b.WriteString("\n")

	b.WriteString(m.theme.EstimateLabel.Render("Total   ") +
		m.theme.EstimateTotal.Render(util.FormatEUR(est.TotalCostEur)) + "\n")
	if est.CostPerSqm > 0 {
		b.WriteString(m.theme.EstimateLabel.Render("Per m²  ") +
			m.theme.EstimateRow.Render(util.FormatEUR(est.CostPerSqm)) + "\n")
	}

	if len(est.ComponentBreakdown) > 0 {
		b.WriteString(m.theme.EstimateLabel.Render("Components") + "\n")
		for i, c := range est.ComponentBreakdown {
			if i >= 6 {
				b.WriteString(m.theme.EstimateLabel.Render(
					fmt.Sprintf("  ... and %d more", len(est.ComponentBreakdown)-i)) + "\n")
				break
			}
			b.WriteString(m.theme.EstimateRow.Render(
				fmt.Sprintf("  %-24s %s",
					util.TruncateWidth(c.ComponentName, 24),
					util.FormatEUR(c.CostEur))) + "\n")
		}
	}

	if est.IsMultiQuality && est.MultiQualityData != nil {
		b.WriteString(m.theme.EstimateLabel.Render("Quality levels") + "\n")
		names := make([]string, 0, len(est.MultiQualityData.QualityCosts))
		for name := range est.MultiQualityData.QualityCosts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			q := est.MultiQualityData.QualityCosts[name]
			b.WriteString(m.theme.EstimateRow.Render(
				fmt.Sprintf("  %-12s %s", name, util.FormatEUR(q.TotalCostEur))) + "\n")
		}
	}

	return m.theme.EstimateBox.Width(w).Render(strings.TrimRight(b.String(), "\n"))
}

// renderSuggestions renders the follow-up question chips, numbered so they
// can be fired with alt+1..9.
func (m *Model) renderSuggestions() string {
	suggestions := m.store.SuggestedQuestions()
	if len(suggestions) == 0 {
		return ""
	}

	w := max(16, m.transcriptWidth()-12)
	var b strings.Builder
	b.WriteString(m.theme.FormHint.Render("Suggested questions") + "\n")
	for i, q := range suggestions {
		if i >= 9 {
			break
		}
		b.WriteString(m.theme.SuggestionKey.Render(fmt.Sprintf("alt+%d", i+1)) + " " +
			m.theme.SuggestionChip.Render(util.TruncateWidth(q, w)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m *Model) renderSidebar() string {
	w := m.sidebarWidth() - 3
	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Sessions") + "\n")

	if len(m.sessions) == 0 {
		b.WriteString(m.theme.SessionMeta.Render("no saved sessions"))
	}
	for i, meta := range m.sessions {
		style := m.theme.SessionItem
		if i == m.sessionCursor && m.focus == focusSidebar {
			style = m.theme.SessionItemSelected
		}
		b.WriteString(style.Render(util.TruncateWidth(meta.Preview, w-2)) + "\n")
		b.WriteString(m.theme.SessionMeta.Render(fmt.Sprintf(" %d msgs · %s",
			meta.MessageCount, meta.UpdatedAt.Format("Jan 2 15:04"))) + "\n")
	}

	return m.theme.Sidebar.
		Width(m.sidebarWidth() - 1).
		Height(m.transcriptHeight()).
		Render(strings.TrimRight(b.String(), "\n"))
}

// =============================================================================
// FORM
// =============================================================================

func (m *Model) renderForm() string {
	f := m.form
	var b strings.Builder

	title := f.spec.Title
	if title == "" {
		title = "Project details"
	}
	b.WriteString(m.theme.FormTitle.Render(title) + "\n")

	for i, field := range f.spec.Fields {
		label := field.Label
		if field.Required {
			label += " *"
		}
		labelStyle := m.theme.FormLabel
		if i == f.cursor {
			labelStyle = m.theme.FormLabelActive
		}

		var value string
		switch {
		case isSelect(field):
			value = "◂ " + f.values[i] + " ▸"
			if i != f.cursor {
				value = f.values[i]
			}
		case i == f.cursor:
			value = f.input.View()
		default:
			value = f.values[i]
		}
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", label)), value))
	}

	hint := "enter next · tab/shift+tab move · esc dismiss"
	if f.onLastField() {
		submit := f.spec.SubmitLabel
		if submit == "" {
			submit = "submit"
		}
		hint = "enter " + submit + " · esc dismiss"
	}
	if f.hint != "" {
		hint = f.hint
	}
	b.WriteString(m.theme.FormHint.Render(hint))

	return m.theme.FormBox.Width(m.width - 2).Render(b.String())
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

func (m *Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("Keyboard shortcuts") + "\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %s  %s\n",
				m.theme.ShortcutKey.Render(fmt.Sprintf("%-10s", h.Key)),
				m.theme.ShortcutDesc.Render(h.Desc)))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.theme.FormHint.Render("press any key to close"))
	return m.theme.Container.Render(b.String())
}
