// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the costchat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Container lipgloss.Style

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLE STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ThinkingBubble  lipgloss.Style
	ProgressNotice  lipgloss.Style
	MessageMeta     lipgloss.Style

	// ==========================================================================
	// COST ESTIMATE STYLES
	// ==========================================================================

	EstimateBox     lipgloss.Style
	EstimateTitle   lipgloss.Style
	EstimateTotal   lipgloss.Style
	EstimateLabel   lipgloss.Style
	EstimateRow     lipgloss.Style
	AttachmentLine  lipgloss.Style
	ConfidenceBadge lipgloss.Style

	// ==========================================================================
	// FORM STYLES
	// ==========================================================================

	FormBox         lipgloss.Style
	FormTitle       lipgloss.Style
	FormLabel       lipgloss.Style
	FormLabelActive lipgloss.Style
	FormHint        lipgloss.Style

	// ==========================================================================
	// SUGGESTION STYLES
	// ==========================================================================

	SuggestionChip lipgloss.Style
	SuggestionKey  lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// SESSION SIDEBAR STYLES
	// ==========================================================================

	Sidebar             lipgloss.Style
	SidebarTitle        lipgloss.Style
	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style
	SessionMeta         lipgloss.Style

	// ==========================================================================
	// SPINNER AND ERROR STYLES
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ErrorBox     lipgloss.Style
	ErrorTitle   lipgloss.Style
}

// NewTheme creates a new theme, detecting terminal capabilities.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// NewThemeWithBackground creates a theme with a forced background mode,
// bypassing terminal detection. Used when the configured theme is explicit.
func NewThemeWithBackground(dark bool) *Theme {
	lipgloss.SetHasDarkBackground(dark)

	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       dark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// App container
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 2).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 2).
		MarginRight(4)

	t.ThinkingBubble = lipgloss.NewStyle().
		Foreground(ThinkingBubbleFg).
		Italic(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(ThinkingBubbleBorder).
		PaddingLeft(2).
		MarginRight(4)

	t.ProgressNotice = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true).
		PaddingLeft(2)

	t.MessageMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Cost estimate
	t.EstimateBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Emerald).
		Padding(0, 2).
		MarginRight(4)

	t.EstimateTitle = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.EstimateTotal = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Bold(true)

	t.EstimateLabel = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.EstimateRow = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.AttachmentLine = lipgloss.NewStyle().
		Foreground(Cyan)

	t.ConfidenceBadge = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Emerald).
		Padding(0, 1)

	// Form
	t.FormBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(1, 2)

	t.FormTitle = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.FormLabel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.FormLabelActive = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.FormHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Suggestions
	t.SuggestionChip = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SuggestionKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Session sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.SessionItemSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.SessionMeta = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Spinner and errors
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ErrorBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Rose).
		Padding(0, 2)

	t.ErrorTitle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
