// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme returned nil")
	}

	// Spot-check that styles were initialized and render without panicking.
	if got := theme.HeaderTitle.Render("costchat"); !strings.Contains(got, "costchat") {
		t.Errorf("HeaderTitle.Render dropped content: %q", got)
	}
	if got := theme.UserBubble.Render("hello"); !strings.Contains(got, "hello") {
		t.Errorf("UserBubble.Render dropped content: %q", got)
	}
	if got := theme.ErrorTitle.Render("boom"); !strings.Contains(got, "boom") {
		t.Errorf("ErrorTitle.Render dropped content: %q", got)
	}
}

func TestNewThemeWithBackground(t *testing.T) {
	dark := NewThemeWithBackground(true)
	if !dark.IsDark {
		t.Error("expected IsDark=true")
	}

	light := NewThemeWithBackground(false)
	if light.IsDark {
		t.Error("expected IsDark=false")
	}
}

func TestGetLayoutMode(t *testing.T) {
	testCases := []struct {
		width    int
		expected LayoutMode
	}{
		{0, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}

	theme := NewTheme()
	for _, tc := range testCases {
		theme.SetSize(tc.width, 24)
		if got := theme.GetLayoutMode(); got != tc.expected {
			t.Errorf("GetLayoutMode at width %d = %v, want %v", tc.width, got, tc.expected)
		}
	}
}

func TestRenderStatusHelpers(t *testing.T) {
	if got := RenderError("failed"); !strings.Contains(got, "[X]") || !strings.Contains(got, "failed") {
		t.Errorf("RenderError = %q", got)
	}
	if got := RenderSuccess("done"); !strings.Contains(got, "[OK]") || !strings.Contains(got, "done") {
		t.Errorf("RenderSuccess = %q", got)
	}
}
