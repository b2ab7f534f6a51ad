// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the costchat TUI.

The package is built on Lip Gloss adaptive colors so every style renders
correctly on both light and dark terminal backgrounds without manual
configuration.

# Key Components

  - Theme: all styled components for the application, created once at
    startup via NewTheme (terminal detection) or NewThemeWithBackground
    (explicit configuration)
  - Color palette: package-level AdaptiveColor values shared by the theme
    and any ad hoc rendering
  - StatusIndicators: ASCII shape indicators used alongside colors so
    status states stay readable for colorblind users

# Usage

	theme := styles.NewTheme()
	header := theme.Header.Render("costchat")

Layout decisions key off Theme.GetLayoutMode, which buckets the current
terminal width into narrow, medium, and wide modes.
*/
package styles
