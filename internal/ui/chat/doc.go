// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the main chat view component for the costchat TUI.

The package implements a complete terminal chat interface on the Bubble Tea
framework. All conversational state lives in the session store
(internal/chat); this package is a pure presentation layer that renders the
store and translates key presses into store operations.

# Key Components

## Model (model.go)

The Model struct is the central Bubble Tea model:
  - transcript viewport with message bubbles per role
  - text input for queries
  - session sidebar fed by the history store
  - interactive form overlay for server-requested project details
  - suggested question chips fired with alt+1..9

## Update Loop (update.go)

Handles Bubble Tea messages: keyboard input routed by focus area, window
resizing, and StoreChangedMsg notifications forwarded from the session
store's listener.

## View Rendering (view.go)

Renders the header, transcript (user/assistant/thinking bubbles, progress
notices, cost estimate blocks, document attachment lines), sidebar,
form, input area, and status bar.

# Store Integration

The session store notifies listeners from its own goroutines. The caller
bridges those notifications into the program:

	unsubscribe := store.Subscribe(func(c chatstore.Change) {
		p.Send(chat.StoreChangedMsg{Change: c})
	})
	defer unsubscribe()

# Usage

	m := chat.New(chat.Options{Store: store, History: hist})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
*/
package chat
