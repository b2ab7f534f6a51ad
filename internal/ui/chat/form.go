// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file holds the interactive form overlay used when the backend asks
// for structured project details mid-turn.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hvollmer/costchat/internal/stream"
	"github.com/hvollmer/costchat/internal/ui/styles"
)

// =============================================================================
// FORM STATE
// =============================================================================

// formState tracks the user's progress through a server-supplied form.
// Text fields share a single textinput; select fields cycle their options
// with the left/right keys.
type formState struct {
	spec     *stream.FormSpec
	input    textinput.Model
	values   []string
	selected []int // option index per field, -1 for free-text fields
	cursor   int
	hint     string
}

// newFormState builds editing state for a form specification.
func newFormState(spec *stream.FormSpec, theme *styles.Theme) *formState {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.CharLimit = 500

	f := &formState{
		spec:     spec,
		input:    ti,
		values:   make([]string, len(spec.Fields)),
		selected: make([]int, len(spec.Fields)),
	}
	for i, field := range spec.Fields {
		if isSelect(field) {
			f.selected[i] = 0
			f.values[i] = field.Options[0]
		} else {
			f.selected[i] = -1
		}
	}
	f.enterField()
	return f
}

func isSelect(field stream.FormField) bool {
	return len(field.Options) > 0
}

// empty reports a form with no fields. Such a form still renders its title
// and can be submitted or dismissed, but has nothing to edit.
func (f *formState) empty() bool {
	return len(f.spec.Fields) == 0
}

// field returns the field under the cursor. Callers must check empty first.
func (f *formState) field() stream.FormField {
	return f.spec.Fields[f.cursor]
}

// enterField loads the current field into the shared text input.
func (f *formState) enterField() {
	if f.empty() {
		f.input.Blur()
		return
	}
	field := f.field()
	if isSelect(field) {
		f.input.Blur()
		return
	}
	f.input.Placeholder = field.Placeholder
	f.input.SetValue(f.values[f.cursor])
	f.input.CursorEnd()
	f.input.Focus()
}

// leaveField stashes the current input value before moving the cursor.
func (f *formState) leaveField() {
	if f.empty() {
		return
	}
	if !isSelect(f.field()) {
		f.values[f.cursor] = strings.TrimSpace(f.input.Value())
	}
}

func (f *formState) next() {
	f.leaveField()
	if f.cursor < len(f.spec.Fields)-1 {
		f.cursor++
		f.enterField()
	}
}

func (f *formState) prev() {
	f.leaveField()
	if f.cursor > 0 {
		f.cursor--
		f.enterField()
	}
}

// cycleOption steps a select field's chosen option by delta.
func (f *formState) cycleOption(delta int) {
	if f.empty() {
		return
	}
	field := f.field()
	if !isSelect(field) {
		return
	}
	n := len(field.Options)
	f.selected[f.cursor] = (f.selected[f.cursor] + delta + n) % n
	f.values[f.cursor] = field.Options[f.selected[f.cursor]]
}

// onLastField reports whether the cursor sits on the final field. A form
// with no fields is trivially on its last field, so enter submits it.
func (f *formState) onLastField() bool {
	return f.empty() || f.cursor == len(f.spec.Fields)-1
}

// missingRequired returns the label of the first required field without a
// value, or "" when the form is complete.
func (f *formState) missingRequired() string {
	for i, field := range f.spec.Fields {
		if field.Required && strings.TrimSpace(f.values[i]) == "" {
			return field.Label
		}
	}
	return ""
}

// collect returns the answers keyed by field name.
func (f *formState) collect() map[string]string {
	f.leaveField()
	values := make(map[string]string, len(f.spec.Fields))
	for i, field := range f.spec.Fields {
		values[field.Name] = f.values[i]
	}
	return values
}

// update routes a key to the shared text input when a text field is active.
func (f *formState) update(msg tea.Msg) tea.Cmd {
	if f.empty() || isSelect(f.field()) {
		return nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}
