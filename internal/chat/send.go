// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hvollmer/costchat/internal/model"
	"github.com/hvollmer/costchat/internal/stream"
)

// =============================================================================
// SENDING
// =============================================================================

// SendMessage cancels any in-flight turn, echoes the user's text locally,
// and opens a push channel for the reply. Empty or whitespace-only input is
// ignored.
func (s *Store) SendMessage(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	s.send(content, model.NewUserMessage(content))
}

// SendAudioMessage sends a voice message. The local echo carries the
// playable resource's location plus the transcript; the backend receives
// the transcript as the query text.
func (s *Store) SendAudioMessage(mediaURL, transcript string) {
	if strings.TrimSpace(transcript) == "" {
		return
	}
	s.send(transcript, model.NewAudioMessage(mediaURL, transcript))
}

// SubmitForm answers the pending interactive form. Field answers are folded
// into a descriptive text message that re-enters the normal send path, and
// the form is dismissed.
func (s *Store) SubmitForm(values map[string]string) {
	s.mu.Lock()
	form := s.form
	s.form = nil
	s.mu.Unlock()
	if form == nil {
		return
	}
	s.notify(ChangeState)

	var b strings.Builder
	fmt.Fprintf(&b, "Submitted form %q:", form.Title)
	for _, field := range form.Fields {
		fmt.Fprintf(&b, "\n- %s: %s", field.Label, values[field.Name])
	}
	s.SendMessage(b.String())
}

// DismissForm drops the pending form without answering it.
func (s *Store) DismissForm() {
	s.mu.Lock()
	had := s.form != nil
	s.form = nil
	s.mu.Unlock()
	if had {
		s.notify(ChangeState)
	}
}

// send is the shared turn entry point. query is what the backend sees,
// echo is the message appended locally.
func (s *Store) send(query string, echo *model.Message) {
	s.mu.Lock()
	prev := s.retireLocked()
	gen := s.generation
	s.isLoading = true
	s.form = nil
	s.suggested = nil
	threadID := s.session.ID
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	s.notify(ChangeState)

	s.AddMessage(echo)

	if s.client == nil {
		log.Printf("chat: no stream client configured, dropping turn")
		s.applyTurn(gen, func() (bool, []Change) {
			s.isLoading = false
			return false, []Change{ChangeState}
		})
		return
	}

	t := &turn{store: s, gen: gen}
	handle := s.client.Open(query, s.userID, threadID, t.handleEvent, t.handleError)

	s.mu.Lock()
	if gen == s.generation {
		s.active = handle
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	// A newer turn or a reset won the race while we were connecting.
	handle.Close()
}

// =============================================================================
// TURN
// =============================================================================

// turn folds one reply stream into the store. All of its writes are guarded
// by the generation captured at send time, so a turn that has been
// superseded or cancelled silently stops mutating.
type turn struct {
	store *Store
	gen   uint64

	// resultID is the placeholder message the reveal loop writes into.
	resultID string

	// suggestions captured from the result event, published on end.
	suggestions []string
}

func (t *turn) handleError(err error) {
	log.Printf("chat: stream failed: %v", err)
	var handle *stream.Handle
	t.store.applyTurn(t.gen, func() (bool, []Change) {
		s := t.store
		s.isLoading = false
		handle = s.active
		s.active = nil
		return false, []Change{ChangeState}
	})
	if handle != nil {
		handle.Close()
	}
}

func (t *turn) handleEvent(ev stream.Event) {
	switch ev.Kind {
	case stream.KindThinking:
		t.onThinking(ev.Thinking)
	case stream.KindStart:
		t.onStart(ev.Start)
	case stream.KindProgress:
		t.onProgress(ev.Progress)
	case stream.KindForm:
		t.onForm(ev.Form)
	case stream.KindResult:
		t.onResult(ev.Result)
	case stream.KindEnd:
		t.onEnd()
	}
}

// onThinking routes a reasoning token into the thinking block, creating the
// block on the first token of the turn.
func (t *turn) onThinking(data *stream.ThinkingData) {
	token := ""
	if data != nil {
		token = data.Token
	}
	t.store.applyTurn(t.gen, func() (bool, []Change) {
		s := t.store
		created := false
		if s.thinkingID == "" {
			msg := model.NewAssistantMessage(thinkingInProgress(""))
			msg.IsThinking = true
			s.appendLocked(msg)
			created = true
		}
		s.thinkingAccum.WriteString(token)
		if msg := s.session.GetMessageByID(s.thinkingID); msg != nil {
			msg.Content = thinkingInProgress(s.thinkingAccum.String())
		}
		return created, []Change{ChangeMessages}
	})
}

// onStart freezes any open thinking block, sweeps stale status markers, and
// posts the initialization bubble.
func (t *turn) onStart(data *stream.StartData) {
	label := ""
	if data != nil {
		label = data.Message
	}
	t.store.applyTurn(t.gen, func() (bool, []Change) {
		s := t.store
		s.finalizeThinkingLocked()
		s.removeMarkersLocked()
		s.appendLocked(model.NewAssistantMessage(initializationPrefix + label))
		return true, []Change{ChangeMessages}
	})
}

// onProgress posts a progress bubble, defaulting the label when the payload
// carries none.
func (t *turn) onProgress(data *stream.ProgressData) {
	label := defaultProgressLabel
	if data != nil && data.Message != "" {
		label = data.Message
	}
	t.store.applyTurn(t.gen, func() (bool, []Change) {
		s := t.store
		s.appendLocked(model.NewAssistantMessage(label))
		return true, []Change{ChangeMessages}
	})
}

// onForm stashes the interactive form for the view to render. Nothing is
// appended to the transcript until the user answers.
func (t *turn) onForm(form *stream.FormSpec) {
	if form == nil {
		return
	}
	t.store.applyTurn(t.gen, func() (bool, []Change) {
		t.store.form = form
		return false, []Change{ChangeState}
	})
}

// onResult sweeps status markers, posts the attachment and completion
// messages, creates the empty placeholder the reveal loop fills, and kicks
// off the word-by-word reveal.
func (t *turn) onResult(data *stream.ResultData) {
	if data == nil {
		return
	}
	t.suggestions = data.SuggestedQuestions

	ok := t.store.applyTurn(t.gen, func() (bool, []Change) {
		s := t.store
		s.removeMarkersLocked()
		if att := data.Attachment(); att != nil {
			s.appendLocked(model.NewDocumentMessage(att))
		}
		s.appendLocked(model.NewAssistantMessage(completionMessage))

		placeholder := model.NewAssistantMessage("")
		placeholder.CostEstimate = data.CostEstimate
		s.appendLocked(placeholder)
		t.resultID = placeholder.ID
		return true, []Change{ChangeMessages}
	})
	if ok {
		go t.reveal(data.Response)
	}
}

// onEnd flips loading off, publishes the captured suggestions, and releases
// the channel handle.
func (t *turn) onEnd() {
	var handle *stream.Handle
	t.store.applyTurn(t.gen, func() (bool, []Change) {
		s := t.store
		s.isLoading = false
		s.suggested = t.suggestions
		handle = s.active
		s.active = nil
		return false, []Change{ChangeState}
	})
	if handle != nil {
		handle.Close()
	}
}

// =============================================================================
// RESULT REVEAL
// =============================================================================

// reveal grows the placeholder word by word. Each write re-checks the
// generation under the lock, so a newer turn or a session switch stops the
// loop at the next word rather than letting it finish into stale state.
func (t *turn) reveal(text string) {
	words := strings.Fields(text)
	var revealed strings.Builder
	for i, word := range words {
		if i > 0 {
			time.Sleep(t.store.revealDelay)
			revealed.WriteByte(' ')
		}
		revealed.WriteString(word)
		content := revealed.String()

		ok := t.store.applyTurn(t.gen, func() (bool, []Change) {
			if msg := t.store.session.GetMessageByID(t.resultID); msg != nil {
				msg.Content = content
			}
			return false, []Change{ChangeMessages}
		})
		if !ok {
			return
		}
	}

	// Snapshot once the full answer is in place, so a reloaded session
	// shows the complete text rather than a truncated reveal.
	t.store.applyTurn(t.gen, func() (bool, []Change) {
		return true, nil
	})
}
