// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat owns the client-side session state machine.
package chat

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hvollmer/costchat/internal/history"
	"github.com/hvollmer/costchat/internal/model"
	"github.com/hvollmer/costchat/internal/stream"
)

// =============================================================================
// STATUS MARKERS
// =============================================================================

// Transient status bubbles are recognized by content so stale ones from a
// previous turn can be swept before a new one is appended.
const (
	initializationMarker = "⌛ Initialization"
	initializationPrefix = "⌛ Initialization — "
	completionMarker     = "Analysis completed"
	completionMessage    = "Analysis completed — here are the insights."
	defaultProgressLabel = "Working..."
)

// Thinking blocks render the accumulated reasoning text under a header the
// UI can collapse. The in-progress and completed representations differ so
// the view can tell a live block from a frozen one.
func thinkingInProgress(text string) string {
	return "💭 Analyzing your query…\n\n" + text
}

func thinkingComplete(text string) string {
	return "💭 Analysis\n\n" + text
}

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// Change identifies what part of the store a notification refers to.
type Change int

const (
	// ChangeMessages fires when the message list or a streaming message's
	// content changed.
	ChangeMessages Change = iota
	// ChangeState fires when loading, suggestions, or the form payload
	// changed.
	ChangeState
	// ChangeHistory fires when the persisted session mapping changed;
	// the sidebar refreshes on it.
	ChangeHistory
)

// Listener receives change notifications. Listeners are invoked outside the
// store lock, from whichever goroutine performed the mutation.
type Listener func(Change)

// =============================================================================
// SESSION STORE
// =============================================================================

// Store is the single owner of the active session. All mutations go through
// its methods; views read snapshots and subscribe for changes.
//
// Concurrency: the stream's reader goroutine, the reveal goroutine, and the
// UI all call in here, so every mutation holds the lock. Turn-scoped
// mutations additionally carry a generation number and are dropped once a
// newer turn (or a reset) has bumped the counter; a superseded reveal loop
// or a late event from a closed channel can never write into current state.
type Store struct {
	mu sync.Mutex

	session    *model.Session
	hasStarted bool
	isLoading  bool

	// Cancellation registry: at most one live stream handle.
	active     *stream.Handle
	generation uint64

	suggested []string
	form      *stream.FormSpec

	thinkingID    string
	thinkingAccum strings.Builder

	listeners    map[int]Listener
	nextListener int

	client      *stream.Client
	history     *history.Store
	userID      string
	revealDelay time.Duration
}

// Options configures a Store.
type Options struct {
	// Client opens push channels to the backend. Required for SendMessage.
	Client *stream.Client

	// History receives a session snapshot after every appended message.
	// May be nil; the store then keeps sessions in memory only.
	History *history.Store

	// UserID identifies the user on streaming requests (default "web_user").
	UserID string

	// RevealDelay is the pause between words of the result reveal
	// (default 30ms).
	RevealDelay time.Duration
}

// New creates a store with a fresh empty session.
func New(opts Options) *Store {
	if opts.UserID == "" {
		opts.UserID = "web_user"
	}
	if opts.RevealDelay == 0 {
		opts.RevealDelay = 30 * time.Millisecond
	}

	return &Store{
		session:     model.NewSession(),
		listeners:   make(map[int]Listener),
		client:      opts.Client,
		history:     opts.History,
		userID:      opts.UserID,
		revealDelay: opts.RevealDelay,
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers a listener and returns its unsubscribe function.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// notify delivers changes to all listeners, outside the lock.
func (s *Store) notify(changes ...Change) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// =============================================================================
// SNAPSHOT ACCESSORS
// =============================================================================

// Messages returns a copy of the current message list.
func (s *Store) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Message, len(s.session.Messages))
	for i, msg := range s.session.Messages {
		out[i] = msg.Clone()
	}
	return out
}

// SessionID returns the active session's id.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.ID
}

// CreatedAt returns when the active session was created.
func (s *Store) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.CreatedAt
}

// IsLoading reports whether a turn is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// HasStartedConversation reports whether any message was added.
func (s *Store) HasStartedConversation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasStarted
}

// SuggestedQuestions returns the follow-up questions published by the last
// completed turn.
func (s *Store) SuggestedQuestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suggested...)
}

// FormPayload returns the pending interactive form, or nil.
func (s *Store) FormPayload() *stream.FormSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// ThinkingMessageID returns the id of the open thinking block, or "".
func (s *Store) ThinkingMessageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinkingID
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AddMessage appends a message to the active session, snapshots the session
// into the history store, and notifies listeners. If the message is a
// thinking block, it becomes the thinking target and the accumulator resets.
func (s *Store) AddMessage(msg *model.Message) {
	s.mu.Lock()
	s.appendLocked(msg)
	snap := s.session.Clone()
	s.mu.Unlock()

	s.persist(snap)
	s.notify(ChangeMessages, ChangeHistory)
}

// appendLocked is the append path shared by AddMessage and turn handlers.
// Caller holds the lock.
func (s *Store) appendLocked(msg *model.Message) {
	s.session.Append(msg)
	s.hasStarted = true
	if msg.IsThinking {
		s.thinkingID = msg.ID
		s.thinkingAccum.Reset()
	}
}

// UpdateThinkingMessage replaces the thinking target's content verbatim.
// No-op when no thinking target is set.
func (s *Store) UpdateThinkingMessage(content string) {
	s.mu.Lock()
	if s.thinkingID == "" {
		s.mu.Unlock()
		return
	}
	if msg := s.session.GetMessageByID(s.thinkingID); msg != nil {
		msg.Content = content
	}
	s.mu.Unlock()
	s.notify(ChangeMessages)
}

// AppendToThinkingMessage concatenates a token onto the accumulator and
// rewrites the target's content as the in-progress representation. Safe to
// call at token rate: one builder append and one content swap per call.
func (s *Store) AppendToThinkingMessage(token string) {
	s.mu.Lock()
	if s.thinkingID == "" {
		s.mu.Unlock()
		return
	}
	s.thinkingAccum.WriteString(token)
	if msg := s.session.GetMessageByID(s.thinkingID); msg != nil {
		msg.Content = thinkingInProgress(s.thinkingAccum.String())
	}
	s.mu.Unlock()
	s.notify(ChangeMessages)
}

// FinalizeThinkingMessage freezes the thinking block as its completed
// representation and clears the target. Idempotent without a target.
func (s *Store) FinalizeThinkingMessage() {
	s.mu.Lock()
	if s.thinkingID == "" {
		s.mu.Unlock()
		return
	}
	s.finalizeThinkingLocked()
	s.mu.Unlock()
	s.notify(ChangeMessages)
}

// finalizeThinkingLocked freezes the thinking block. Caller holds the lock.
func (s *Store) finalizeThinkingLocked() {
	if s.thinkingID == "" {
		return
	}
	if msg := s.session.GetMessageByID(s.thinkingID); msg != nil {
		msg.Content = thinkingComplete(s.thinkingAccum.String())
	}
	s.thinkingID = ""
	s.thinkingAccum.Reset()
}

// removeMarkersLocked drops stale initialization and completion status
// bubbles so repeated turns don't accumulate orphaned markers. Caller holds
// the lock.
func (s *Store) removeMarkersLocked() {
	kept := s.session.Messages[:0]
	for _, msg := range s.session.Messages {
		stale := msg.Role == model.RoleAssistant &&
			(strings.Contains(msg.Content, initializationMarker) ||
				strings.Contains(msg.Content, completionMarker))
		if !stale {
			kept = append(kept, msg)
		}
	}
	s.session.Messages = kept
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// InitializeNewSession resets to a fresh empty session. Any in-flight turn
// is retired first; prior persisted sessions are untouched.
func (s *Store) InitializeNewSession() {
	s.mu.Lock()
	prev := s.retireLocked()
	s.session = model.NewSession()
	s.hasStarted = false
	s.isLoading = false
	s.suggested = nil
	s.form = nil
	s.thinkingID = ""
	s.thinkingAccum.Reset()
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	s.notify(ChangeMessages, ChangeState)
}

// ClearMessages resets to a fresh empty session.
func (s *Store) ClearMessages() {
	s.InitializeNewSession()
}

// LoadSession replaces the active session with a persisted one. Returns
// history.ErrSessionNotFound when the id is unknown, leaving current state
// untouched so the caller can decide what to show.
func (s *Store) LoadSession(id string) error {
	if s.history == nil {
		return history.ErrSessionNotFound
	}
	rec, err := s.history.Load(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.retireLocked()
	s.session = &model.Session{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Messages:  rec.Messages,
	}
	s.hasStarted = len(rec.Messages) > 0
	s.isLoading = false
	s.suggested = nil
	s.form = nil
	s.thinkingID = ""
	s.thinkingAccum.Reset()
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	s.notify(ChangeMessages, ChangeState)
	return nil
}

// CancelOngoingRequest tears down the in-flight turn, if any. The push
// channel is closed and the generation counter bumped, so late events and
// superseded reveal loops are dropped rather than writing into the session.
func (s *Store) CancelOngoingRequest() {
	s.mu.Lock()
	prev := s.retireLocked()
	s.isLoading = false
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	s.notify(ChangeState)
}

// retireLocked bumps the generation and detaches the active handle, which
// the caller must Close outside the lock. Caller holds the lock.
func (s *Store) retireLocked() *stream.Handle {
	s.generation++
	prev := s.active
	s.active = nil
	return prev
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist mirrors a session snapshot into the history store. Failures are
// absorbed: history is a convenience, not the source of truth for the live
// conversation.
func (s *Store) persist(snap *model.Session) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(&history.Record{
		ID:        snap.ID,
		CreatedAt: snap.CreatedAt,
		Messages:  snap.Messages,
	}); err != nil {
		log.Printf("chat: failed to persist session %s: %v", snap.ID, err)
	}
}

// =============================================================================
// TURN-SCOPED MUTATION
// =============================================================================

// applyTurn runs fn under the lock if gen is still the current generation.
// fn mutates state directly and reports whether to snapshot the session for
// persistence and which changes to announce. Returns false when the turn
// was superseded and fn did not run.
func (s *Store) applyTurn(gen uint64, fn func() (persistSnap bool, changes []Change)) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	persistSnap, changes := fn()
	var snap *model.Session
	if persistSnap {
		snap = s.session.Clone()
	}
	s.mu.Unlock()

	if snap != nil {
		s.persist(snap)
		changes = append(changes, ChangeHistory)
	}
	s.notify(changes...)
	return true
}
