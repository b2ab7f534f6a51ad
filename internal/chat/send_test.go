// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hvollmer/costchat/internal/history"
	"github.com/hvollmer/costchat/internal/model"
	"github.com/hvollmer/costchat/internal/stream"
)

// =============================================================================
// TEST BACKEND
// =============================================================================

// frames writes wire frames to the response, flushing after each.
func writeFrames(w http.ResponseWriter, frames ...string) {
	flusher := w.(http.Flusher)
	for _, frame := range frames {
		fmt.Fprint(w, frame)
		flusher.Flush()
	}
}

// fullTurnFrames is a complete reply stream for a typical turn.
func fullTurnFrames(response string) []string {
	return []string{
		"event: thinking\ndata: {\"token\":\"Checking \"}\n\n",
		"event: thinking\ndata: {\"token\":\"prices.\"}\n\n",
		"event: start\ndata: {\"message\":\"cost analysis\"}\n\n",
		"event: progress\ndata: {\"message\":\"Querying database\"}\n\n",
		fmt.Sprintf("event: result\ndata: {\"response\":%q,\"suggested_question\":[\"What about the roof?\"]}\n\n", response),
		"event: end\ndata: {}\n\n",
	}
}

func newStoreWithBackend(t *testing.T, hist *history.Store, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Options{
		Client:      stream.NewClient(&stream.Config{StreamURL: srv.URL}),
		History:     hist,
		RevealDelay: time.Millisecond,
	})
}

// waitIdle waits until the turn finished and the reveal caught up.
func waitIdle(t *testing.T, store *Store, fullResponse string) {
	t.Helper()
	waitFor(t, 5*time.Second, "turn to finish", func() bool {
		if store.IsLoading() {
			return false
		}
		msgs := store.Messages()
		if len(msgs) == 0 {
			return false
		}
		return msgs[len(msgs)-1].Content == fullResponse
	})
}

// =============================================================================
// FULL TURN SCENARIO
// =============================================================================

func TestSendMessage_FullTurn(t *testing.T) {
	response := "The estimated total is 250000 EUR."
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, fullTurnFrames(response)...)
	})

	store.SendMessage("How much for the renovation?")
	waitIdle(t, store, response)

	msgs := store.Messages()
	// user echo, finalized thinking, progress, completion, revealed result
	if len(msgs) != 5 {
		for _, m := range msgs {
			t.Logf("  [%s] %q", m.Role, m.Content)
		}
		t.Fatalf("Messages count = %d, want 5", len(msgs))
	}

	if msgs[0].Role != model.RoleUser || msgs[0].Content != "How much for the renovation?" {
		t.Errorf("msg[0] = %+v, want user echo", msgs[0])
	}
	if !msgs[1].IsThinking || msgs[1].Content != thinkingComplete("Checking prices.") {
		t.Errorf("msg[1] = %q, want finalized thinking", msgs[1].Content)
	}
	if msgs[2].Content != "Querying database" {
		t.Errorf("msg[2] = %q, want progress label", msgs[2].Content)
	}
	if msgs[3].Content != completionMessage {
		t.Errorf("msg[3] = %q, want completion message", msgs[3].Content)
	}
	if msgs[4].Content != response {
		t.Errorf("msg[4] = %q, want revealed response", msgs[4].Content)
	}

	// Initialization marker was swept by the result.
	for _, msg := range msgs {
		if strings.Contains(msg.Content, initializationMarker) {
			t.Errorf("Stale initialization marker survived: %q", msg.Content)
		}
	}

	// Suggestions published at end.
	if got := store.SuggestedQuestions(); len(got) != 1 || got[0] != "What about the roof?" {
		t.Errorf("SuggestedQuestions = %v", got)
	}
}

func TestSendMessage_ProgressDefaultLabel(t *testing.T) {
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			"event: progress\ndata: {}\n\n",
			"event: end\ndata: {}\n\n",
		)
	})

	store.SendMessage("hi")
	waitFor(t, 5*time.Second, "turn to finish", func() bool { return !store.IsLoading() })

	msgs := store.Messages()
	if len(msgs) != 2 || msgs[1].Content != defaultProgressLabel {
		t.Errorf("Messages = %+v, want default progress label", msgs)
	}
}

func TestSendMessage_SweepsPreviousCompletion(t *testing.T) {
	response := "second answer"
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			fmt.Sprintf("event: result\ndata: {\"response\":%q}\n\n", r.URL.Query().Get("message")),
			"event: end\ndata: {}\n\n",
		)
	})

	store.SendMessage("first answer")
	waitIdle(t, store, "first answer")
	store.SendMessage(response)
	waitIdle(t, store, response)

	count := 0
	for _, msg := range store.Messages() {
		if strings.Contains(msg.Content, completionMarker) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Completion markers after two turns = %d, want 1", count)
	}
}

// =============================================================================
// REVEAL
// =============================================================================

func TestReveal_MonotonicPrefixes(t *testing.T) {
	response := "one two three four five six seven eight"
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			fmt.Sprintf("event: result\ndata: {\"response\":%q}\n\n", response),
			"event: end\ndata: {}\n\n",
		)
	})

	var mu sync.Mutex
	var seen []string
	store.Subscribe(func(c Change) {
		if c != ChangeMessages {
			return
		}
		msgs := store.Messages()
		if len(msgs) == 0 {
			return
		}
		last := msgs[len(msgs)-1]
		if last.Role != model.RoleAssistant || last.Content == completionMessage {
			return
		}
		mu.Lock()
		seen = append(seen, last.Content)
		mu.Unlock()
	})

	store.SendMessage("go")
	waitIdle(t, store, response)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("No reveal snapshots captured")
	}
	prev := ""
	for i, snapshot := range seen {
		if !strings.HasPrefix(snapshot, prev) {
			t.Fatalf("snapshot[%d] %q is not an extension of %q", i, snapshot, prev)
		}
		if !strings.HasPrefix(response, snapshot) {
			t.Fatalf("snapshot[%d] %q is not a prefix of the response", i, snapshot)
		}
		prev = snapshot
	}
	if seen[len(seen)-1] != response {
		t.Errorf("Final snapshot = %q, want full response", seen[len(seen)-1])
	}
}

// =============================================================================
// ATTACHMENTS AND ESTIMATES
// =============================================================================

func TestSendMessage_DocumentAndEstimate(t *testing.T) {
	payload := `{
		"response": "Your document is attached.",
		"cost_estimate": {
			"total_cost_eur": 180000,
			"document_attachment": {"filename":"estimate.pdf","mime_type":"application/pdf","size":2048}
		}
	}`
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			"event: result\ndata: "+strings.ReplaceAll(payload, "\n", "")+"\n\n",
			"event: end\ndata: {}\n\n",
		)
	})

	store.SendMessage("send the document")
	waitIdle(t, store, "Your document is attached.")

	msgs := store.Messages()
	// user echo, document message, completion, result
	if len(msgs) != 4 {
		t.Fatalf("Messages count = %d, want 4", len(msgs))
	}
	doc := msgs[1]
	if doc.MediaType != model.MediaDocument || doc.DocumentAttachment == nil {
		t.Fatalf("msg[1] = %+v, want document message", doc)
	}
	if doc.DocumentAttachment.Filename != "estimate.pdf" {
		t.Errorf("Attachment filename = %q", doc.DocumentAttachment.Filename)
	}
	result := msgs[3]
	if result.CostEstimate == nil || result.CostEstimate.TotalCostEur != 180000 {
		t.Errorf("Result estimate = %+v", result.CostEstimate)
	}
}

// =============================================================================
// FORMS
// =============================================================================

func TestSendMessage_FormFlow(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		message := r.URL.Query().Get("message")
		mu.Lock()
		queries = append(queries, message)
		first := len(queries) == 1
		mu.Unlock()

		if first {
			writeFrames(w,
				`event: form`+"\n"+`data: {"data":{"title":"Project details","fields":[{"name":"area","label":"Area","type":"number"}],"submit_label":"Go"}}`+"\n\n",
				"event: end\ndata: {}\n\n",
			)
			return
		}
		writeFrames(w,
			fmt.Sprintf("event: result\ndata: {\"response\":%q}\n\n", "thanks"),
			"event: end\ndata: {}\n\n",
		)
	})

	store.SendMessage("estimate my project")
	waitFor(t, 5*time.Second, "form to arrive", func() bool {
		return !store.IsLoading() && store.FormPayload() != nil
	})

	form := store.FormPayload()
	if form.Title != "Project details" {
		t.Errorf("Form title = %q", form.Title)
	}

	store.SubmitForm(map[string]string{"area": "120"})
	waitIdle(t, store, "thanks")

	if store.FormPayload() != nil {
		t.Error("Form should be dismissed after submit")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 2 {
		t.Fatalf("Backend saw %d queries, want 2", len(queries))
	}
	answer := queries[1]
	if !strings.Contains(answer, "Project details") || !strings.Contains(answer, "Area: 120") {
		t.Errorf("Synthesized form answer = %q", answer)
	}
}

func TestDismissForm(t *testing.T) {
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			`event: form`+"\n"+`data: {"data":{"title":"T","fields":[]}}`+"\n\n",
			"event: end\ndata: {}\n\n",
		)
	})

	store.SendMessage("hi")
	waitFor(t, 5*time.Second, "form to arrive", func() bool { return store.FormPayload() != nil })

	store.DismissForm()
	if store.FormPayload() != nil {
		t.Error("Form should be gone")
	}
}

// =============================================================================
// AUDIO
// =============================================================================

func TestSendAudioMessage(t *testing.T) {
	var mu sync.Mutex
	var gotMessage string
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotMessage = r.URL.Query().Get("message")
		mu.Unlock()
		writeFrames(w,
			"event: result\ndata: {\"response\":\"ok\"}\n\n",
			"event: end\ndata: {}\n\n",
		)
	})

	store.SendAudioMessage("file:///tmp/voice.webm", "how much for windows")
	waitIdle(t, store, "ok")

	mu.Lock()
	if gotMessage != "how much for windows" {
		t.Errorf("Backend received %q, want the transcript", gotMessage)
	}
	mu.Unlock()

	echo := store.Messages()[0]
	if echo.MediaType != model.MediaAudio {
		t.Errorf("Echo media type = %q, want audio", echo.MediaType)
	}
	if echo.MediaURL != "file:///tmp/voice.webm" || echo.Transcript != "how much for windows" {
		t.Errorf("Echo = %+v", echo)
	}
}

// =============================================================================
// CANCELLATION AND SUPERSESSION
// =============================================================================

func TestSendMessage_SupersedesInFlightTurn(t *testing.T) {
	release := make(chan struct{})
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("message") == "first" {
			writeFrames(w, "event: start\ndata: {\"message\":\"slow turn\"}\n\n")
			select {
			case <-release:
			case <-r.Context().Done():
			}
			writeFrames(w,
				"event: result\ndata: {\"response\":\"stale answer\"}\n\n",
				"event: end\ndata: {}\n\n",
			)
			return
		}
		writeFrames(w,
			"event: result\ndata: {\"response\":\"fresh answer\"}\n\n",
			"event: end\ndata: {}\n\n",
		)
	})
	defer close(release)

	store.SendMessage("first")
	waitFor(t, 5*time.Second, "first turn to start", func() bool {
		for _, msg := range store.Messages() {
			if strings.Contains(msg.Content, "slow turn") {
				return true
			}
		}
		return false
	})

	store.SendMessage("second")
	waitIdle(t, store, "fresh answer")

	// Give the superseded stream a moment to misbehave if it were going to.
	time.Sleep(50 * time.Millisecond)

	for _, msg := range store.Messages() {
		if msg.Content == "stale answer" {
			t.Error("Superseded turn wrote into current state")
		}
	}
	if store.IsLoading() {
		t.Error("Store should be idle after the fresh turn")
	}
}

func TestCancelOngoingRequest(t *testing.T) {
	started := make(chan struct{})
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, "event: start\ndata: {\"message\":\"working\"}\n\n")
		close(started)
		<-r.Context().Done()
	})

	store.SendMessage("cancel me")
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never started")
	}

	store.CancelOngoingRequest()

	waitFor(t, 5*time.Second, "store to go idle", func() bool { return !store.IsLoading() })

	before := len(store.Messages())
	time.Sleep(50 * time.Millisecond)
	if got := len(store.Messages()); got != before {
		t.Errorf("Messages appeared after cancel: %d -> %d", before, got)
	}
}

func TestInitializeNewSession_StopsReveal(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	response := strings.Join(words, " ")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			fmt.Sprintf("event: result\ndata: {\"response\":%q}\n\n", response),
			"event: end\ndata: {}\n\n",
		)
	}))
	defer srv.Close()

	store := New(Options{
		Client:      stream.NewClient(&stream.Config{StreamURL: srv.URL}),
		RevealDelay: 5 * time.Millisecond,
	})

	store.SendMessage("long answer please")
	waitFor(t, 5*time.Second, "reveal to begin", func() bool {
		msgs := store.Messages()
		return len(msgs) > 0 && strings.HasPrefix(msgs[len(msgs)-1].Content, "w0")
	})

	store.InitializeNewSession()

	if len(store.Messages()) != 0 {
		t.Fatal("New session should be empty")
	}
	// The orphaned reveal loop must not repopulate the fresh session.
	time.Sleep(100 * time.Millisecond)
	if got := len(store.Messages()); got != 0 {
		t.Errorf("Superseded reveal wrote %d messages into the new session", got)
	}
}

// =============================================================================
// PERSISTENCE THROUGH A TURN
// =============================================================================

func TestSendMessage_PersistsFinalTranscript(t *testing.T) {
	hist := newTestHistory(t)
	response := "persisted answer text"
	store := newStoreWithBackend(t, hist, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, fullTurnFrames(response)...)
	})

	store.SendMessage("persist this turn")
	waitIdle(t, store, response)
	waitFor(t, 5*time.Second, "final snapshot", func() bool {
		rec, err := hist.Load(store.SessionID())
		if err != nil {
			return false
		}
		return len(rec.Messages) > 0 && rec.Messages[len(rec.Messages)-1].Content == response
	})

	rec, err := hist.Load(store.SessionID())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rec.Messages) != len(store.Messages()) {
		t.Errorf("Persisted %d messages, live %d", len(rec.Messages), len(store.Messages()))
	}
}

// =============================================================================
// TRANSPORT FAILURE
// =============================================================================

func TestSendMessage_TransportFailureClearsLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := New(Options{
		Client:      stream.NewClient(&stream.Config{StreamURL: srv.URL}),
		RevealDelay: time.Millisecond,
	})

	store.SendMessage("doomed")
	waitFor(t, 5*time.Second, "loading to clear", func() bool { return !store.IsLoading() })

	// The user echo stays even though the turn failed.
	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser {
		t.Errorf("Messages = %+v, want only the echo", msgs)
	}
}

func TestSendMessage_ChannelClosedWithoutEndClearsLoading(t *testing.T) {
	// The backend drops the connection mid-turn without sending an end
	// event; the clean EOF must still terminate the loading state.
	store := newStoreWithBackend(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, "event: start\ndata: {\"message\":\"cost analysis\"}\n\n")
	})

	store.SendMessage("how much?")
	waitFor(t, 5*time.Second, "loading to clear", func() bool { return !store.IsLoading() })

	// The dropped turn left no live handle behind; a fresh turn works.
	store.mu.Lock()
	active := store.active
	store.mu.Unlock()
	if active != nil {
		t.Error("Dead stream handle still registered after early close")
	}
}
