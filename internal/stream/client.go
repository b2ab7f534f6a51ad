// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides the push-channel client for the assistant backend.
package stream

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the push-channel client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeBadStatus
)

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Type: ErrTypeConnection, Message: "backend is not reachable"}
	ErrTimeout     = &ClientError{Type: ErrTypeTimeout, Message: "stream request timed out"}
	ErrClosedEarly = &ClientError{Type: ErrTypeConnection, Message: "channel closed before end of turn"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the stream client.
type Config struct {
	// StreamURL is the backend streaming endpoint, e.g.
	// https://backend.example.com/chat/stream
	StreamURL string

	// ConnectTimeout bounds connection establishment (default: 10s).
	// The stream itself has no deadline; it is closed via the handle.
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		StreamURL:      "http://127.0.0.1:8000/chat/stream",
		ConnectTimeout: 10 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// EventCallback is called for each decoded event, in server-send order,
// from the stream's reader goroutine.
type EventCallback func(ev Event)

// ErrorCallback is called once if the stream fails at the transport level.
type ErrorCallback func(err error)

// Client opens push channels to the backend streaming endpoint. One channel
// is opened per turn; the Client itself is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new stream client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.StreamURL == "" {
		config.StreamURL = DefaultConfig().StreamURL
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	return &Client{
		config: config,
		// No overall timeout: the connection stays open for the whole
		// turn and is torn down through the handle's context. Only the
		// dial and TLS handshake are bounded.
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: config.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout: config.ConnectTimeout,
			},
		},
	}
}

// streamURL builds the per-turn URL carrying the message text, the user
// identifier, and the session id as thread identifier.
func (c *Client) streamURL(message, userID, threadID string) string {
	q := url.Values{}
	q.Set("message", message)
	q.Set("user_id", userID)
	q.Set("thread_id", threadID)
	return c.config.StreamURL + "?" + q.Encode()
}

// =============================================================================
// HANDLE
// =============================================================================

// Handle represents one live streaming turn. Closing it cancels the
// underlying connection and stops event delivery; Close is idempotent.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close tears down the stream. No events are delivered after Close returns
// and the reader goroutine has exited.
func (h *Handle) Close() {
	h.cancel()
}

// Done is closed when the reader goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// =============================================================================
// OPENING A STREAM
// =============================================================================

// Open starts a streaming turn in a new goroutine and returns its handle.
// onEvent is invoked for every decoded event; onError once, if the channel
// fails at the transport level. A server that drops the connection without
// sending an end event counts as a transport failure (ErrClosedEarly).
// Neither callback is invoked after the handle is closed and the goroutine
// has drained.
func (c *Client) Open(message, userID, threadID string, onEvent EventCallback, onError ErrorCallback) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		sawEnd := false
		observe := func(ev Event) {
			if ev.Kind == KindEnd {
				sawEnd = true
			}
			onEvent(ev)
		}
		err := c.stream(ctx, message, userID, threadID, observe)
		if err == nil && !sawEnd {
			err = ErrClosedEarly
		}
		if err != nil {
			// A cancelled turn is not a transport failure.
			if errors.Is(err, context.Canceled) {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}()

	return h
}

// stream opens the connection and dispatches decoded events until the
// server closes the channel or the context is cancelled.
func (c *Client) stream(ctx context.Context, message, userID, threadID string, onEvent EventCallback) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL(message, userID, threadID), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return &ClientError{Type: ErrTypeConnection, Message: "failed to open stream", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeBadStatus,
			Message: "stream request failed: " + resp.Status,
		}
	}

	return readEvents(ctx, bufio.NewReader(resp.Body), onEvent)
}

// =============================================================================
// WIRE PARSING
// =============================================================================

// readEvents parses "event:" / "data:" frames separated by blank lines.
// Malformed payloads are logged and skipped; they never abort the stream.
func readEvents(ctx context.Context, r *bufio.Reader, onEvent EventCallback) error {
	var (
		eventName string
		data      strings.Builder
	)

	dispatch := func() {
		if eventName == "" && data.Len() == 0 {
			return
		}
		name := eventName
		if name == "" {
			// Frames without an explicit name are generic messages;
			// this protocol only uses named events.
			name = "message"
		}
		payload := []byte(data.String())
		eventName = ""
		data.Reset()

		if name == "message" {
			return
		}
		ev, err := decodeEvent(name, payload)
		if err != nil {
			log.Printf("stream: skipping malformed %q event: %v", name, err)
			return
		}
		onEvent(*ev)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.ReadString('\n')
		if err != nil {
			// A cancelled handle surfaces as a read error on the closed
			// body; report it as cancellation, not as a server close.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The server closed the channel; flush any trailing frame.
			if line != "" {
				appendFrameLine(&eventName, &data, line)
			}
			dispatch()
			return nil
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			dispatch()
			continue
		}
		appendFrameLine(&eventName, &data, line)
	}
}

// appendFrameLine folds one wire line into the pending frame.
func appendFrameLine(eventName *string, data *strings.Builder, line string) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, "event:"):
		*eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
	case strings.HasPrefix(line, ":"):
		// Comment / keep-alive; ignored.
	}
}
