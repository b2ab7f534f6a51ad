// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the costchat relay server.
//
// Endpoints:
//   - POST /api/chat - Relay a chat request to the backend
//   - GET  /health   - Health check
//
// The relay keeps the backend API key out of clients: requests arrive
// without credentials, the key is attached upstream, and the upstream
// response is passed back verbatim.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultMaxBodyBytes caps accepted request bodies (1MB).
	DefaultMaxBodyBytes = 1 * 1024 * 1024

	// DefaultUpstreamTimeout bounds one relayed request.
	DefaultUpstreamTimeout = 120 * time.Second

	// Version is the relay version.
	Version = "0.1.0"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// Config holds relay server settings.
type Config struct {
	// Listen is the address to bind to.
	Listen string

	// UpstreamURL is the backend endpoint relayed requests are sent to.
	UpstreamURL string

	// APIKey is attached to upstream requests as x-api-key.
	// Clients never see it.
	APIKey string

	// RateLimitPerMin is the per-client request budget (0 = unlimited).
	RateLimitPerMin int

	// MaxBodyBytes caps accepted request bodies (0 = DefaultMaxBodyBytes).
	MaxBodyBytes int64
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// ChatRequest is the payload accepted from clients and forwarded upstream.
type ChatRequest struct {
	InputValue string `json:"input_value"`
	OutputType string `json:"output_type,omitempty"`
	InputType  string `json:"input_type,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the relay HTTP server.
type Server struct {
	config *Config
	router *http.ServeMux
	server *http.Server

	client *http.Client
}

// NewServer creates a relay server from the given configuration.
func NewServer(config *Config) *Server {
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		config: config,
		router: http.NewServeMux(),
		client: &http.Client{Timeout: DefaultUpstreamTimeout},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the full middleware-wrapped handler. Exposed so tests can
// drive the relay through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
		BodyLimitMiddleware(s.config.MaxBodyBytes),
	}
	if s.config.RateLimitPerMin > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(s.config.RateLimitPerMin)))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// CHAT RELAY HANDLER
// ============================================================================

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds maximum size of %d bytes", s.config.MaxBodyBytes))
			return
		}
		log.Printf("relay: invalid request body: %v", err)
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if req.InputValue == "" {
		s.writeError(w, http.StatusBadRequest, "input_value is required")
		return
	}
	if req.OutputType == "" {
		req.OutputType = "chat"
	}
	if req.InputType == "" {
		req.InputType = "chat"
	}

	body, err := json.Marshal(req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		s.config.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("relay: failed to build upstream request: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	upstream.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		upstream.Header.Set("x-api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(upstream)
	if err != nil {
		log.Printf("relay: upstream request failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer resp.Body.Close()

	// Pass the upstream response through verbatim, status included, so
	// clients see exactly what the backend said.
	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("relay: failed to copy upstream response: %v", err)
	}
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Upstream string `json:"upstream"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  Version,
		Upstream: s.config.UpstreamURL,
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: DefaultUpstreamTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s upstream=%s",
		s.config.Listen, Version, s.config.UpstreamURL)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
