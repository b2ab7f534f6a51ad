// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the costchat relay server.
//
// The relay sits between browser or CLI clients and the assistant
// backend. Clients send unauthenticated chat requests; the relay
// attaches the backend API key, forwards the request, and passes the
// backend response through verbatim.
//
// # Endpoints
//
//   - POST /api/chat - Relay a chat request to the backend
//   - GET  /health   - Health check
//
// # Middleware
//
// Requests pass through panic recovery, security headers, request
// logging, a request body size cap, and per-client rate limiting.
//
// # Usage
//
//	srv := server.NewServer(&server.Config{
//	    Listen:      "127.0.0.1:8088",
//	    UpstreamURL: "http://127.0.0.1:8000/api/v1/run",
//	    APIKey:      key,
//	})
//	log.Fatal(srv.Start())
package server
