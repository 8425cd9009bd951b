// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the surveyor inference gateway.
//
// The gateway fronts an Ollama server and speaks Ollama's /api/chat dialect,
// adding bearer authentication and per-user rate limiting. This package
// covers the wire side only: building requests, classifying HTTP failures,
// and parsing newline-delimited JSON streams.
//
// # Key Types
//
//   - Client: HTTP client for the gateway's chat, tags, and quota endpoints
//   - ChatRequest / ChatResponse: Non-streamed request and reply bodies
//   - StreamReader: Line-oriented NDJSON frame parser
//   - AuthError, RateLimitError, HTTPError: Non-2xx responses
//   - ClientError: Transport failures (connection, timeout, cancellation)
//
// # Usage
//
// Send a request and consume the stream:
//
//	resp, err := client.Send(ctx, ollama.ChatRequest{
//	    Model:    "llama3",
//	    Messages: []ollama.Message{{Role: "user", Content: "Hello"}},
//	    Stream:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer resp.Close()
//	reader := ollama.NewStreamReader(resp.Body)
//	err = reader.Process(ctx, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
//
// # Stream Parsing
//
// Frames are processed strictly in arrival order and only once a full line
// has been read. Lines that are not valid JSON are skipped and counted; a
// done frame does not end processing, the body is drained to EOF.
package ollama
