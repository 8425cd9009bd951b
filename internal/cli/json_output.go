// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for --json mode.
//
// Every command that supports --json writes one JSONResponse to stdout so
// scripts can consume results without scraping styled text.

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	ErrorType string  `json:"error_type,omitempty"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response, indented, to w.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// AskData is the result of `surveyor ask --json`.
type AskData struct {
	SessionID        string  `json:"session_id"`
	Model            string  `json:"model"`
	Content          string  `json:"content"`
	Placeholder      bool    `json:"placeholder,omitempty"`
	Streamed         bool    `json:"streamed"`
	ElapsedMs        int64   `json:"elapsed_ms"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TokensPerSecond  float64 `json:"tokens_per_second,omitempty"`
	DroppedFrames    int     `json:"dropped_frames,omitempty"`
}

// SessionData summarizes one conversation.
type SessionData struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model,omitempty"`
	Template  string    `json:"template_id,omitempty"`
	Messages  int       `json:"messages"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModelData describes one gateway model.
type ModelData struct {
	Name     string `json:"name"`
	Size     int64  `json:"size,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Selected bool   `json:"selected"`
}

// QuotaData is the result of `surveyor quota --json`.
type QuotaData struct {
	Status    string     `json:"status"`
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Display   string     `json:"display"`
}

// VersionData is the result of `surveyor version --json`.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
