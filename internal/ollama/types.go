// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"time"

	"github.com/dustin/go-humanize"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Options contains model parameters for inference. Both fields are always
// sent; the gateway applies its own defaults only when the key is missing.
type Options struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
}

// ChatRequest is the request body for the chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  Options   `json:"options"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is a non-streamed reply, and also the shape of each frame in
// a streamed reply. Unknown fields are ignored.
type ChatResponse struct {
	Model              string   `json:"model"`
	Message            *Message `json:"message,omitempty"`
	Done               bool     `json:"done"`
	DoneReason         string   `json:"done_reason,omitempty"`
	TotalDuration      int64    `json:"total_duration,omitempty"`       // nanoseconds
	LoadDuration       int64    `json:"load_duration,omitempty"`        // nanoseconds
	PromptEvalCount    int      `json:"prompt_eval_count,omitempty"`    // number of tokens in prompt
	PromptEvalDuration int64    `json:"prompt_eval_duration,omitempty"` // nanoseconds
	EvalCount          int      `json:"eval_count,omitempty"`           // number of tokens generated
	EvalDuration       int64    `json:"eval_duration,omitempty"`        // nanoseconds
}

// Content returns the assistant text, or "" when the message is absent.
func (r *ChatResponse) Content() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return r.Message.Content
}

// TokensPerSecond calculates the generation speed from a response.
func (r *ChatResponse) TokensPerSecond() float64 {
	if r.EvalDuration == 0 {
		return 0
	}
	seconds := float64(r.EvalDuration) / 1e9
	return float64(r.EvalCount) / seconds
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo contains information about a model.
type ModelInfo struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// FormatSize formats the model size in human-readable form.
func (m *ModelInfo) FormatSize() string {
	if m.Size <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(m.Size))
}

// ListModelsResponse is the response from the tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// =============================================================================
// QUOTA TYPES
// =============================================================================

// QuotaStatus is the body returned by the quota endpoint.
type QuotaStatus struct {
	Remaining int     `json:"remaining"`
	Limit     int     `json:"limit"`
	ResetAt   float64 `json:"reset_at"` // epoch seconds
}

// ResetTime converts ResetAt to a time.Time. Zero when unset.
func (q QuotaStatus) ResetTime() time.Time {
	if q.ResetAt <= 0 {
		return time.Time{}
	}
	return epochToTime(q.ResetAt)
}

func epochToTime(secs float64) time.Time {
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*1e9))
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single parsed frame from a streaming response.
type StreamChunk struct {
	// Content from this frame (message.content).
	Content string

	// Timing information (only populated on the done frame)
	Done               bool
	DoneReason         string
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	// Token counts (only populated on the done frame)
	PromptTokens     int
	CompletionTokens int

	Model string
}
