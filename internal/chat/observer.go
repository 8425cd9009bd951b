// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
)

// =============================================================================
// PHASE
// =============================================================================

// Phase is the lifecycle state of the engine's current request.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseAwaiting
	PhaseCompleted
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// NoticeKind classifies a user-facing error notice.
type NoticeKind int

const (
	NoticeConfig NoticeKind = iota
	NoticeAuth
	NoticeRateLimit
	NoticeHTTP
	NoticeClient
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeConfig:
		return "config"
	case NoticeAuth:
		return "auth"
	case NoticeRateLimit:
		return "rate-limit"
	case NoticeHTTP:
		return "http"
	default:
		return "client"
	}
}

// Notice is an error shown to the user.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

// Completion describes a recorded assistant reply.
type Completion struct {
	SessionID string
	Message   session.Message
	Streamed  bool
	Elapsed   time.Duration

	// Placeholder is true when Message carries substitute text because the
	// gateway sent none.
	Placeholder bool

	// Stream diagnostics. Zero for non-streamed replies.
	Frames  int
	Dropped int
	TTFT    time.Duration

	// Reported by the gateway on the final frame or reply.
	PromptTokens     int
	CompletionTokens int
	TokensPerSecond  float64
}

// Observer receives engine events. Methods may be called from more than one
// goroutine (the thinking ticker runs on its own) and must not block.
type Observer interface {
	quota.Display

	// OnStatus reports the busy indicator and a short status text.
	OnStatus(busy bool, text string)
	OnPhase(Phase)
	// OnMessageAppended fires after a message is persisted.
	OnMessageAppended(sessionID string, msg session.Message)
	// OnStreamChunk fires for every non-empty content fragment, before the
	// next frame is processed.
	OnStreamChunk(sessionID, delta, accumulated string)
	// OnThinking reports elapsed wait time. active is false exactly once,
	// when the indicator is removed.
	OnThinking(elapsed time.Duration, active bool)
	OnCompleted(Completion)
	OnNotice(Notice)
	// OnLoginRequired asks the UI to prompt for credentials.
	OnLoginRequired()
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnQuota(quota.Snapshot) {}
func (NopObserver) OnStatus(bool, string) {}
func (NopObserver) OnPhase(Phase) {}
func (NopObserver) OnMessageAppended(string, session.Message) {}
func (NopObserver) OnStreamChunk(string, string, string) {}
func (NopObserver) OnThinking(time.Duration, bool) {}
func (NopObserver) OnCompleted(Completion) {}
func (NopObserver) OnNotice(Notice) {}
func (NopObserver) OnLoginRequired() {}
