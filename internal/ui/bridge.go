// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
)

// Sender delivers a message into a running program. *tea.Program
// satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge turns engine events into Bubble Tea messages. It implements
// chat.Observer. Events raised before Attach, or after Detach, are dropped;
// the model reads initial state from the store instead.
//
// Send blocks until the program's event loop takes the message, so engine
// callbacks must never run while the engine holds its own lock.
type Bridge struct {
	mu     sync.RWMutex
	target Sender
}

var _ chat.Observer = (*Bridge)(nil)

// NewBridge returns a bridge with no program attached.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes events to s.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = s
}

// Detach stops routing events.
func (b *Bridge) Detach() {
	b.Attach(nil)
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	target := b.target
	b.mu.RUnlock()
	if target != nil {
		target.Send(msg)
	}
}

func (b *Bridge) OnQuota(s quota.Snapshot) { b.send(QuotaMsg{Snapshot: s}) }

func (b *Bridge) OnStatus(busy bool, text string) { b.send(StatusMsg{Busy: busy, Text: text}) }

func (b *Bridge) OnPhase(p chat.Phase) { b.send(PhaseMsg{Phase: p}) }

func (b *Bridge) OnMessageAppended(sessionID string, msg session.Message) {
	b.send(MessageAppendedMsg{SessionID: sessionID, Message: msg})
}

func (b *Bridge) OnStreamChunk(sessionID, delta, accumulated string) {
	b.send(StreamChunkMsg{SessionID: sessionID, Delta: delta, Accumulated: accumulated})
}

func (b *Bridge) OnThinking(elapsed time.Duration, active bool) {
	b.send(ThinkingMsg{Elapsed: elapsed, Active: active})
}

func (b *Bridge) OnCompleted(c chat.Completion) { b.send(CompletedMsg{Completion: c}) }

func (b *Bridge) OnNotice(n chat.Notice) { b.send(NoticeMsg{Notice: n}) }

func (b *Bridge) OnLoginRequired() { b.send(LoginRequiredMsg{}) }

// OnLoginState forwards token file changes. It matches the auth.Watcher
// callback.
func (b *Bridge) OnLoginState(loggedIn bool) { b.send(LoginStateMsg{LoggedIn: loggedIn}) }
