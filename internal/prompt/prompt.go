// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt resolves the effective system prompt and assembles the
// message list sent with each chat request.
package prompt

import (
	"strings"

	"github.com/jeranaias/surveyor/internal/ollama"
	"github.com/jeranaias/surveyor/internal/session"
)

// EffectiveSystemPrompt returns the system prompt for the selected template.
// A non-blank override for the selected id wins over the template's own
// text. Unknown ids fall back to the first template. The result is trimmed.
func EffectiveSystemPrompt(st *session.AppState) string {
	if st == nil {
		return ""
	}
	if override := strings.TrimSpace(st.TemplateOverride[st.SelectedTemplateID]); override != "" {
		return override
	}
	return strings.TrimSpace(st.SelectedTemplate().System)
}

// BuildMessages assembles the outbound conversation for prompt:
//
//  1. the effective system prompt, when non-blank
//  2. the last HistoryLimit user/assistant messages of sess, oldest first
//  3. prompt as a user message
//
// sess may be nil, in which case no history is included. Neither st nor
// sess is modified.
func BuildMessages(st *session.AppState, sess *session.Session, prompt string) []ollama.Message {
	var messages []ollama.Message

	if system := EffectiveSystemPrompt(st); system != "" {
		messages = append(messages, ollama.Message{Role: string(session.RoleSystem), Content: system})
	}

	limit := 0
	if st != nil {
		limit = session.NormalizeHistoryLimit(st.HistoryLimit)
	}
	if limit > 0 && sess != nil {
		messages = append(messages, History(sess.Messages, limit)...)
	}

	return append(messages, ollama.Message{Role: string(session.RoleUser), Content: prompt})
}

// History returns the last limit user and assistant messages in order.
// Error and system entries are never replayed.
func History(msgs []session.Message, limit int) []ollama.Message {
	if limit <= 0 {
		return nil
	}
	var out []ollama.Message
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		m := msgs[i]
		if m.Role != session.RoleUser && m.Role != session.RoleAssistant {
			continue
		}
		out = append(out, ollama.Message{Role: string(m.Role), Content: m.Content})
	}
	// Collected newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
