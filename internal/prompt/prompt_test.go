// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/surveyor/internal/ollama"
	"github.com/jeranaias/surveyor/internal/session"
)

func TestEffectiveSystemPrompt(t *testing.T) {
	st := session.DefaultState()
	st.Templates = []session.Template{
		{ID: "a", Name: "A", System: "  system A  "},
		{ID: "b", Name: "B", System: ""},
	}

	st.SelectedTemplateID = "a"
	assert.Equal(t, "system A", EffectiveSystemPrompt(st))

	st.TemplateOverride["a"] = "   "
	assert.Equal(t, "system A", EffectiveSystemPrompt(st), "blank override is ignored")

	st.TemplateOverride["a"] = " custom "
	assert.Equal(t, "custom", EffectiveSystemPrompt(st))

	st.SelectedTemplateID = "b"
	assert.Equal(t, "", EffectiveSystemPrompt(st))

	st.SelectedTemplateID = "unknown"
	delete(st.TemplateOverride, "a")
	assert.Equal(t, "system A", EffectiveSystemPrompt(st), "unknown id falls back to first template")

	assert.Equal(t, "", EffectiveSystemPrompt(nil))
}

func conversation(n int) *session.Session {
	s := &session.Session{ID: "s"}
	for i := 0; i < n; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		s.Messages = append(s.Messages, session.Message{Role: role, Content: fmt.Sprint(i)})
	}
	return s
}

func TestBuildMessages_Order(t *testing.T) {
	st := session.DefaultState()
	st.HistoryLimit = 3
	sess := conversation(6)

	msgs := BuildMessages(st, sess, "next")

	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, []ollama.Message{
		{Role: "assistant", Content: "3"},
		{Role: "user", Content: "4"},
		{Role: "assistant", Content: "5"},
	}, msgs[1:4])
	assert.Equal(t, ollama.Message{Role: "user", Content: "next"}, msgs[4])
}

func TestBuildMessages_ZeroHistoryLimit(t *testing.T) {
	st := session.DefaultState()
	st.HistoryLimit = 0

	msgs := BuildMessages(st, conversation(40), "hi")
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestBuildMessages_BoundsForAllLimits(t *testing.T) {
	sess := conversation(70)
	sess.Messages = append(sess.Messages, session.Message{Role: session.RoleError, Content: "boom"})

	for limit := -5; limit <= 60; limit++ {
		st := session.DefaultState()
		st.HistoryLimit = limit

		msgs := BuildMessages(st, sess, "p")

		history := 0
		systems := 0
		users := 0
		for i, m := range msgs {
			switch {
			case m.Role == "system":
				systems++
			case i == len(msgs)-1:
				users++
			default:
				history++
				assert.NotEqual(t, "boom", m.Content, "error messages are never replayed")
			}
		}
		clamped := session.NormalizeHistoryLimit(limit)
		assert.LessOrEqual(t, history, clamped, "limit %d", limit)
		assert.LessOrEqual(t, systems, 1)
		assert.Equal(t, 1, users)
		assert.Equal(t, "p", msgs[len(msgs)-1].Content)
	}
}

func TestBuildMessages_NoSessionOrSystem(t *testing.T) {
	st := session.DefaultState()
	st.Templates = []session.Template{{ID: "empty", Name: "Empty"}}
	st.SelectedTemplateID = "empty"

	msgs := BuildMessages(st, nil, "hello")
	assert.Equal(t, []ollama.Message{{Role: "user", Content: "hello"}}, msgs)
}

func TestBuildMessages_DoesNotMutateSession(t *testing.T) {
	st := session.DefaultState()
	sess := conversation(5)
	before := sess.Clone()

	BuildMessages(st, sess, "x")
	assert.Equal(t, before, *sess)
}

func TestHistory_SkipsErrorsAndSystem(t *testing.T) {
	msgs := []session.Message{
		{Role: session.RoleUser, Content: "u1"},
		{Role: session.RoleError, Content: "e"},
		{Role: session.RoleSystem, Content: "s"},
		{Role: session.RoleAssistant, Content: "a1"},
	}
	assert.Equal(t, []ollama.Message{
		{Role: "user", Content: "u1"},
		{Role: "assistant", Content: "a1"},
	}, History(msgs, 10))
	assert.Nil(t, History(msgs, 0))
}
