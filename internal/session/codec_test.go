// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_CorruptOrEmptyYieldsDefaults(t *testing.T) {
	for name, blob := range map[string]string{
		"empty":     "",
		"garbage":   "{not json",
		"array":     "[1,2,3]",
		"null":      "null",
		"empty obj": "{}",
	} {
		t.Run(name, func(t *testing.T) {
			st, _ := Decode([]byte(blob))
			assert.Equal(t, DefaultState(), st)
		})
	}
}

func TestDecode_PerFieldDefaulting(t *testing.T) {
	blob := `{
		"stream": false,
		"num_ctx": "lots",
		"temperature": 1.2,
		"historyLimit": null,
		"selectedModel": 42,
		"lastModels": ["llama3", "qwen2"]
	}`

	st, bad := Decode([]byte(blob))

	assert.False(t, st.Stream, "valid field is kept")
	assert.Equal(t, DefaultNumCtx, st.NumCtx, "mistyped field falls back")
	assert.Equal(t, 1.2, st.Temperature)
	assert.Equal(t, DefaultHistoryLimit, st.HistoryLimit, "null falls back")
	assert.Equal(t, "", st.SelectedModel)
	assert.Equal(t, []string{"llama3", "qwen2"}, st.LastModels)
	assert.Equal(t, DefaultTemplates(), st.Templates)
	assert.ElementsMatch(t, []string{"num_ctx", "selectedModel"}, bad)
}

func TestDecode_ClampsTunables(t *testing.T) {
	st, _ := Decode([]byte(`{"num_ctx": 100000, "temperature": -3, "historyLimit": 99}`))
	assert.Equal(t, MaxNumCtx, st.NumCtx)
	assert.Equal(t, MinTemperature, st.Temperature)
	assert.Equal(t, MaxHistoryLimit, st.HistoryLimit)

	st, _ = Decode([]byte(`{"num_ctx": 12, "historyLimit": -4}`))
	assert.Equal(t, MinNumCtx, st.NumCtx)
	assert.Equal(t, 0, st.HistoryLimit)
}

func TestDecode_TemplatesAndSelection(t *testing.T) {
	t.Run("empty list restores built-ins", func(t *testing.T) {
		st, _ := Decode([]byte(`{"templates": []}`))
		assert.Equal(t, DefaultTemplates(), st.Templates)
		assert.Equal(t, DefaultTemplates()[0].ID, st.SelectedTemplateID)
	})

	t.Run("selection defaults to first stored template", func(t *testing.T) {
		st, _ := Decode([]byte(`{"templates": [{"id":"mine","name":"Mine","system":"be terse"}]}`))
		require.Len(t, st.Templates, 1)
		assert.Equal(t, "mine", st.SelectedTemplateID)
	})

	t.Run("explicit selection is kept", func(t *testing.T) {
		st, _ := Decode([]byte(`{"selectedTemplateId": "gis_sql"}`))
		assert.Equal(t, "gis_sql", st.SelectedTemplateID)
	})
}

func TestDecode_SkipsBrokenSessions(t *testing.T) {
	blob := `{"sessions": [
		{"id": "a", "name": "First", "messages": [{"role":"user","content":"hi"}]},
		{"id": 7},
		{"name": "no id"},
		{"id": "b"}
	]}`

	st, bad := Decode([]byte(blob))
	require.Len(t, st.Sessions, 2)
	assert.Equal(t, "a", st.Sessions[0].ID)
	assert.Equal(t, "b", st.Sessions[1].ID)
	assert.Equal(t, DefaultSessionName, st.Sessions[1].Name)
	assert.NotNil(t, st.Sessions[1].Messages)
	assert.Contains(t, bad, "sessions")
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	st := DefaultState()
	st.Stream = false
	st.NumCtx = 8192
	st.Temperature = 0.2
	st.HistoryLimit = 4
	st.Templates = append(st.Templates, Template{ID: "custom", Name: "Custom", System: "sys"})
	st.TemplateOverride["custom"] = "override"
	st.Sessions = []Session{{
		ID: "s1", Name: "Title", CreatedAt: ts, UpdatedAt: ts, Model: "llama3", TemplateID: "custom",
		Messages: []Message{
			{Role: RoleUser, Content: "hello", TS: ts, Model: "llama3"},
			{Role: RoleAssistant, Content: "hi!", TS: ts.Add(time.Second), Model: "llama3"},
			{Role: RoleError, Content: "HTTP 500", TS: ts.Add(2 * time.Second)},
		},
	}}
	st.ActiveSessionID = "s1"
	st.SelectedModel = "llama3"
	st.SelectedTemplateID = "custom"
	st.LastModels = []string{"llama3"}

	data, err := Encode(st)
	require.NoError(t, err)
	got, bad := Decode(data)
	assert.Empty(t, bad)
	assert.Equal(t, st, got)
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, DefaultNumCtx, NormalizeNumCtx(0))
	assert.Equal(t, DefaultNumCtx, NormalizeNumCtx(-1))
	assert.Equal(t, 2048, NormalizeNumCtx(2048))
	assert.Equal(t, DefaultTemperature, NormalizeTemperature(nan()))
	assert.Equal(t, 1.5, NormalizeTemperature(9))
	assert.Equal(t, 50, NormalizeHistoryLimit(51))
}
