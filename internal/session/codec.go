// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/jeranaias/surveyor/internal/util"
)

// Encode serializes the state for storage.
func Encode(st *AppState) ([]byte, error) {
	return json.Marshal(st)
}

// Decode parses a stored blob, applying defaults field by field.
//
// A blob that is not a JSON object yields DefaultState. Within an object each
// field is decoded on its own; a missing, null, or mistyped field keeps its
// default. Individual sessions that fail to decode are skipped. The second
// return value lists the fields that were present but unusable.
func Decode(data []byte) (*AppState, []string) {
	st := DefaultState()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return st, nil
	}

	var bad []string
	note := func(key string, ok bool) {
		if !ok {
			bad = append(bad, key)
		}
	}

	note("stream", field(raw, "stream", &st.Stream))
	note("num_ctx", field(raw, "num_ctx", &st.NumCtx))
	note("temperature", field(raw, "temperature", &st.Temperature))
	note("historyLimit", field(raw, "historyLimit", &st.HistoryLimit))
	note("templates", field(raw, "templates", &st.Templates))
	note("templateOverride", field(raw, "templateOverride", &st.TemplateOverride))
	note("activeSessionId", field(raw, "activeSessionId", &st.ActiveSessionID))
	note("selectedModel", field(raw, "selectedModel", &st.SelectedModel))
	note("selectedTemplateId", field(raw, "selectedTemplateId", &st.SelectedTemplateID))
	note("lastModels", field(raw, "lastModels", &st.LastModels))
	note("sessions", decodeSessions(raw["sessions"], &st.Sessions))

	_, hasSelected := raw["selectedTemplateId"]
	normalize(st, hasSelected)
	return st, bad
}

// field decodes raw[key] into dst. Absent and null values leave dst alone and
// count as success; a decode error leaves dst alone and reports false.
func field[T any](raw map[string]json.RawMessage, key string, dst *T) bool {
	v, ok := raw[key]
	if !ok || isNull(v) {
		return true
	}
	var tmp T
	if err := json.Unmarshal(v, &tmp); err != nil {
		return false
	}
	*dst = tmp
	return true
}

func decodeSessions(v json.RawMessage, dst *[]Session) bool {
	if v == nil || isNull(v) {
		return true
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return false
	}
	ok := true
	out := make([]Session, 0, len(items))
	for _, item := range items {
		var s Session
		if err := json.Unmarshal(item, &s); err != nil || s.ID == "" {
			ok = false
			continue
		}
		out = append(out, s)
	}
	*dst = out
	return ok
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// normalize clamps tunables and restores structural invariants that
// decoding alone cannot guarantee.
func normalize(st *AppState, hasSelected bool) {
	st.NumCtx = NormalizeNumCtx(st.NumCtx)
	st.Temperature = NormalizeTemperature(st.Temperature)
	st.HistoryLimit = NormalizeHistoryLimit(st.HistoryLimit)

	templates := make([]Template, 0, len(st.Templates))
	for _, t := range st.Templates {
		if t.ID != "" {
			templates = append(templates, t)
		}
	}
	st.Templates = templates
	if len(st.Templates) == 0 {
		st.Templates = DefaultTemplates()
	}
	if !hasSelected || st.SelectedTemplateID == "" {
		st.SelectedTemplateID = st.Templates[0].ID
	}

	if st.TemplateOverride == nil {
		st.TemplateOverride = map[string]string{}
	}
	if st.Sessions == nil {
		st.Sessions = []Session{}
	}
	for i := range st.Sessions {
		s := &st.Sessions[i]
		if s.Messages == nil {
			s.Messages = []Message{}
		}
		if s.Name == "" {
			s.Name = DefaultSessionName
		}
	}
	if st.LastModels == nil {
		st.LastModels = []string{}
	}
}

// NormalizeNumCtx clamps a context size; non-positive means unset.
func NormalizeNumCtx(n int) int {
	if n <= 0 {
		return DefaultNumCtx
	}
	return util.ClampInt(n, MinNumCtx, MaxNumCtx)
}

// NormalizeTemperature clamps a temperature; NaN and infinities mean unset.
func NormalizeTemperature(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultTemperature
	}
	return util.ClampFloat(f, MinTemperature, MaxTemperature)
}

// NormalizeHistoryLimit clamps the history window.
func NormalizeHistoryLimit(n int) int {
	return util.ClampInt(n, 0, MaxHistoryLimit)
}
