// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultSessionName marks a session that has not been titled yet.
	DefaultSessionName = "New chat"

	// TitleMaxRunes bounds a title derived from the first prompt.
	TitleMaxRunes = 28

	DefaultStream       = true
	DefaultNumCtx       = 4096
	MinNumCtx           = 256
	MaxNumCtx           = 32768
	DefaultTemperature  = 0.7
	MinTemperature      = 0.0
	MaxTemperature      = 1.5
	DefaultHistoryLimit = 16
	MaxHistoryLimit     = 50
)

// =============================================================================
// MESSAGE
// =============================================================================

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleError records a failed request. Never sent to the model.
	RoleError Role = "error"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleError:
		return true
	}
	return false
}

// Message is one entry in a session. Messages are append-only.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	TS      time.Time `json:"ts"`
	Model   string    `json:"model,omitempty"`
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one persisted conversation thread.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Model      string    `json:"model"`
	TemplateID string    `json:"templateId"`
	Messages   []Message `json:"messages"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Messages = append(make([]Message, 0, len(s.Messages)), s.Messages...)
	return out
}

// IsUntitled reports whether the session still carries the default name.
func (s Session) IsUntitled() bool {
	return s.Name == DefaultSessionName || s.Name == ""
}

// =============================================================================
// TEMPLATE
// =============================================================================

// Template is a named system prompt preset.
type Template struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	System string `json:"system"`
}

// DefaultTemplates returns a fresh copy of the built-in presets.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:     "short_accurate",
			Name:   "Short & accurate",
			System: "Answer CORRECTLY and BRIEFLY. Do not make things up. If you don't know, say 'I don't know'.",
		},
		{
			ID:     "explanatory",
			Name:   "Explanatory",
			System: "Explain clearly, step by step. Where you are unsure say 'I don't know' and do not assume.",
		},
		{
			ID:     "code_assistant",
			Name:   "Code Assistant",
			System: "When writing code give short, working examples. Avoid suggestions that introduce security holes. If you don't know, say 'I don't know'.",
		},
		{
			ID:     "gis_sql",
			Name:   "GIS SQL Assistant (PostGIS)",
			System: "If the user asks for PostGIS/SQL: first summarize the need in one sentence, then give only the SQL required. Do not assume. Write safe queries (LIMIT, filters, comments).",
		},
	}
}

// =============================================================================
// APP STATE
// =============================================================================

// AppState is the whole persisted document.
type AppState struct {
	Stream             bool              `json:"stream"`
	NumCtx             int               `json:"num_ctx"`
	Temperature        float64           `json:"temperature"`
	HistoryLimit       int               `json:"historyLimit"`
	Templates          []Template        `json:"templates"`
	TemplateOverride   map[string]string `json:"templateOverride"`
	Sessions           []Session         `json:"sessions"`
	ActiveSessionID    string            `json:"activeSessionId"`
	SelectedModel      string            `json:"selectedModel"`
	SelectedTemplateID string            `json:"selectedTemplateId"`
	LastModels         []string          `json:"lastModels"`
}

// DefaultState returns the state used when nothing has been persisted.
func DefaultState() *AppState {
	templates := DefaultTemplates()
	return &AppState{
		Stream:             DefaultStream,
		NumCtx:             DefaultNumCtx,
		Temperature:        DefaultTemperature,
		HistoryLimit:       DefaultHistoryLimit,
		Templates:          templates,
		TemplateOverride:   map[string]string{},
		Sessions:           []Session{},
		SelectedTemplateID: templates[0].ID,
		LastModels:         []string{},
	}
}

// Clone returns a deep copy safe to read without holding the store lock.
func (st *AppState) Clone() *AppState {
	out := *st
	out.Templates = append([]Template(nil), st.Templates...)
	out.TemplateOverride = make(map[string]string, len(st.TemplateOverride))
	for k, v := range st.TemplateOverride {
		out.TemplateOverride[k] = v
	}
	out.Sessions = make([]Session, len(st.Sessions))
	for i, s := range st.Sessions {
		out.Sessions[i] = s.Clone()
	}
	out.LastModels = append([]string(nil), st.LastModels...)
	return &out
}

// FindSession returns a pointer into Sessions, or nil.
func (st *AppState) FindSession(id string) *Session {
	if id == "" {
		return nil
	}
	for i := range st.Sessions {
		if st.Sessions[i].ID == id {
			return &st.Sessions[i]
		}
	}
	return nil
}

// Active returns the active session, or nil when the pointer does not resolve.
func (st *AppState) Active() *Session {
	return st.FindSession(st.ActiveSessionID)
}

// TemplateByID looks up a template by id.
func (st *AppState) TemplateByID(id string) (Template, bool) {
	for _, t := range st.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// SelectedTemplate returns the selected template, falling back to the first.
func (st *AppState) SelectedTemplate() Template {
	if t, ok := st.TemplateByID(st.SelectedTemplateID); ok {
		return t
	}
	if len(st.Templates) > 0 {
		return st.Templates[0]
	}
	return Template{}
}
