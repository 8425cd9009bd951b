// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"slices"
	"strings"
)

// =============================================================================
// GENERATION SETTINGS
// =============================================================================

// SelectModel sets the model for new requests and stamps it on the active
// session.
func (s *Store) SelectModel(name string) error {
	name = strings.TrimSpace(name)
	return s.Mutate(func(st *AppState) error {
		st.SelectedModel = name
		if a := st.Active(); a != nil {
			a.Model = name
		}
		return nil
	})
}

// SelectTemplate sets the template used for the system prompt.
func (s *Store) SelectTemplate(id string) error {
	return s.Mutate(func(st *AppState) error {
		if _, ok := st.TemplateByID(id); !ok {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		st.SelectedTemplateID = id
		if a := st.Active(); a != nil {
			a.TemplateID = id
		}
		return nil
	})
}

// SetStream toggles incremental responses.
func (s *Store) SetStream(on bool) error {
	return s.Mutate(func(st *AppState) error {
		st.Stream = on
		return nil
	})
}

// SetNumCtx stores the context size, clamped to [256, 32768].
// Non-positive values reset to the default.
func (s *Store) SetNumCtx(n int) (int, error) {
	n = NormalizeNumCtx(n)
	return n, s.Mutate(func(st *AppState) error {
		st.NumCtx = n
		return nil
	})
}

// SetTemperature stores the temperature, clamped to [0, 1.5].
func (s *Store) SetTemperature(f float64) (float64, error) {
	f = NormalizeTemperature(f)
	return f, s.Mutate(func(st *AppState) error {
		st.Temperature = f
		return nil
	})
}

// SetHistoryLimit stores how many past turns are replayed, clamped to [0, 50].
func (s *Store) SetHistoryLimit(n int) (int, error) {
	n = NormalizeHistoryLimit(n)
	return n, s.Mutate(func(st *AppState) error {
		st.HistoryLimit = n
		return nil
	})
}

// SetModels caches the known model names. When the selected model is empty
// or no longer offered, the first name is selected. Returns the selection.
func (s *Store) SetModels(names []string) (string, error) {
	var selected string
	err := s.Mutate(func(st *AppState) error {
		st.LastModels = append([]string{}, names...)
		if len(names) > 0 && (st.SelectedModel == "" || !slices.Contains(names, st.SelectedModel)) {
			st.SelectedModel = names[0]
		}
		selected = st.SelectedModel
		return nil
	})
	return selected, err
}

// =============================================================================
// TEMPLATES
// =============================================================================

// AddTemplate appends a user template and selects it.
func (s *Store) AddTemplate(name, system string) (Template, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(system) == "" {
		return Template{}, ErrInvalidTemplate
	}
	t := Template{ID: s.newID(), Name: name, System: system}
	err := s.Mutate(func(st *AppState) error {
		st.Templates = append(st.Templates, t)
		st.SelectedTemplateID = t.ID
		return nil
	})
	return t, err
}

// DeleteTemplate removes a template and its override. Deleting the last
// template restores the built-in set. The first template becomes selected.
func (s *Store) DeleteTemplate(id string) error {
	return s.Mutate(func(st *AppState) error {
		idx := slices.IndexFunc(st.Templates, func(t Template) bool { return t.ID == id })
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		st.Templates = slices.Delete(st.Templates, idx, idx+1)
		delete(st.TemplateOverride, id)
		if len(st.Templates) == 0 {
			st.Templates = DefaultTemplates()
		}
		st.SelectedTemplateID = st.Templates[0].ID
		return nil
	})
}

// SetTemplateOverride replaces the system prompt of template id with text.
// Blank text removes the override.
func (s *Store) SetTemplateOverride(id, text string) error {
	return s.Mutate(func(st *AppState) error {
		if _, ok := st.TemplateByID(id); !ok {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		if strings.TrimSpace(text) == "" {
			delete(st.TemplateOverride, id)
			return nil
		}
		st.TemplateOverride[id] = text
		return nil
	})
}
