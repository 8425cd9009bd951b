// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jeranaias/surveyor/internal/storage"
	"github.com/jeranaias/surveyor/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidTemplate  = errors.New("template name and system prompt are required")
)

// =============================================================================
// STORE
// =============================================================================

// Options configures a Store.
type Options struct {
	// Key namespaces the persisted blob. Default: "surveyor_ai_v2".
	Key string
	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time
	// NewID generates session and template ids. Default: uuid.NewString.
	NewID func() string
	// Logger receives persistence warnings. Default: discard.
	Logger *log.Logger
}

// Store owns the AppState and writes it through to a BlobStore after every
// mutation. All methods are safe for concurrent use; returned values are
// copies.
type Store struct {
	mu     sync.Mutex
	blobs  storage.BlobStore
	key    string
	state  *AppState
	clock  func() time.Time
	newID  func() string
	logger *log.Logger

	onChange func()
}

// Open loads the state from blobs and repairs the active session pointer.
// A missing or corrupt blob yields defaults; a storage failure is returned.
func Open(blobs storage.BlobStore, opts Options) (*Store, error) {
	s := &Store{
		blobs:  blobs,
		key:    opts.Key,
		clock:  opts.Clock,
		newID:  opts.NewID,
		logger: opts.Logger,
	}
	if s.key == "" {
		s.key = "surveyor_ai_v2"
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}

	data, err := blobs.Get(s.key)
	switch {
	case errors.Is(err, storage.ErrBlobNotFound):
		s.state = DefaultState()
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	default:
		st, bad := Decode(data)
		if len(bad) > 0 {
			s.logger.Warn("state fields reset to defaults", "fields", strings.Join(bad, ","))
		}
		s.state = st
	}

	if s.heal() {
		if err := s.persist(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OnChange registers fn to run after every successful mutation.
// fn runs without the store lock held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Mutate applies fn to the state and persists the result. If fn returns an
// error nothing is persisted; changes fn already made stay in memory, so fn
// should validate before it writes. A persistence failure is logged and
// returned, but the in-memory change stands.
func (s *Store) Mutate(fn func(st *AppState) error) error {
	s.mu.Lock()
	if err := fn(s.state); err != nil {
		s.mu.Unlock()
		return err
	}
	err := s.persist()
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return err
}

// now returns wall-clock UTC time without a monotonic reading so that
// persisted timestamps compare equal after a round trip.
func (s *Store) now() time.Time {
	return s.clock().UTC().Round(0)
}

// persist must be called with s.mu held.
func (s *Store) persist() error {
	data, err := Encode(s.state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.blobs.Put(s.key, data); err != nil {
		s.logger.Warn("failed to persist state", "err", err)
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// heal restores the active-session invariant. Must be called with s.mu held.
// Reports whether the state changed.
func (s *Store) heal() bool {
	if len(s.state.Sessions) == 0 {
		s.state.Sessions = append(s.state.Sessions, s.freshSession())
		s.state.ActiveSessionID = s.state.Sessions[0].ID
		return true
	}
	if s.state.Active() == nil {
		s.state.ActiveSessionID = s.state.Sessions[0].ID
		return true
	}
	return false
}

func (s *Store) freshSession() Session {
	now := s.now()
	return Session{
		ID:         s.newID(),
		Name:       DefaultSessionName,
		CreatedAt:  now,
		UpdatedAt:  now,
		Model:      s.state.SelectedModel,
		TemplateID: s.state.SelectedTemplateID,
		Messages:   []Message{},
	}
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// ActiveSession returns the active session, creating or selecting one when
// the pointer does not resolve. It never returns a missing session.
func (s *Store) ActiveSession() (Session, error) {
	s.mu.Lock()
	if a := s.state.Active(); a != nil {
		out := a.Clone()
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	var out Session
	err := s.Mutate(func(st *AppState) error {
		s.heal()
		out = st.Active().Clone()
		return nil
	})
	return out, err
}

// NewSession creates an empty session at the front of the list and makes it
// active.
func (s *Store) NewSession() (Session, error) {
	var out Session
	err := s.Mutate(func(st *AppState) error {
		out = s.freshSession()
		st.Sessions = append([]Session{out}, st.Sessions...)
		st.ActiveSessionID = out.ID
		return nil
	})
	return out.Clone(), err
}

// ClearActiveSession wipes the active session's messages and name, keeping
// its identity.
func (s *Store) ClearActiveSession() error {
	return s.Mutate(func(st *AppState) error {
		s.heal()
		a := st.Active()
		a.Messages = []Message{}
		a.Name = DefaultSessionName
		a.UpdatedAt = s.now()
		return nil
	})
}

// SetActiveSession points the active session at id.
func (s *Store) SetActiveSession(id string) error {
	return s.Mutate(func(st *AppState) error {
		if st.FindSession(id) == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		st.ActiveSessionID = id
		return nil
	})
}

// Sessions returns a copy of all sessions in display order.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, len(s.state.Sessions))
	for i, sess := range s.state.Sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Session returns a copy of the session with the given id.
func (s *Store) Session(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.state.FindSession(id)
	if sess == nil {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.Clone(), nil
}

// BeginTurn records a user prompt on the given session and stamps the model
// and template in use. An untitled session is named after the prompt first.
func (s *Store) BeginTurn(sessionID, prompt, model, templateID string) (Message, error) {
	var msg Message
	err := s.Mutate(func(st *AppState) error {
		sess := st.FindSession(sessionID)
		if sess == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		if sess.IsUntitled() {
			sess.Name = util.SummarizeTitle(prompt, TitleMaxRunes, DefaultSessionName)
		}
		msg = Message{Role: RoleUser, Content: prompt, TS: s.now(), Model: model}
		sess.Messages = append(sess.Messages, msg)
		sess.Model = model
		if templateID != "" {
			sess.TemplateID = templateID
		}
		sess.UpdatedAt = msg.TS
		return nil
	})
	return msg, err
}

// Append adds a message to the given session, stamping TS when unset.
func (s *Store) Append(sessionID string, msg Message) (Message, error) {
	err := s.Mutate(func(st *AppState) error {
		sess := st.FindSession(sessionID)
		if sess == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		if msg.TS.IsZero() {
			msg.TS = s.now()
		}
		sess.Messages = append(sess.Messages, msg)
		sess.UpdatedAt = msg.TS
		return nil
	})
	return msg, err
}

// AppendToActive adds a message to whatever session is active now, creating
// one if needed. It returns the id of the session written to.
func (s *Store) AppendToActive(msg Message) (string, error) {
	var id string
	err := s.Mutate(func(st *AppState) error {
		s.heal()
		a := st.Active()
		if msg.TS.IsZero() {
			msg.TS = s.now()
		}
		a.Messages = append(a.Messages, msg)
		a.UpdatedAt = msg.TS
		id = a.ID
		return nil
	})
	return id, err
}
