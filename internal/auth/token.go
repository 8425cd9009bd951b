// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies the bearer token sent to the inference gateway.
//
// A token comes from configuration or from a token file written by
// `surveyor login`. The file is private to the user (0600). Providers are
// consulted on every request, so a login in another terminal takes effect
// without restarting.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/surveyor/internal/util"
)

var (
	// ErrEmptyToken is returned by Login for a blank token.
	ErrEmptyToken = errors.New("token is empty")

	// ErrNoTokenFile is returned when an operation needs a token file and
	// none is configured.
	ErrNoTokenFile = errors.New("no token file configured")
)

// =============================================================================
// TOKEN FILE
// =============================================================================

// TokenFile stores a bearer token on disk.
type TokenFile struct {
	path string
}

// NewTokenFile returns a token file at path.
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Path returns the file location.
func (f *TokenFile) Path() string {
	return f.path
}

// Read returns the stored token, or "" when there is none.
func (f *TokenFile) Read() (string, error) {
	if f.path == "" {
		return "", nil
	}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write stores token atomically with owner-only permissions.
func (f *TokenFile) Write(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if f.path == "" {
		return ErrNoTokenFile
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := util.AtomicWriteFile(f.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Remove deletes the file. A missing file is not an error.
func (f *TokenFile) Remove() error {
	if f.path == "" {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider resolves the current token and renders it as request headers.
// It satisfies ollama.HeaderProvider.
type Provider struct {
	static string
	file   *TokenFile

	mu       sync.Mutex
	lastErr  error
	override string
}

// NewProvider returns a provider. static, when non-blank, always wins over
// the file.
func NewProvider(static string, file *TokenFile) *Provider {
	return &Provider{static: strings.TrimSpace(static), file: file}
}

// Token returns the token to send, or "" when not logged in.
func (p *Provider) Token() string {
	if p.static != "" {
		return p.static
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.override != "" {
		return p.override
	}
	if p.file == nil {
		return ""
	}
	token, err := p.file.Read()
	p.lastErr = err
	return token
}

// Err returns the last token file read error.
func (p *Provider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LoggedIn reports whether a token is available.
func (p *Provider) LoggedIn() bool {
	return p.Token() != ""
}

// AuthHeaders returns the Authorization header, or nil when logged out.
func (p *Provider) AuthHeaders() map[string]string {
	token := p.Token()
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// Login persists token to the file when one is configured, or keeps it in
// memory for this process otherwise.
func (p *Provider) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if p.file != nil && p.file.Path() != "" {
		return p.file.Write(token)
	}
	p.mu.Lock()
	p.override = token
	p.mu.Unlock()
	return nil
}

// Logout forgets the token and removes the file. A static token from
// configuration is unaffected.
func (p *Provider) Logout() error {
	p.mu.Lock()
	p.override = ""
	p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	return p.file.Remove()
}

// Source describes where the current token comes from.
func (p *Provider) Source() string {
	switch {
	case p.static != "":
		return "config"
	case p.Token() == "":
		return "none"
	case p.file != nil && p.file.Path() != "":
		return p.file.Path()
	default:
		return "memory"
	}
}
