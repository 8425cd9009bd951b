// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBlobNotFound is returned by Get when nothing was stored under a key.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for empty keys or keys containing path separators.
	ErrInvalidKey = errors.New("invalid storage key")
)

// StorageError wraps a backend failure with the operation and key involved.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// =============================================================================
// BLOB STORE
// =============================================================================

// BlobStore persists opaque blobs under string keys.
type BlobStore interface {
	// Get returns the blob for key or ErrBlobNotFound.
	Get(key string) ([]byte, error)
	// Put replaces the blob for key. A completed Put survives a crash.
	Put(key string, data []byte) error
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(key string) error
	Close() error
}

// Open creates a BlobStore for the named backend ("file" or "sqlite").
func Open(backend, path string) (BlobStore, error) {
	switch strings.ToLower(backend) {
	case "", "file":
		return NewFileBlobStore(path)
	case "sqlite":
		return NewSQLiteBlobStore(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryBlobStore keeps blobs in memory. Used by tests and --ephemeral runs.
type MemoryBlobStore struct {
	blobs map[string][]byte
	// FailPut, when set, is returned by every Put.
	FailPut error
}

// NewMemoryBlobStore creates an empty in-memory store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Get(key string) ([]byte, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBlobStore) Put(key string, data []byte) error {
	if m.FailPut != nil {
		return &StorageError{Op: "put", Key: key, Err: m.FailPut}
	}
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobStore) Delete(key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *MemoryBlobStore) Close() error { return nil }
