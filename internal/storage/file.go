// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"

	"github.com/jeranaias/surveyor/internal/util"
)

// FileBlobStore stores each key as <BaseDir>/<key>.json.
type FileBlobStore struct {
	// BaseDir is the directory holding blobs.
	// Default: ~/.surveyor/state/
	BaseDir string
}

// NewFileBlobStore creates a store rooted at baseDir, creating it if needed.
func NewFileBlobStore(baseDir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, &StorageError{Op: "open", Key: baseDir, Err: err}
	}
	return &FileBlobStore{BaseDir: baseDir}, nil
}

// Get reads the blob for key.
func (s *FileBlobStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// Put writes the blob atomically with fsync so a crash leaves either the
// old or the new contents, never a torn file.
func (s *FileBlobStore) Put(key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := util.AtomicWriteFile(s.filePath(key), data, 0600); err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Delete removes the blob file.
func (s *FileBlobStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileBlobStore) Close() error { return nil }

func (s *FileBlobStore) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}
