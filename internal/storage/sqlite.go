// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const blobSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteBlobStore keeps blobs in a single-table SQLite database.
type SQLiteBlobStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteBlobStore opens (or creates) the database at path.
func NewSQLiteBlobStore(path string) (*SQLiteBlobStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, &StorageError{Op: "open", Key: path, Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Key: path, Err: err}
	}
	// One writer at a time; the driver serializes anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &StorageError{Op: "open", Key: path, Err: err}
		}
	}

	if _, err := db.Exec(blobSchema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Key: path, Err: err}
	}

	return &SQLiteBlobStore{db: db, path: path}, nil
}

// Get reads the blob for key.
func (s *SQLiteBlobStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRow("SELECT value FROM blobs WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// Put upserts the blob for key.
func (s *SQLiteBlobStore) Put(key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, time.Now().Unix())
	if err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Delete removes the row for key.
func (s *SQLiteBlobStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM blobs WHERE key = ?", key); err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteBlobStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteBlobStore) Path() string {
	return s.path
}
