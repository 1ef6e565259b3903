/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultFilePath is the local document store used when no path is given.
const DefaultFilePath = "data/local_database.json"

// FileStore keeps the whole document tree in one JSON file. Writes are
// serialized and replace the file atomically.
type FileStore struct {
	mu   sync.RWMutex
	path string
	doc  []byte
}

// OpenFileStore loads path, creating an empty tree when it does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	doc, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && len(doc) == 0):
		doc = []byte("{}")
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	case !gjson.ValidBytes(doc):
		return nil, fmt.Errorf("%w: %s", errCorruptDocument, path)
	}

	return &FileStore{path: path, doc: doc}, nil
}

func (s *FileStore) Get(_ context.Context, path string) ([]byte, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r := gjson.GetBytes(s.doc, gjsonPath(segments))
	if !r.Exists() || r.Type == gjson.Null {
		return nil, ErrNotFound
	}

	out := make([]byte, len(r.Raw))
	copy(out, r.Raw)

	return out, nil
}

func (s *FileStore) Set(_ context.Context, path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	if value == nil {
		return s.mutate(func(doc []byte) ([]byte, error) {
			return sjson.DeleteBytes(doc, sjsonPath(segments))
		})
	}

	raw, err := marshalValue(value)
	if err != nil {
		return err
	}

	return s.mutate(func(doc []byte) ([]byte, error) {
		return sjson.SetRawBytes(doc, sjsonPath(segments), raw)
	})
}

func (s *FileStore) Update(_ context.Context, path string, fields map[string]any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	if err := validFieldNames(fields); err != nil {
		return err
	}

	encoded := make(map[string][]byte, len(fields))
	for key, value := range fields {
		raw, err := marshalValue(value)
		if err != nil {
			return err
		}

		encoded[key] = raw
	}

	return s.mutate(func(doc []byte) ([]byte, error) {
		for key, raw := range encoded {
			fieldPath := sjsonPath(append(append([]string{}, segments...), key))

			doc, err = sjson.SetRawBytes(doc, fieldPath, raw)
			if err != nil {
				return nil, err
			}
		}

		return doc, nil
	})
}

func (s *FileStore) Delete(_ context.Context, path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	return s.mutate(func(doc []byte) ([]byte, error) {
		return sjson.DeleteBytes(doc, sjsonPath(segments))
	})
}

func (s *FileStore) Close() error {
	return nil
}

// mutate applies fn to a copy of the tree and persists the result before
// it becomes visible to readers.
func (s *FileStore) mutate(fn func(doc []byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make([]byte, len(s.doc))
	copy(working, s.doc)

	next, err := fn(working)
	if err != nil {
		return fmt.Errorf("failed to modify document: %w", err)
	}

	if err := writeFileAtomic(s.path, next); err != nil {
		return err
	}

	s.doc = next

	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}

	tmpName := tmp.Name()
	cleanup := func() {
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove temp store file", "path", tmpName, "error", err)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()

		return fmt.Errorf("failed to write store file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()

		return fmt.Errorf("failed to sync store file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close store file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	return nil
}
