/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Store is a hierarchical JSON document store addressed by slash-separated
// key paths, e.g. "predictions/pred_1/comparisons/analysis_2".
type Store interface {
	// Get returns the raw JSON stored at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	// Set replaces the value at path, creating parents as needed.
	Set(ctx context.Context, path string, value any) error
	// Update merges the given fields into the object at path.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the value at path and everything below it.
	Delete(ctx context.Context, path string) error
	Close() error
}

// Store backends selectable through Config.Backend.
const (
	BackendFile     = "file"
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Config selects and configures the document store backend.
type Config struct {
	Backend     string
	FilePath    string
	URL         string
	AuthToken   string
	DatabaseURL string
	CacheTTL    time.Duration
}

var store Store

// Init opens the configured backend and makes it the package store.
func Init(ctx context.Context, cfg Config) error {
	var (
		s   Store
		err error
	)

	switch cfg.Backend {
	case BackendFile, "":
		s, err = OpenFileStore(cfg.FilePath)
	case BackendREST:
		if cfg.URL == "" {
			return ErrStoreURLRequired
		}

		s = NewRESTStore(cfg.URL, cfg.AuthToken, cfg.CacheTTL)
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return ErrDatabaseURLRequired
		}

		s, err = OpenPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}

	store = s
	logger.Info("Document store ready", "backend", cfg.Backend)

	return nil
}

// UseStore replaces the package store. It returns the previous store so
// callers can restore it.
func UseStore(s Store) Store {
	prev := store
	store = s

	return prev
}

// GetStore returns the package store, or nil before Init.
func GetStore() Store {
	return store
}

// Close closes the package store.
func Close() {
	if store == nil {
		return
	}

	if err := store.Close(); err != nil {
		logger.Warn("Failed to close document store", "error", err)
	}
}

// Ping checks that the store answers reads. A missing health document is
// a healthy answer.
func Ping(ctx context.Context) error {
	if store == nil {
		return ErrStoreNotInitialized
	}

	_, err := store.Get(ctx, "health")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	return nil
}

func activeStore() (Store, error) {
	if store == nil {
		return nil, ErrStoreNotInitialized
	}

	return store, nil
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// JoinPath builds a document path from segments.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidSegment reports whether s can be used as one path segment.
func ValidSegment(s string) bool {
	return segmentPattern.MatchString(s)
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrInvalidPath
	}

	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if !ValidSegment(seg) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}

	return segments, nil
}

// gjsonPath maps path segments to a gjson query path.
func gjsonPath(segments []string) string {
	return strings.Join(segments, ".")
}

// sjsonPath maps path segments to an sjson path. All-digit segments get
// the ':' prefix so they are written as object keys, not array indexes.
func sjsonPath(segments []string) string {
	out := make([]string, len(segments))
	for i, seg := range segments {
		if isDigits(seg) {
			out[i] = ":" + seg
		} else {
			out[i] = seg
		}
	}

	return strings.Join(out, ".")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return s != ""
}

func marshalValue(value any) ([]byte, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	return raw, nil
}

func validFieldNames(fields map[string]any) error {
	for key := range fields {
		if !ValidSegment(key) {
			return fmt.Errorf("%w: field %q", ErrInvalidPath, key)
		}
	}

	return nil
}

func getJSON(ctx context.Context, path string, v any) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	raw, err := s.Get(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}
