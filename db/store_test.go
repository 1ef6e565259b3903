// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestInitSelectsBackend(t *testing.T) {
	prev := GetStore()
	t.Cleanup(func() { UseStore(prev) })

	ctx := context.Background()

	if err := Init(ctx, Config{Backend: BackendFile, FilePath: filepath.Join(t.TempDir(), "db.json")}); err != nil {
		t.Fatalf("file Init failed: %v", err)
	}

	if _, ok := GetStore().(*FileStore); !ok {
		t.Fatalf("expected file store, got %T", GetStore())
	}

	if err := Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if err := Init(ctx, Config{Backend: BackendREST}); !errors.Is(err, ErrStoreURLRequired) {
		t.Fatalf("expected ErrStoreURLRequired, got %v", err)
	}

	if err := Init(ctx, Config{Backend: BackendPostgres}); !errors.Is(err, ErrDatabaseURLRequired) {
		t.Fatalf("expected ErrDatabaseURLRequired, got %v", err)
	}

	if err := Init(ctx, Config{Backend: "mongo"}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestOperationsWithoutStore(t *testing.T) {
	prev := UseStore(nil)
	t.Cleanup(func() { UseStore(prev) })

	if _, err := GetPrediction(context.Background(), "p1"); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("expected ErrStoreNotInitialized, got %v", err)
	}

	if err := Ping(context.Background()); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("expected ErrStoreNotInitialized from Ping, got %v", err)
	}
}

func TestSJSONPathEscapesDigits(t *testing.T) {
	t.Parallel()

	if got := sjsonPath([]string{"users", "42", "a1"}); got != "users.:42.a1" {
		t.Fatalf("unexpected sjson path %q", got)
	}
}
