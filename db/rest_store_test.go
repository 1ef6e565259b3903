// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeRealtimeDB struct {
	mu    sync.Mutex
	docs  map[string]string
	gets  int
	token string
}

func (f *fakeRealtimeDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.token != "" && r.URL.Query().Get("auth") != f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Permission denied"}`))
		return
	}

	key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")

	switch r.Method {
	case http.MethodGet:
		f.gets++
		body, ok := f.docs[key]
		if !ok {
			body = "null"
		}
		_, _ = w.Write([]byte(body))
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.docs[key] = string(body)
		_, _ = w.Write(body)
	case http.MethodPatch:
		body, _ := io.ReadAll(r.Body)

		existing := map[string]any{}
		if prev, ok := f.docs[key]; ok {
			_ = json.Unmarshal([]byte(prev), &existing)
		}

		var patch map[string]any
		_ = json.Unmarshal(body, &patch)
		for k, v := range patch {
			existing[k] = v
		}

		merged, _ := json.Marshal(existing)
		f.docs[key] = string(merged)
		_, _ = w.Write(merged)
	case http.MethodDelete:
		delete(f.docs, key)
		_, _ = w.Write([]byte("null"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestRESTStoreOperations(t *testing.T) {
	t.Parallel()

	fake := &fakeRealtimeDB{docs: map[string]string{}, token: "secret"}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	s := NewRESTStore(server.URL+"/", "secret", -1)

	if _, err := s.Get(ctx, "predictions/p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for null body, got %v", err)
	}

	if err := s.Set(ctx, "predictions/p1", map[string]any{"Glucose": 120}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.Update(ctx, "predictions/p1", map[string]any{"risk_level": "low"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	raw, err := s.Get(ctx, "predictions/p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("invalid JSON from store: %v", err)
	}

	if doc["risk_level"] != "low" || doc["Glucose"] != 120.0 {
		t.Fatalf("unexpected document %v", doc)
	}

	if err := s.Delete(ctx, "predictions/p1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Get(ctx, "predictions/p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRESTStoreReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeRealtimeDB{docs: map[string]string{}, token: "secret"}
	server := httptest.NewServer(fake)
	defer server.Close()

	s := NewRESTStore(server.URL, "wrong", -1)

	_, err := s.Get(context.Background(), "predictions/p1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected status error, got %v", err)
	}

	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}

func TestRESTStoreCacheInvalidatesOverlappingPaths(t *testing.T) {
	t.Parallel()

	fake := &fakeRealtimeDB{docs: map[string]string{
		"users/u1/predictions": `{"p1":true}`,
	}}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	s := NewRESTStore(server.URL, "", time.Minute)

	for range 3 {
		if _, err := s.Get(ctx, "users/u1/predictions"); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}

	fake.mu.Lock()
	gets := fake.gets
	fake.mu.Unlock()

	if gets != 1 {
		t.Fatalf("expected cached reads to hit the server once, got %d", gets)
	}

	if err := s.Set(ctx, "users/u1/predictions/p2", true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	fake.mu.Lock()
	fake.docs["users/u1/predictions"] = `{"p1":true,"p2":true}`
	fake.mu.Unlock()

	raw, err := s.Get(ctx, "users/u1/predictions")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !strings.Contains(string(raw), "p2") {
		t.Fatalf("expected parent cache entry to be invalidated, got %s", raw)
	}
}
