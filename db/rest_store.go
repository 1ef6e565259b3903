/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultRESTCacheTTL  = 2 * time.Second
	restCacheSize        = 512
	restRequestTimeout   = 15 * time.Second
	restMaxResponseBytes = 32 << 20
)

// RESTStore talks to a Firebase-style realtime database over REST:
// GET/PUT/PATCH/DELETE on {base}/{path}.json. Reads are cached briefly and
// every write drops the cached entries that overlap the written path.
type RESTStore struct {
	base   string
	auth   string
	client *http.Client
	cache  *expirable.LRU[string, []byte]
}

// NewRESTStore returns a store rooted at baseURL. A zero ttl uses a two
// second read cache; a negative ttl disables caching.
func NewRESTStore(baseURL, authToken string, ttl time.Duration) *RESTStore {
	s := &RESTStore{
		base:   strings.TrimSuffix(baseURL, "/"),
		auth:   authToken,
		client: &http.Client{Timeout: restRequestTimeout},
	}

	if ttl == 0 {
		ttl = defaultRESTCacheTTL
	}

	if ttl > 0 {
		s.cache = expirable.NewLRU[string, []byte](restCacheSize, nil, ttl)
	}

	return s
}

func (s *RESTStore) endpoint(segments []string) string {
	u := s.base + "/" + strings.Join(segments, "/") + ".json"
	if s.auth != "" {
		u += "?auth=" + url.QueryEscape(s.auth)
	}

	return u
}

func (s *RESTStore) Get(ctx context.Context, path string) ([]byte, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	key := JoinPath(segments...)
	if s.cache != nil {
		if body, ok := s.cache.Get(key); ok {
			return body, nil
		}
	}

	body, err := s.do(ctx, http.MethodGet, segments, nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, ErrNotFound
	}

	if s.cache != nil {
		s.cache.Add(key, trimmed)
	}

	return trimmed, nil
}

func (s *RESTStore) Set(ctx context.Context, path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	if value == nil {
		return s.Delete(ctx, path)
	}

	raw, err := marshalValue(value)
	if err != nil {
		return err
	}

	s.invalidate(segments)
	_, err = s.do(ctx, http.MethodPut, segments, raw)

	return err
}

func (s *RESTStore) Update(ctx context.Context, path string, fields map[string]any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	if err := validFieldNames(fields); err != nil {
		return err
	}

	raw, err := marshalValue(fields)
	if err != nil {
		return err
	}

	s.invalidate(segments)
	_, err = s.do(ctx, http.MethodPatch, segments, raw)

	return err
}

func (s *RESTStore) Delete(ctx context.Context, path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	s.invalidate(segments)
	_, err = s.do(ctx, http.MethodDelete, segments, nil)

	return err
}

func (s *RESTStore) Close() error {
	if s.cache != nil {
		s.cache.Purge()
	}

	s.client.CloseIdleConnections()

	return nil
}

// invalidate removes the cached path, its ancestors and its descendants.
func (s *RESTStore) invalidate(segments []string) {
	if s.cache == nil {
		return
	}

	key := JoinPath(segments...)
	for _, cached := range s.cache.Keys() {
		if cached == key || strings.HasPrefix(cached, key+"/") || strings.HasPrefix(key, cached+"/") {
			s.cache.Remove(cached)
		}
	}
}

func (s *RESTStore) do(ctx context.Context, method string, segments []string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(segments), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call document store: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, restMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read document store response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s returned %d: %s",
			errUnexpectedStatus, method, JoinPath(segments...), resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}
