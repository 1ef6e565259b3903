/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// PGStore keeps documents in the Postgres documents table. Each row holds
// the subtree under a two segment key such as "predictions/pred_1"; deeper
// paths are read and written inside that row's JSONB body.
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects, migrates and returns a Postgres backed store.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := openPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := SyncSchema(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to sync schema: %w", err)
	}

	return &PGStore{pool: pool}, nil
}

// NewPGStore wraps an existing pool. The documents table must exist.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const upsertDocumentSQL = `
	INSERT INTO documents (path, body, updated_at)
	VALUES ($1, $2::jsonb, NOW())
	ON CONFLICT (path) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`

func rowKey(segments []string) string {
	return JoinPath(segments[:2]...)
}

func (s *PGStore) Get(ctx context.Context, path string) ([]byte, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	if len(segments) == 1 {
		return s.getCollection(ctx, segments[0])
	}

	var body []byte

	err = s.pool.QueryRow(ctx, `SELECT body FROM documents WHERE path = $1`, rowKey(segments)).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if len(segments) == 2 {
		if string(body) == "null" {
			return nil, ErrNotFound
		}

		return body, nil
	}

	r := gjson.GetBytes(body, gjsonPath(segments[2:]))
	if !r.Exists() || r.Type == gjson.Null {
		return nil, ErrNotFound
	}

	return []byte(r.Raw), nil
}

// getCollection assembles every row under a top-level segment into one object.
func (s *PGStore) getCollection(ctx context.Context, collection string) ([]byte, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, body FROM documents WHERE starts_with(path, $1) ORDER BY path`, collection+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	out := []byte("{}")
	found := false

	for rows.Next() {
		var (
			rowPath string
			body    []byte
		)

		if err := rows.Scan(&rowPath, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		child := rowPath[len(collection)+1:]

		out, err = sjson.SetRawBytes(out, sjsonPath([]string{child}), body)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble collection: %w", err)
		}

		found = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	if !found {
		return nil, ErrNotFound
	}

	return out, nil
}

func (s *PGStore) Set(ctx context.Context, path string, value any) error {
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

	switch {
	case len(segments) == 1:
		return s.replaceCollection(ctx, segments[0], raw)
	case len(segments) == 2:
		if _, err := s.pool.Exec(ctx, upsertDocumentSQL, rowKey(segments), string(raw)); err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}

		return nil
	default:
		return s.modifyRow(ctx, segments, func(body []byte) ([]byte, error) {
			return sjson.SetRawBytes(body, sjsonPath(segments[2:]), raw)
		})
	}
}

func (s *PGStore) Update(ctx context.Context, path string, fields map[string]any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	if err := validFieldNames(fields); err != nil {
		return err
	}

	if len(segments) == 1 {
		for key, value := range fields {
			if err := s.Set(ctx, JoinPath(segments[0], key), value); err != nil {
				return err
			}
		}

		return nil
	}

	encoded := make(map[string][]byte, len(fields))
	for key, value := range fields {
		raw, err := marshalValue(value)
		if err != nil {
			return err
		}

		encoded[key] = raw
	}

	return s.modifyRow(ctx, segments, func(body []byte) ([]byte, error) {
		var err error

		for key, raw := range encoded {
			fieldPath := append(append([]string{}, segments[2:]...), key)

			body, err = sjson.SetRawBytes(body, sjsonPath(fieldPath), raw)
			if err != nil {
				return nil, err
			}
		}

		return body, nil
	})
}

func (s *PGStore) Delete(ctx context.Context, path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	switch {
	case len(segments) == 1:
		_, err = s.pool.Exec(ctx, `DELETE FROM documents WHERE starts_with(path, $1)`, segments[0]+"/")
	case len(segments) == 2:
		_, err = s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, rowKey(segments))
	default:
		return s.modifyRow(ctx, segments, func(body []byte) ([]byte, error) {
			return sjson.DeleteBytes(body, sjsonPath(segments[2:]))
		})
	}

	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// modifyRow runs a read-modify-write on one row under a row lock.
func (s *PGStore) modifyRow(ctx context.Context, segments []string, fn func(body []byte) ([]byte, error)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Warn("Failed to roll back document transaction", "error", err)
		}
	}()

	key := rowKey(segments)

	var body []byte

	err = tx.QueryRow(ctx, `SELECT body FROM documents WHERE path = $1 FOR UPDATE`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !gjson.ParseBytes(body).IsObject()) {
		body = []byte("{}")
	} else if err != nil {
		return fmt.Errorf("failed to lock document: %w", err)
	}

	next, err := fn(body)
	if err != nil {
		return fmt.Errorf("failed to modify document: %w", err)
	}

	if _, err := tx.Exec(ctx, upsertDocumentSQL, key, string(next)); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}

	return nil
}

func (s *PGStore) replaceCollection(ctx context.Context, collection string, raw []byte) error {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return fmt.Errorf("%w: collection %q must be an object", ErrInvalidPath, collection)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Warn("Failed to roll back collection transaction", "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE starts_with(path, $1)`, collection+"/"); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}

	var iterErr error

	parsed.ForEach(func(key, value gjson.Result) bool {
		if !ValidSegment(key.String()) {
			iterErr = fmt.Errorf("%w: %q", ErrInvalidPath, key.String())
			return false
		}

		if _, err := tx.Exec(ctx, upsertDocumentSQL, JoinPath(collection, key.String()), value.Raw); err != nil {
			iterErr = fmt.Errorf("failed to store document: %w", err)
			return false
		}

		return true
	})

	if iterErr != nil {
		return iterErr
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit collection: %w", err)
	}

	return nil
}
