/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flamego/session"
	"github.com/tidwall/gjson"
)

const sessionsRoot = "sessions"

// DocumentSessionConfig contains options for the document session store
type DocumentSessionConfig struct {
	// Lifetime is the duration to have no access to a session before being recycled.
	// Default is 7 days.
	Lifetime time.Duration
	// Encoder is the encoder to encode session data. Default is session.GobEncoder.
	Encoder session.Encoder
	// Decoder is the decoder to decode session data. Default is session.GobDecoder.
	Decoder session.Decoder
}

// DocumentSessionStore implements session.Store on top of the document store,
// one document per session under sessions/{sid}.
type DocumentSessionStore struct {
	config DocumentSessionConfig
}

type storedSession struct {
	Data      string    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentSessionIniter returns the Initer for the document session store
func DocumentSessionIniter() session.Initer {
	return func(_ context.Context, args ...interface{}) (session.Store, error) {
		var config DocumentSessionConfig
		if len(args) > 0 {
			var ok bool

			config, ok = args[0].(DocumentSessionConfig)
			if !ok {
				return nil, errors.New("invalid DocumentSessionConfig")
			}
		}

		return NewDocumentSessionStore(config), nil
	}
}

// NewDocumentSessionStore applies defaults to config and returns the store.
func NewDocumentSessionStore(config DocumentSessionConfig) *DocumentSessionStore {
	if config.Lifetime == 0 {
		config.Lifetime = 7 * 24 * time.Hour
	}

	if config.Encoder == nil {
		config.Encoder = session.GobEncoder
	}

	if config.Decoder == nil {
		config.Decoder = session.GobDecoder
	}

	return &DocumentSessionStore{config: config}
}

func sessionPath(sid string) string {
	return JoinPath(sessionsRoot, sid)
}

func (s *DocumentSessionStore) load(ctx context.Context, sid string) (*storedSession, error) {
	if !ValidSegment(sid) {
		return nil, ErrNotFound
	}

	var stored storedSession
	if err := getJSON(ctx, sessionPath(sid), &stored); err != nil {
		return nil, err
	}

	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrNotFound
	}

	return &stored, nil
}

// Exist returns true if the session with given ID exists and hasn't expired
func (s *DocumentSessionStore) Exist(ctx context.Context, sid string) bool {
	_, err := s.load(ctx, sid)
	return err == nil
}

// Read returns the session with given ID. If a session with the ID does not exist,
// a new session with the same ID is created and returned.
func (s *DocumentSessionStore) Read(ctx context.Context, sid string) (session.Session, error) {
	// The session middleware writes the cookie itself.
	idWriter := func(http.ResponseWriter, *http.Request, string) {}

	stored, err := s.load(ctx, sid)
	if errors.Is(err, ErrNotFound) {
		return session.NewBaseSession(sid, s.config.Encoder, idWriter), nil
	}

	if err != nil {
		return nil, err
	}

	data, err := s.decode(stored)
	if err != nil {
		logger.Warn("Discarding undecodable session", "error", err)
		return session.NewBaseSession(sid, s.config.Encoder, idWriter), nil
	}

	return session.NewBaseSessionWithData(sid, s.config.Encoder, idWriter, data), nil
}

func (s *DocumentSessionStore) decode(stored *storedSession) (session.Data, error) {
	raw, err := base64.StdEncoding.DecodeString(stored.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session payload: %w", err)
	}

	return s.config.Decoder(raw)
}

// Destroy deletes session with given ID from the session store completely
func (s *DocumentSessionStore) Destroy(ctx context.Context, sid string) error {
	st, err := activeStore()
	if err != nil {
		return err
	}

	if !ValidSegment(sid) {
		return nil
	}

	return st.Delete(ctx, sessionPath(sid))
}

// Touch updates the expiry time of the session with given ID
func (s *DocumentSessionStore) Touch(ctx context.Context, sid string) error {
	st, err := activeStore()
	if err != nil {
		return err
	}

	if !ValidSegment(sid) {
		return nil
	}

	return st.Update(ctx, sessionPath(sid), map[string]any{
		"expires_at": time.Now().Add(s.config.Lifetime).UTC(),
	})
}

// Save persists session data to the session store
func (s *DocumentSessionStore) Save(ctx context.Context, sess session.Session) error {
	st, err := activeStore()
	if err != nil {
		return err
	}

	if !ValidSegment(sess.ID()) {
		return fmt.Errorf("%w: session %q", ErrInvalidPath, sess.ID())
	}

	data, err := sess.Encode()
	if err != nil {
		return err
	}

	return st.Set(ctx, sessionPath(sess.ID()), storedSession{
		Data:      base64.StdEncoding.EncodeToString(data),
		ExpiresAt: time.Now().Add(s.config.Lifetime).UTC(),
	})
}

// GC performs a garbage collection operation on the session store
func (s *DocumentSessionStore) GC(ctx context.Context) error {
	_, err := s.sweep(ctx, func(expired bool, _ session.Data) bool {
		return expired
	})

	return err
}

// DestroyUserSessions deletes every live session signed in as userID and
// returns how many were removed.
func (s *DocumentSessionStore) DestroyUserSessions(ctx context.Context, userID string) (int, error) {
	return s.sweep(ctx, func(expired bool, data session.Data) bool {
		owner, _ := data["user_id"].(string)
		return !expired && owner != "" && owner == userID
	})
}

// sweep deletes the sessions for which doomed returns true. data is nil
// when a payload cannot be decoded.
func (s *DocumentSessionStore) sweep(ctx context.Context, doomed func(expired bool, data session.Data) bool) (int, error) {
	st, err := activeStore()
	if err != nil {
		return 0, err
	}

	raw, err := st.Get(ctx, sessionsRoot)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	now := time.Now()

	var victims []string

	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		stored := &storedSession{
			Data:      value.Get("data").String(),
			ExpiresAt: value.Get("expires_at").Time(),
		}

		data, err := s.decode(stored)
		if err != nil {
			data = nil
		}

		if doomed(now.After(stored.ExpiresAt), data) {
			victims = append(victims, key.String())
		}

		return true
	})

	for i, sid := range victims {
		if err := st.Delete(ctx, sessionPath(sid)); err != nil {
			return i, fmt.Errorf("failed to delete session %s: %w", sid, err)
		}
	}

	return len(victims), nil
}
