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
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const knowledgeRoot = "chatbot_documents"

// MaxKnowledgeContent bounds the stored text of one knowledge document,
// in runes.
const MaxKnowledgeContent = 10000

// Knowledge document sources.
const (
	KnowledgeTypeFile = "file"
	KnowledgeTypeText = "text"
)

// KnowledgeDocument is a chatbot reference document uploaded by an admin.
// Content is the flattened text, not the uploaded bytes.
type KnowledgeDocument struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title,omitempty"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	UploadedAt time.Time `json:"uploaded_at"`
	UploadedBy string    `json:"uploaded_by"`
	Size       int       `json:"size"`
}

// NewKnowledgeID returns a fresh knowledge document ID.
func NewKnowledgeID() string {
	return "doc_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func knowledgePath(id string) string {
	return JoinPath(knowledgeRoot, id)
}

// AddKnowledgeDocument stores d, truncating its content. Missing IDs and
// upload times are filled in.
func AddKnowledgeDocument(ctx context.Context, d *KnowledgeDocument) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	if d.ID == "" {
		d.ID = NewKnowledgeID()
	}

	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}

	if !ValidSegment(d.ID) {
		return fmt.Errorf("%w: document %q", ErrInvalidPath, d.ID)
	}

	if runes := []rune(d.Content); len(runes) > MaxKnowledgeContent {
		d.Content = string(runes[:MaxKnowledgeContent])
	}

	if err := s.Set(ctx, knowledgePath(d.ID), d); err != nil {
		return fmt.Errorf("failed to store knowledge document: %w", err)
	}

	return nil
}

// ListKnowledgeDocuments returns every uploaded document, newest first.
// Entries that cannot be decoded are logged and skipped.
func ListKnowledgeDocuments(ctx context.Context) ([]*KnowledgeDocument, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	raw, err := s.Get(ctx, knowledgeRoot)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var docs []*KnowledgeDocument

	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		var d KnowledgeDocument
		if err := json.Unmarshal([]byte(value.Raw), &d); err != nil {
			logger.Warn("Skipping unreadable knowledge document", "doc_id", key.String(), "error", err)
			return true
		}

		if d.ID == "" {
			d.ID = key.String()
		}

		docs = append(docs, &d)

		return true
	})

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.After(docs[j].UploadedAt)
		}

		return docs[i].ID < docs[j].ID
	})

	return docs, nil
}

// DeleteKnowledgeDocument removes one uploaded document, or returns
// ErrNotFound.
func DeleteKnowledgeDocument(ctx context.Context, id string) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	if !ValidSegment(id) {
		return ErrNotFound
	}

	if _, err := s.Get(ctx, knowledgePath(id)); err != nil {
		return err
	}

	if err := s.Delete(ctx, knowledgePath(id)); err != nil {
		return fmt.Errorf("failed to delete knowledge document: %w", err)
	}

	return nil
}
