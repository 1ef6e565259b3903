/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// HealthKeywords are the topics a chat message and a knowledge document
// must both mention for the document to be offered as context.
var HealthKeywords = []string{
	"diabetes", "glucose", "blood", "sugar", "insulin", "bmi", "diet", "exercise",
	"prevention", "symptoms", "treatment", "risk", "health",
}

// KnowledgeDocument is one reference document for the chatbot, flattened
// to plain text.
type KnowledgeDocument struct {
	Name    string
	Title   string
	Content string
}

// KnowledgeBase holds the documents loaded from disk at startup together
// with the ones admins uploaded. Documents must not change once the base
// is shared; uploads are swapped in with SetUploaded.
type KnowledgeBase struct {
	Documents []KnowledgeDocument

	mu       sync.RWMutex
	uploaded []KnowledgeDocument
}

// LoadKnowledgeBase reads every .org, .md and .txt file directly inside
// dir. An empty dir yields an empty base. Unreadable or unparsable files
// are reported and skipped.
func LoadKnowledgeBase(dir string) (*KnowledgeBase, []error) {
	kb := &KnowledgeBase{}
	if strings.TrimSpace(dir) == "" {
		return kb, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return kb, []error{err}
	}

	if !info.IsDir() {
		return kb, []error{fmt.Errorf("%w: %s", errKnowledgeDirMissing, dir)}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return kb, []error{err}
	}

	var problems []error

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			problems = append(problems, err)
			continue
		}

		doc, err := ParseKnowledgeDocument(entry.Name(), string(raw))
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}

		kb.Documents = append(kb.Documents, doc)
	}

	sort.Slice(kb.Documents, func(i, j int) bool {
		return kb.Documents[i].Name < kb.Documents[j].Name
	})

	return kb, problems
}

// ParseKnowledgeDocument converts raw file content to a document based on
// the file extension.
func ParseKnowledgeDocument(name, raw string) (KnowledgeDocument, error) {
	doc := KnowledgeDocument{Name: name, Title: ExtractTitle(raw)}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".org":
		rendered, err := ParseOrgToHTML(raw)
		if err != nil {
			return doc, err
		}

		text, err := HTMLToText(rendered)
		if err != nil {
			return doc, fmt.Errorf("failed to flatten org document: %w", err)
		}

		doc.Content = text
	case ".md", ".txt":
		doc.Content = strings.TrimSpace(raw)
	default:
		return doc, fmt.Errorf("%w: %s", errUnsupportedDocument, filepath.Ext(name))
	}

	if doc.Title == "Untitled Note" {
		doc.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return doc, nil
}

// SetUploaded replaces the uploaded documents.
func (kb *KnowledgeBase) SetUploaded(docs []KnowledgeDocument) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	kb.uploaded = docs
}

func (kb *KnowledgeBase) all() []KnowledgeDocument {
	if kb == nil {
		return nil
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if len(kb.uploaded) == 0 {
		return kb.Documents
	}

	out := make([]KnowledgeDocument, 0, len(kb.Documents)+len(kb.uploaded))
	out = append(out, kb.Documents...)

	return append(out, kb.uploaded...)
}

// Len returns the number of documents. A nil base has none.
func (kb *KnowledgeBase) Len() int {
	return len(kb.all())
}

// Match returns up to limit documents relevant to message. A message that
// mentions no health keyword matches nothing; otherwise documents that
// share the most keywords with it come first.
func (kb *KnowledgeBase) Match(message string, limit int) []KnowledgeDocument {
	docs := kb.all()
	if len(docs) == 0 || limit <= 0 {
		return nil
	}

	wanted := keywordsIn(message)
	if len(wanted) == 0 {
		return nil
	}

	type scored struct {
		doc   KnowledgeDocument
		score int
	}

	var hits []scored

	for _, doc := range docs {
		present := keywordsIn(doc.Content)
		if len(present) == 0 {
			continue
		}

		score := 0
		for kw := range wanted {
			if present[kw] {
				score++
			}
		}

		hits = append(hits, scored{doc: doc, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]KnowledgeDocument, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}

	return out
}

func keywordsIn(text string) map[string]bool {
	lower := strings.ToLower(text)
	found := make(map[string]bool)

	for _, kw := range HealthKeywords {
		if strings.Contains(lower, kw) {
			found[kw] = true
		}
	}

	return found
}

// Excerpt returns at most n runes of the document content, marking a cut
// with an ellipsis.
func (d KnowledgeDocument) Excerpt(n int) string {
	runes := []rune(d.Content)
	if len(runes) <= n {
		return d.Content
	}

	return strings.TrimSpace(string(runes[:n])) + "..."
}
