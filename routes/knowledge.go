/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/flamego/flamego"
	"github.com/flamego/session"

	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/utils"
)

const maxKnowledgeUpload = 2 << 20

type knowledgeTextRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// knowledgeUpload is a document as received, before parsing.
type knowledgeUpload struct {
	Name string
	Kind string
	Raw  []byte
}

// ReloadKnowledge swaps the uploaded documents into the assistant's
// knowledge base.
func (svc *Services) ReloadKnowledge(ctx context.Context) error {
	if svc.Assistant == nil || svc.Assistant.Knowledge == nil {
		return nil
	}

	docs, err := db.ListKnowledgeDocuments(ctx)
	if err != nil {
		return err
	}

	uploaded := make([]utils.KnowledgeDocument, 0, len(docs))
	for _, d := range docs {
		uploaded = append(uploaded, utils.KnowledgeDocument{
			Name:    d.ID,
			Title:   d.Title,
			Content: d.Content,
		})
	}

	svc.Assistant.Knowledge.SetUploaded(uploaded)

	return nil
}

func (svc *Services) reloadKnowledgeAfterChange(ctx context.Context) {
	if err := svc.ReloadKnowledge(ctx); err != nil {
		logger.Error("Failed to reload knowledge base", "error", err)
	}
}

// AdminKnowledgeDocuments lists the uploaded chatbot documents.
func AdminKnowledgeDocuments(c flamego.Context) {
	docs, err := db.ListKnowledgeDocuments(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list knowledge documents", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load documents")

		return
	}

	if docs == nil {
		docs = []*db.KnowledgeDocument{}
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":   true,
		"documents": docs,
	})
}

// AdminUploadKnowledgeDocument accepts a multipart "file" (.org, .md or
// .txt) or a JSON body with a title and text, stores the flattened text
// and reloads the knowledge base.
func AdminUploadKnowledgeDocument(c flamego.Context, s session.Session, svc *Services) {
	upload, err := readKnowledgeUpload(c)
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, uploadErrorMessage(err))
		return
	}

	parsed, err := utils.ParseKnowledgeDocument(upload.Name, string(upload.Raw))
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, uploadErrorMessage(err))
		return
	}

	if strings.TrimSpace(parsed.Content) == "" {
		writeJSONError(c, http.StatusBadRequest, uploadErrorMessage(errEmptyDocument))
		return
	}

	caller := sessionCaller(s)
	doc := &db.KnowledgeDocument{
		Filename:   upload.Name,
		Title:      parsed.Title,
		Type:       upload.Kind,
		Content:    parsed.Content,
		UploadedBy: caller.ID,
		Size:       len(upload.Raw),
	}

	if err := db.AddKnowledgeDocument(c.Request().Context(), doc); err != nil {
		logger.Error("Failed to store knowledge document", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to store document")

		return
	}

	svc.reloadKnowledgeAfterChange(c.Request().Context())

	logPipelineEvent(c, s, knowledgeAddedEvent, "doc_id", doc.ID, "type", doc.Type, "size", doc.Size)

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Document uploaded",
		"document": doc,
	})
}

// AdminDeleteKnowledgeDocument removes an uploaded document.
func AdminDeleteKnowledgeDocument(c flamego.Context, s session.Session, svc *Services) {
	id := c.Param("doc_id")

	err := db.DeleteKnowledgeDocument(c.Request().Context(), id)

	switch {
	case errors.Is(err, db.ErrNotFound):
		writeJSONError(c, http.StatusNotFound, "Document not found")
	case err != nil:
		logger.Error("Failed to delete knowledge document", "doc_id", id, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to delete document")
	default:
		svc.reloadKnowledgeAfterChange(c.Request().Context())
		logPipelineEvent(c, s, knowledgeDeletedEvent, "doc_id", id)

		writeJSON(c, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Document deleted",
		})
	}
}

func readKnowledgeUpload(c flamego.Context) (*knowledgeUpload, error) {
	r := c.Request().Request

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(c.ResponseWriter(), r.Body, maxKnowledgeUpload)

		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}

		if !utf8.Valid(raw) {
			return nil, errDocumentNotText
		}

		return &knowledgeUpload{Name: path.Base(filepath.ToSlash(header.Filename)), Kind: db.KnowledgeTypeFile, Raw: raw}, nil
	}

	var body knowledgeTextRequest
	if err := decodeJSON(c, &body); err != nil {
		return nil, err
	}

	if strings.TrimSpace(body.URL) != "" {
		return nil, errURLDocument
	}

	if strings.TrimSpace(body.Text) == "" {
		return nil, errEmptyDocument
	}

	name := strings.TrimSpace(body.Title)
	if name == "" {
		name = "Untitled"
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".org", ".md", ".txt":
	default:
		name += ".txt"
	}

	return &knowledgeUpload{Name: name, Kind: db.KnowledgeTypeText, Raw: []byte(body.Text)}, nil
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, errEmptyDocument), errors.Is(err, errURLDocument), errors.Is(err, errDocumentNotText):
		return err.Error()
	case errors.Is(err, http.ErrMissingFile):
		return "No file uploaded"
	case errors.Is(err, errInvalidJSON):
		return "Invalid request body"
	default:
		return "Unsupported document. Upload a .org, .md or .txt file"
	}
}
