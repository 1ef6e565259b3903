/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package chatbot answers health questions with the help of the patient's
// latest assessments, a small knowledge base and the stored conversation.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/llm"
	"github.com/humaidq/glycowatch/logging"
	"github.com/humaidq/glycowatch/utils"
)

var logger = logging.Logger(logging.SourceChatbot)

// Context limits for one reply.
const (
	MaxMessageLength    = 2000
	ContextPredictions  = 5
	ContextDocuments    = 2
	ContextMessages     = 6
	DocumentExcerptSize = 500
)

const systemPrompt = "You are a friendly health assistant for a diabetes risk portal. " +
	"Answer questions about diabetes risk, prevention, diet, exercise and the patient's own metrics. " +
	"Use simple language, keep answers to two to four short paragraphs and give practical advice. " +
	"You cannot diagnose conditions or prescribe medication; recommend seeing a doctor for serious concerns. " +
	"If reference material is provided, use it where it helps. If you are unsure, say so."

// Assistant produces chat replies. A nil Client makes it unavailable.
type Assistant struct {
	Client    llm.Client
	Knowledge *utils.KnowledgeBase
	Limiter   *Limiter
	Now       func() time.Time
}

// User identifies who is chatting.
type User struct {
	ID          string
	DisplayName string
}

func (a *Assistant) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}

	return time.Now().UTC()
}

// Available reports whether a language model is configured.
func (a *Assistant) Available() bool {
	return a != nil && a.Client != nil
}

// Reply answers message for user and stores both turns in the user's
// history. Nothing is stored when the model call fails.
func (a *Assistant) Reply(ctx context.Context, user User, message string) (*db.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	if !a.Available() {
		return nil, ErrUnavailable
	}

	if !a.Limiter.Allow(user.ID) {
		logger.Warn("Chat rate limit hit", "user_id", user.ID)
		return nil, ErrRateLimited
	}

	history, err := db.GetChatHistory(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	preds, err := db.LatestUserPredictions(ctx, user.ID, ContextPredictions)
	if err != nil {
		logger.Warn("Failed to load health context", "user_id", user.ID, "error", err)
		preds = nil
	}

	docs := a.Knowledge.Match(message, ContextDocuments)

	req := llm.Request{
		System:   systemPrompt,
		Messages: conversation(history),
	}
	req.Messages = append(req.Messages, llm.Message{
		Role:    llm.RoleUser,
		Content: BuildPrompt(user, preds, docs, message),
	})

	answer, err := a.Client.Generate(ctx, req)
	if errors.Is(err, llm.ErrNotConfigured) || errors.Is(err, llm.ErrUnavailable) {
		return nil, ErrUnavailable
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailed, err)
	}

	now := a.now()
	reply := db.ChatMessage{Role: db.ChatRoleAssistant, Content: answer, Timestamp: now}

	err = db.AppendChatMessages(ctx, user.ID,
		db.ChatMessage{Role: db.ChatRoleUser, Content: message, Timestamp: now},
		reply,
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Chat reply sent",
		"user_id", user.ID,
		"predictions", len(preds),
		"documents", len(docs),
		"history", len(history),
	)

	return &reply, nil
}

// conversation turns the newest stored messages into model turns. The
// first turn must come from the user.
func conversation(history []db.ChatMessage) []llm.Message {
	if len(history) > ContextMessages {
		history = history[len(history)-ContextMessages:]
	}

	for len(history) > 0 && history[0].Role != db.ChatRoleUser {
		history = history[1:]
	}

	msgs := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == db.ChatRoleAssistant {
			role = llm.RoleAssistant
		}

		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}

	return msgs
}

// BuildPrompt assembles the patient profile, reference excerpts and the
// question into the final user turn.
func BuildPrompt(user User, preds []*db.Prediction, docs []utils.KnowledgeDocument, message string) string {
	var b strings.Builder

	name := user.DisplayName
	if name == "" {
		name = "User"
	}

	b.WriteString("Patient profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", name)

	if len(preds) == 0 {
		b.WriteString("- Status: no risk assessments yet; suggest completing one for personalised insights\n")
	} else {
		latest := preds[0]
		fmt.Fprintf(&b, "- Latest assessment: %s (risk level %s, confidence %.1f%%)\n",
			orNA(latest.Prediction), orNA(latest.RiskLevel), latest.Confidence)
		fmt.Fprintf(&b, "- Assessment date: %s\n", latest.VisitLabel())

		for _, param := range []db.Parameter{db.ParamGlucose, db.ParamBloodPressure, db.ParamBMI, db.ParamAge} {
			fmt.Fprintf(&b, "- %s: %s\n", param.Label(), valueOrNA(latest.Measurements, param))
		}

		fmt.Fprintf(&b, "- Assessments on record: %d\n", len(preds))
	}

	if len(docs) > 0 {
		b.WriteString("\nReference material:\n")

		for _, doc := range docs {
			fmt.Fprintf(&b, "[%s]\n%s\n", doc.Title, doc.Excerpt(DocumentExcerptSize))
		}
	}

	b.WriteString("\nQuestion:\n")
	b.WriteString(message)

	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}

	return s
}

func valueOrNA(m db.Measurements, p db.Parameter) string {
	v, ok := m.Value(p)
	if !ok {
		return "N/A"
	}

	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
