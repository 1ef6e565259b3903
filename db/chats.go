/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxChatHistory is the number of chat messages kept per user.
const MaxChatHistory = 20

const chatsRoot = "chats"

// Chat message roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a chatbot conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func chatPath(userID string) string {
	return JoinPath(chatsRoot, userID, "messages")
}

// GetChatHistory returns a user's stored conversation, oldest first.
func GetChatHistory(ctx context.Context, userID string) ([]ChatMessage, error) {
	if !ValidSegment(userID) {
		return nil, nil
	}

	var msgs []ChatMessage

	err := getJSON(ctx, chatPath(userID), &msgs)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return msgs, nil
}

// AppendChatMessages adds messages to a user's history, keeping only the
// newest MaxChatHistory.
func AppendChatMessages(ctx context.Context, userID string, msgs ...ChatMessage) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	if !ValidSegment(userID) {
		return fmt.Errorf("%w: user %q", ErrInvalidPath, userID)
	}

	history, err := GetChatHistory(ctx, userID)
	if err != nil {
		return err
	}

	history = append(history, msgs...)
	if len(history) > MaxChatHistory {
		history = history[len(history)-MaxChatHistory:]
	}

	if err := s.Set(ctx, chatPath(userID), history); err != nil {
		return fmt.Errorf("failed to store chat history: %w", err)
	}

	return nil
}

// ClearChatHistory deletes a user's conversation.
func ClearChatHistory(ctx context.Context, userID string) error {
	s, err := activeStore()
	if err != nil {
		return err
	}

	if !ValidSegment(userID) {
		return nil
	}

	if err := s.Delete(ctx, JoinPath(chatsRoot, userID)); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}

	return nil
}
