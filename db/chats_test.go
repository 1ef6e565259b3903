// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"fmt"
	"testing"
)

func TestChatHistoryIsBounded(t *testing.T) {
	useTempStore(t)
	ctx := context.Background()

	for i := range MaxChatHistory + 5 {
		msg := ChatMessage{Role: ChatRoleUser, Content: fmt.Sprintf("message %d", i)}
		if err := AppendChatMessages(ctx, "u1", msg); err != nil {
			t.Fatalf("AppendChatMessages failed: %v", err)
		}
	}

	history, err := GetChatHistory(ctx, "u1")
	if err != nil {
		t.Fatalf("GetChatHistory failed: %v", err)
	}

	if len(history) != MaxChatHistory {
		t.Fatalf("expected %d messages, got %d", MaxChatHistory, len(history))
	}

	if history[0].Content != "message 5" {
		t.Fatalf("expected oldest kept message to be 'message 5', got %q", history[0].Content)
	}

	if err := ClearChatHistory(ctx, "u1"); err != nil {
		t.Fatalf("ClearChatHistory failed: %v", err)
	}

	history, err = GetChatHistory(ctx, "u1")
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history after clear, got %v (%v)", history, err)
	}
}
