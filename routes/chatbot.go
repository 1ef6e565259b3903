/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"errors"
	"net/http"

	"github.com/flamego/flamego"
	"github.com/flamego/session"

	"github.com/humaidq/glycowatch/chatbot"
	"github.com/humaidq/glycowatch/db"
)

type chatRequest struct {
	Message string `json:"message"`
}

// ChatbotMessage answers one question from the signed-in user.
func ChatbotMessage(c flamego.Context, s session.Session, svc *Services) {
	var req chatRequest
	if err := decodeJSON(c, &req); err != nil {
		writeJSONError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, _ := getSessionUserID(s)
	displayName, _ := s.Get("user_display_name").(string)

	reply, err := svc.Assistant.Reply(c.Request().Context(), chatbot.User{ID: userID, DisplayName: displayName}, req.Message)

	switch {
	case errors.Is(err, chatbot.ErrEmptyMessage):
		writeJSONError(c, http.StatusBadRequest, "Message cannot be empty")
	case errors.Is(err, chatbot.ErrMessageTooLong):
		writeJSONError(c, http.StatusBadRequest, "Message is too long")
	case errors.Is(err, chatbot.ErrRateLimited):
		writeJSONError(c, http.StatusTooManyRequests, "Too many messages, please wait a moment")
	case errors.Is(err, chatbot.ErrUnavailable):
		writeJSONError(c, http.StatusServiceUnavailable, "AI Assistant not available. Please configure an LLM API key.")
	case err != nil:
		logger.Error("Chatbot reply failed", "user_id", userID, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to get a response from the assistant")
	default:
		writeJSON(c, http.StatusOK, map[string]interface{}{
			"success":   true,
			"message":   reply.Content,
			"timestamp": reply.Timestamp,
		})
	}
}

// ChatbotHistory returns the signed-in user's conversation.
func ChatbotHistory(c flamego.Context, s session.Session) {
	userID, _ := getSessionUserID(s)

	msgs, err := db.GetChatHistory(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Failed to load chat history", "user_id", userID, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load chat history")

		return
	}

	if msgs == nil {
		msgs = []db.ChatMessage{}
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": msgs,
	})
}

// ChatbotClear deletes the signed-in user's conversation.
func ChatbotClear(c flamego.Context, s session.Session) {
	userID, _ := getSessionUserID(s)

	if err := db.ClearChatHistory(c.Request().Context(), userID); err != nil {
		logger.Error("Failed to clear chat history", "user_id", userID, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to clear chat history")

		return
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Chat history cleared",
	})
}
