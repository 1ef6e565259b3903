/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package chatbot

import "errors"

var (
	// ErrUnavailable is returned when no language model is configured or
	// the provider is failing fast.
	ErrUnavailable = errors.New("AI assistant not available")
	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("message is required")
	// ErrMessageTooLong is returned for messages over MaxMessageLength.
	ErrMessageTooLong = errors.New("message is too long")
	// ErrRateLimited is returned when a user sends messages too quickly.
	ErrRateLimited = errors.New("too many messages, please slow down")
	// ErrFailed wraps provider errors other than unavailability.
	ErrFailed = errors.New("failed to get a response")
)
