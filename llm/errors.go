/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package llm

import "errors"

var (
	// ErrNotConfigured is returned when no API key was supplied.
	ErrNotConfigured = errors.New("llm is not configured")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("llm provider is unavailable")
	// ErrEmptyResponse is returned when the provider answered with no text.
	ErrEmptyResponse = errors.New("llm returned an empty response")
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")

	errUnexpectedStatus = errors.New("unexpected llm status")
	errProviderError    = errors.New("llm provider error")
)
