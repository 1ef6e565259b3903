/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package analysis

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput is returned for malformed comparison requests.
	ErrInvalidInput = errors.New("invalid comparison request")
	// ErrNotFound is returned when a requested prediction does not exist.
	ErrNotFound = errors.New("prediction not found")
	// ErrUnauthorized is returned when the caller may not read a prediction.
	ErrUnauthorized = errors.New("unauthorized access to prediction data")
	// ErrLLMUnavailable is returned when no language model is configured.
	ErrLLMUnavailable = errors.New("AI analysis service is unavailable")
	// ErrLLMFailure wraps a failed or timed out language model call.
	ErrLLMFailure = errors.New("AI analysis failed")
)

// SelectionError reports every ID of a batch that could not be used.
// Foreign IDs take precedence: the error is then ErrUnauthorized and its
// message does not name any ID.
type SelectionError struct {
	Missing []string
	Foreign []string
}

func (e *SelectionError) Error() string {
	if len(e.Foreign) > 0 {
		return ErrUnauthorized.Error()
	}

	return ErrNotFound.Error() + ": " + strings.Join(e.Missing, ", ")
}

// Is matches ErrUnauthorized or ErrNotFound.
func (e *SelectionError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return len(e.Foreign) > 0
	case ErrNotFound:
		return len(e.Foreign) == 0 && len(e.Missing) > 0
	}

	return false
}
