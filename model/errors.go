/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package model

import "errors"

var (
	// ErrNotLoaded is returned when predictions are requested without a model.
	ErrNotLoaded = errors.New("prediction model is not loaded")
	// ErrInvalidInput is wrapped by every ValidationError.
	ErrInvalidInput = errors.New("invalid input")

	errFeatureCount  = errors.New("feature count mismatch")
	errEmptyArtifact = errors.New("model artifact has no coefficients")
)

// ValidationError names the rejected field and the accepted range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
