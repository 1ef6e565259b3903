/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package report

import "errors"

var (
	// ErrNoPrediction is returned when Compose is called without a visit.
	ErrNoPrediction = errors.New("report needs a prediction")

	errRenderPDF = errors.New("failed to render pdf")
)
