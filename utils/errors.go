/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package utils

import "errors"

var (
	errUnsupportedDocument = errors.New("unsupported knowledge document type")
	errKnowledgeDirMissing = errors.New("knowledge directory is not a directory")
)
