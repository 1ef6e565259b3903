/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package charts

import "errors"

var (
	errUnsafeAssetPath = errors.New("asset path escapes the asset root")
	errEmptyAssetRoot  = errors.New("asset root is not configured")
)
