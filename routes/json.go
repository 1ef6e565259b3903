/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flamego/flamego"
)

const maxJSONBody = 1 << 20

func writeJSON(c flamego.Context, status int, v interface{}) {
	c.ResponseWriter().Header().Set("Content-Type", "application/json")
	c.ResponseWriter().WriteHeader(status)

	if err := json.NewEncoder(c.ResponseWriter()).Encode(v); err != nil {
		logger.Error("Failed to encode JSON response", "path", c.Request().URL.Path, "error", err)
	}
}

func writeJSONError(c flamego.Context, status int, message string) {
	writeJSON(c, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

func decodeJSON(c flamego.Context, dst interface{}) error {
	body := http.MaxBytesReader(c.ResponseWriter(), c.Request().Body().ReadCloser(), maxJSONBody)
	defer body.Close()

	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidJSON, err)
	}

	return nil
}
