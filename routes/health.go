/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/flamego/flamego"

	"github.com/humaidq/glycowatch/db"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck reports whether the store answers and which optional
// services are configured. It returns 503 only when the store is down.
func HealthCheck(c flamego.Context, svc *Services) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	overall := "healthy"
	storeStatus := "ok"

	if err := db.Ping(ctx); err != nil {
		logger.Warn("Store health check failed", "error", err)

		status = http.StatusServiceUnavailable
		overall = "degraded"
		storeStatus = "unavailable"
	}

	documents := 0
	if svc.Assistant != nil {
		documents = svc.Assistant.Knowledge.Len()
	}

	writeJSON(c, status, map[string]interface{}{
		"status":              overall,
		"store":               storeStatus,
		"model_loaded":        svc.Model != nil,
		"llm_configured":      svc.llmAvailable(),
		"knowledge_documents": documents,
		"timestamp":           time.Now().UTC(),
	})
}
