/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/flamego/flamego"
	"github.com/flamego/session"

	"github.com/humaidq/glycowatch/logging"
)

var requestLogger = logging.Logger(logging.SourceWebRequest)

// Reasons recorded on access_denied events.
const (
	denyUnauthenticated     = "unauthenticated"
	denyInvalidCredentials  = "invalid_credentials"
	denyNotOwner            = "not_owner"
	denyNotAdmin            = "not_admin"
	denySelfDelete          = "self_delete"
	roleFieldAdmin          = "admin"
	roleFieldUser           = "user"
	forwardedForHeader      = "X-Forwarded-For"
	realIPHeader            = "X-Real-IP"
	requestEvent            = "request"
	accessDeniedEvent       = "access_denied"
	comparisonCreatedEvent  = "comparison_created"
	predictionCreatedEvent  = "prediction_created"
	reportCreatedEvent      = "report_created"
	knowledgeAddedEvent     = "knowledge_added"
	knowledgeDeletedEvent   = "knowledge_deleted"
	requestLogDurationField = "duration_ms"
)

// RequestLogger logs one line per request once the handler chain returns.
// Server errors log at error level and client errors at warn level.
func RequestLogger(c flamego.Context, s session.Session) {
	start := time.Now()

	c.Next()

	status := c.ResponseWriter().Status()
	if status == 0 {
		status = http.StatusOK
	}

	fields := []interface{}{
		"event", requestEvent,
		"status", status,
		requestLogDurationField, time.Since(start).Milliseconds(),
	}
	fields = append(fields, baseRequestFields(c, s)...)

	switch {
	case status >= http.StatusInternalServerError:
		requestLogger.Error("request", fields...)
	case status >= http.StatusBadRequest:
		requestLogger.Warn("request", fields...)
	default:
		requestLogger.Info("request", fields...)
	}
}

func logAccessDenied(c flamego.Context, s session.Session, reason string, status int, redirect string, extra ...interface{}) {
	fields := []interface{}{
		"event", accessDeniedEvent,
		"reason", reason,
		"status", status,
	}
	if redirect != "" {
		fields = append(fields, "redirect", redirect)
	}

	fields = append(fields, baseRequestFields(c, s)...)
	fields = append(fields, extra...)

	requestLogger.Warn("access denied", fields...)
}

// logPipelineEvent records a completed write such as a new prediction or
// comparison, tagged with the caller that triggered it.
func logPipelineEvent(c flamego.Context, s session.Session, event string, extra ...interface{}) {
	fields := []interface{}{"event", event}
	fields = append(fields, baseRequestFields(c, s)...)
	fields = append(fields, extra...)

	requestLogger.Info(strings.ReplaceAll(event, "_", " "), fields...)
}

func baseRequestFields(c flamego.Context, s session.Session) []interface{} {
	authenticated, userID := sessionAuthInfo(s)

	fields := []interface{}{
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"ip", clientIP(c),
		"user_agent", c.Request().UserAgent(),
		"authenticated", authenticated,
	}

	if userID != "" {
		role := roleFieldUser
		if isAdmin, _ := s.Get("user_is_admin").(bool); isAdmin {
			role = roleFieldAdmin
		}

		fields = append(fields, "user_id", userID, "role", role)
	}

	return fields
}

func sessionAuthInfo(s session.Session) (bool, string) {
	if s == nil {
		return false, ""
	}

	authenticated, ok := s.Get("authenticated").(bool)
	if !ok || !authenticated {
		return false, ""
	}

	userID, _ := getSessionUserID(s)

	return true, userID
}

func getSessionUserID(s session.Session) (string, bool) {
	if userID, ok := s.Get("user_id").(string); ok && userID != "" {
		return userID, true
	}

	return "", false
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(c flamego.Context) string {
	header := c.Request().Header

	if forwardedFor := header.Get(forwardedForHeader); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(header.Get(realIPHeader)); ip != "" {
		return ip
	}

	return c.RemoteAddr()
}
