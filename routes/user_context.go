/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"context"
	"net/http"

	"github.com/flamego/flamego"
	"github.com/flamego/session"
	"github.com/flamego/template"

	"github.com/humaidq/glycowatch/analysis"
	"github.com/humaidq/glycowatch/db"
)

// UserContextInjector loads session user metadata into templates.
func UserContextInjector() flamego.Handler {
	return func(c flamego.Context, s session.Session, data template.Data) {
		authenticated, _ := s.Get("authenticated").(bool)
		data["IsAuthenticated"] = authenticated
		if !authenticated {
			return
		}

		user, err := resolveSessionUser(c.Request().Context(), s)
		if err != nil {
			logger.Error("Failed to resolve session user", "error", err)
			return
		}

		data["IsAdmin"] = user.IsAdmin()
		data["DisplayName"] = user.DisplayName
	}
}

// RequireAdmin blocks access for non-admin users.
func RequireAdmin(s session.Session, c flamego.Context) {
	isAdmin, err := resolveSessionIsAdmin(c.Request().Context(), s)
	if err == nil && isAdmin {
		c.Next()
		return
	}

	extra := []interface{}{}
	if err != nil {
		extra = append(extra, "error", err)
	}

	if isAPIRequest(c.Request()) {
		logAccessDenied(c, s, denyNotAdmin, http.StatusForbidden, "", extra...)
		writeJSONError(c, http.StatusForbidden, "Admin access required")
		return
	}

	logAccessDenied(c, s, denyNotAdmin, http.StatusSeeOther, "/", extra...)
	SetErrorFlash(s, "Access restricted")
	c.Redirect("/", http.StatusSeeOther)
}

func resolveSessionIsAdmin(ctx context.Context, s session.Session) (bool, error) {
	user, err := resolveSessionUser(ctx, s)
	if err != nil {
		return false, err
	}

	return user.IsAdmin(), nil
}

// resolveSessionUser prefers the account details cached in the session
// and falls back to the store, refreshing the cache.
func resolveSessionUser(ctx context.Context, s session.Session) (*db.User, error) {
	userID, ok := getSessionUserID(s)
	if !ok {
		return nil, errSessionUserMissing
	}

	isAdmin, hasAdmin := s.Get("user_is_admin").(bool)
	displayName, hasName := s.Get("user_display_name").(string)
	if hasAdmin && hasName {
		role := db.RoleUser
		if isAdmin {
			role = db.RoleAdmin
		}

		return &db.User{ID: userID, DisplayName: displayName, Role: role}, nil
	}

	user, err := db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.Set("user_display_name", user.DisplayName)
	s.Set("user_is_admin", user.IsAdmin())

	return user, nil
}

// sessionCaller is the identity analysis and report requests act for.
func sessionCaller(s session.Session) analysis.Caller {
	authenticated, userID := sessionAuthInfo(s)
	if !authenticated {
		return analysis.Caller{}
	}

	isAdmin, _ := s.Get("user_is_admin").(bool)

	return analysis.Caller{ID: userID, IsAdmin: isAdmin}
}

// predictionOwner is the owner recorded on new predictions.
func predictionOwner(s session.Session) string {
	if authenticated, userID := sessionAuthInfo(s); authenticated {
		return userID
	}

	return db.AnonymousOwner
}
