/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/flamego/flamego"
	"github.com/flamego/session"
	"github.com/flamego/template"

	"github.com/humaidq/glycowatch/db"
)

// sessionRevoker is implemented by session stores that can sign a user
// out everywhere.
type sessionRevoker interface {
	DestroyUserSessions(ctx context.Context, userID string) (int, error)
}

// adminUserView is an account as listed to admins.
type adminUserView struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	DisplayName     string `json:"display_name"`
	Role            string `json:"role"`
	CreatedAt       string `json:"created_at"`
	PredictionCount int    `json:"prediction_count"`
}

func listAdminUsers(ctx context.Context) ([]adminUserView, error) {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]adminUserView, 0, len(users))

	for _, u := range users {
		ids, err := db.ListUserPredictionIDs(ctx, u.ID)
		if err != nil {
			return nil, err
		}

		out = append(out, adminUserView{
			UserID:          u.ID,
			Email:           u.Email,
			DisplayName:     u.DisplayName,
			Role:            string(u.Role),
			CreatedAt:       u.CreatedAt.In(db.DisplayLocation()).Format("2006-01-02 15:04"),
			PredictionCount: len(ids),
		})
	}

	return out, nil
}

// AdminUsers lists every account.
func AdminUsers(c flamego.Context) {
	users, err := listAdminUsers(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list users", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load users")

		return
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   users,
		"total":   len(users),
	})
}

// AdminStats reports portal-wide counts.
func AdminStats(c flamego.Context) {
	ctx := c.Request().Context()

	users, err := db.ListUsers(ctx)
	if err != nil {
		logger.Error("Failed to count users", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load statistics")

		return
	}

	preds, err := db.ListAllPredictions(ctx)
	if err != nil {
		logger.Error("Failed to count predictions", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load statistics")

		return
	}

	comparisons := 0
	for _, p := range preds {
		comparisons += len(p.Comparisons)
	}

	stats := db.Statistics(preds)

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats": map[string]interface{}{
			"total_users":          len(users),
			"total_predictions":    stats.Total,
			"positive_predictions": stats.HighRisk,
			"total_comparisons":    comparisons,
		},
	})
}

// AdminPatientPredictions lists a patient's predictions.
func AdminPatientPredictions(c flamego.Context) {
	userID := c.Param("user_id")

	preds, err := db.ListUserPredictions(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Failed to list patient predictions", "user_id", userID, "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Failed to load predictions")

		return
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":     true,
		"user_id":     userID,
		"predictions": viewPredictions(preds),
		"total":       len(preds),
	})
}

// AdminDeleteUser removes an account and everything it owns.
func AdminDeleteUser(c flamego.Context, s session.Session, store session.Store, svc *Services) {
	deleted, err := deleteAccount(c.Request().Context(), s, store, svc, c.Param("user_id"))

	switch {
	case errors.Is(err, errCannotDeleteSelf):
		logAccessDenied(c, s, denySelfDelete, http.StatusBadRequest, "")
		writeJSONError(c, http.StatusBadRequest, "You cannot delete your own account")
	case errors.Is(err, db.ErrNotFound):
		writeJSONError(c, http.StatusNotFound, "User not found")
	case err != nil:
		writeJSONError(c, http.StatusInternalServerError, "Failed to delete user")
	default:
		writeJSON(c, http.StatusOK, map[string]interface{}{
			"success":             true,
			"message":             "User deleted",
			"deleted_predictions": deleted,
		})
	}
}

// AdminPage renders the account list.
func AdminPage(c flamego.Context, t template.Template, data template.Data) {
	users, err := listAdminUsers(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list users", "error", err)
		data["Error"] = "Failed to load users"
	}

	data["Users"] = users
	data["PageTitle"] = "Patients"
	t.HTML(http.StatusOK, "admin")
}

// AdminDeleteUserForm handles the delete button on the admin page.
func AdminDeleteUserForm(c flamego.Context, s session.Session, store session.Store, svc *Services) {
	deleted, err := deleteAccount(c.Request().Context(), s, store, svc, c.Param("user_id"))

	switch {
	case errors.Is(err, errCannotDeleteSelf):
		logAccessDenied(c, s, denySelfDelete, http.StatusSeeOther, "/admin")
		SetWarningFlash(s, "You cannot delete your own account")
	case errors.Is(err, db.ErrNotFound):
		SetErrorFlash(s, "User not found")
	case err != nil:
		SetErrorFlash(s, "Failed to delete user")
	default:
		SetSuccessFlash(s, fmt.Sprintf("User deleted with %d prediction(s)", deleted))
	}

	c.Redirect("/admin", http.StatusSeeOther)
}

// deleteAccount cascades an account deletion through predictions, chats,
// charts and live sessions. It returns the number of deleted predictions.
func deleteAccount(ctx context.Context, s session.Session, store session.Store, svc *Services, userID string) (int, error) {
	if actor, _ := getSessionUserID(s); actor == userID {
		return 0, errCannotDeleteSelf
	}

	if _, err := db.GetUser(ctx, userID); err != nil {
		return 0, err
	}

	deleted, err := db.DeleteUser(ctx, userID)
	if err != nil {
		logger.Error("Failed to delete user", "user_id", userID, "error", err)
		return len(deleted), err
	}

	if err := svc.Assets.RemoveOwner(userID); err != nil {
		logger.Warn("Failed to remove user charts", "user_id", userID, "error", err)
	}

	revoked := 0
	if revoker, ok := store.(sessionRevoker); ok {
		revoked, err = revoker.DestroyUserSessions(ctx, userID)
		if err != nil {
			logger.Warn("Failed to revoke user sessions", "user_id", userID, "error", err)
		}
	}

	logger.Info("User deleted",
		"user_id", userID,
		"predictions", len(deleted),
		"sessions", revoked,
	)

	return len(deleted), nil
}
