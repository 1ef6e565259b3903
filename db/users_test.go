// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"errors"
	"testing"
)

func TestCreateUserAndAuthenticate(t *testing.T) {
	useTempStore(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, " Patient@Example.com ", "s3cret-pass", "Pat", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if u.Role != RoleUser || u.Email != "patient@example.com" {
		t.Fatalf("unexpected user %+v", u)
	}

	if _, err := CreateUser(ctx, "patient@example.com", "x", "Again", RoleUser); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := Authenticate(ctx, "PATIENT@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if got.ID != u.ID {
		t.Fatalf("expected %s, got %s", u.ID, got.ID)
	}

	if _, err := Authenticate(ctx, "patient@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}

	if _, err := Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestEnsureAdminPromotesExistingAccount(t *testing.T) {
	useTempStore(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, "ops@example.com", "pw", "Ops", RoleUser)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	admin, err := EnsureAdmin(ctx, "ops@example.com", "ignored")
	if err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}

	if admin.ID != u.ID || !admin.IsAdmin() {
		t.Fatalf("expected promoted account, got %+v", admin)
	}

	stored, err := GetUser(ctx, u.ID)
	if err != nil || !stored.IsAdmin() {
		t.Fatalf("expected stored admin role, got %+v (%v)", stored, err)
	}

	fresh, err := EnsureAdmin(ctx, "root@example.com", "pw")
	if err != nil || !fresh.IsAdmin() {
		t.Fatalf("expected new admin account, got %+v (%v)", fresh, err)
	}

	users, err := ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestDeleteUserCascades(t *testing.T) {
	fs := useTempStore(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, "gone@example.com", "pw", "Gone", RoleUser)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	other := &Prediction{UserID: "someone-else"}
	if err := CreatePrediction(ctx, other); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}

	mine := &Prediction{UserID: u.ID}
	if err := CreatePrediction(ctx, mine); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}

	if err := AppendChatMessages(ctx, u.ID, ChatMessage{Role: ChatRoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendChatMessages failed: %v", err)
	}

	deleted, err := DeleteUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if len(deleted) != 1 || deleted[0] != mine.ID {
		t.Fatalf("unexpected deleted predictions %v", deleted)
	}

	if _, err := GetPrediction(ctx, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected owned prediction to be deleted, got %v", err)
	}

	if _, err := GetPrediction(ctx, other.ID); err != nil {
		t.Fatalf("expected other user's prediction to survive, got %v", err)
	}

	if _, err := GetUserByEmail(ctx, "gone@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected email index to be removed, got %v", err)
	}

	if _, err := fs.Get(ctx, "chats/"+u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected chats to be removed, got %v", err)
	}
}
