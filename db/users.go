/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"
)

const userEmailsRoot = "user_emails"

// Role is the permission level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a portal account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the account has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailKey(email string) string {
	sum := sha256.Sum256([]byte(normalizeEmail(email)))
	return hex.EncodeToString(sum[:])[:32]
}

func accountPath(userID string) string {
	return JoinPath(usersRoot, userID, "account")
}

// CreateUser registers an account and its email index entry.
func CreateUser(ctx context.Context, email, password, displayName string, role Role) (*User, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	email = normalizeEmail(email)

	_, err = s.Get(ctx, JoinPath(userEmailsRoot, emailKey(email)))
	if err == nil {
		return nil, ErrEmailTaken
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if role == "" {
		role = RoleUser
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.Set(ctx, accountPath(u.ID), u); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	if err := s.Set(ctx, JoinPath(userEmailsRoot, emailKey(email)), u.ID); err != nil {
		return nil, fmt.Errorf("failed to index email: %w", err)
	}

	return u, nil
}

// GetUser loads an account by ID.
func GetUser(ctx context.Context, userID string) (*User, error) {
	if !ValidSegment(userID) {
		return nil, ErrNotFound
	}

	var u User
	if err := getJSON(ctx, accountPath(userID), &u); err != nil {
		return nil, err
	}

	return &u, nil
}

// GetUserByEmail loads an account through the email index.
func GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var userID string
	if err := getJSON(ctx, JoinPath(userEmailsRoot, emailKey(email)), &userID); err != nil {
		return nil, err
	}

	return GetUser(ctx, userID)
}

// Authenticate checks an email and password pair.
func Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}

	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// EnsureAdmin creates an admin account for email, or promotes the
// existing account.
func EnsureAdmin(ctx context.Context, email, password string) (*User, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	u, err := GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return CreateUser(ctx, email, password, "Administrator", RoleAdmin)
	}

	if err != nil {
		return nil, err
	}

	if u.IsAdmin() {
		return u, nil
	}

	if err := s.Update(ctx, accountPath(u.ID), map[string]any{"role": RoleAdmin}); err != nil {
		return nil, fmt.Errorf("failed to promote account: %w", err)
	}

	u.Role = RoleAdmin

	return u, nil
}

// ListUsers returns every account ordered by creation time.
func ListUsers(ctx context.Context) ([]*User, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	raw, err := s.Get(ctx, usersRoot)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var users []*User

	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		account := value.Get("account")
		if !account.IsObject() {
			return true
		}

		u := &User{
			ID:          key.String(),
			Email:       account.Get("email").String(),
			DisplayName: account.Get("display_name").String(),
			Role:        Role(account.Get("role").String()),
			CreatedAt:   account.Get("created_at").Time(),
		}
		users = append(users, u)

		return true
	})

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

// DeleteUser removes an account and everything it owns: predictions, the
// prediction index, chat history and the email index entry. It returns
// the IDs of the deleted predictions.
func DeleteUser(ctx context.Context, userID string) ([]string, error) {
	s, err := activeStore()
	if err != nil {
		return nil, err
	}

	if !ValidSegment(userID) {
		return nil, ErrNotFound
	}

	u, err := GetUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	deleted, err := DeleteUserPredictions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := ClearChatHistory(ctx, userID); err != nil {
		return deleted, err
	}

	if u != nil {
		if err := s.Delete(ctx, JoinPath(userEmailsRoot, emailKey(u.Email))); err != nil {
			return deleted, fmt.Errorf("failed to delete email index: %w", err)
		}
	}

	if err := s.Delete(ctx, JoinPath(usersRoot, userID)); err != nil {
		return deleted, fmt.Errorf("failed to delete account: %w", err)
	}

	return deleted, nil
}
