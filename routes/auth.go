/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/flamego/flamego"
	"github.com/flamego/session"
	"github.com/flamego/template"

	"github.com/humaidq/glycowatch/db"
)

const minPasswordLength = 6

var sessionUserKeys = []string{"authenticated", "user_id", "user_is_admin", "user_display_name", "user_email"}

// LoginForm renders the login page
func LoginForm(c flamego.Context, t template.Template, data template.Data) {
	data["HeaderOnly"] = true
	data["PageTitle"] = "Sign in"
	t.HTML(http.StatusOK, "login")
}

// RegisterForm renders the account registration page.
func RegisterForm(c flamego.Context, t template.Template, data template.Data) {
	data["HeaderOnly"] = true
	data["PageTitle"] = "Create account"
	t.HTML(http.StatusOK, "register")
}

// Login handles the HTML login form.
func Login(c flamego.Context, s session.Session) {
	email := c.Request().FormValue("email")
	password := c.Request().FormValue("password")

	user, err := db.Authenticate(c.Request().Context(), email, password)
	if err != nil {
		if !errors.Is(err, db.ErrInvalidCredentials) {
			logger.Error("Login failed", "error", err)
		}

		logAccessDenied(c, s, denyInvalidCredentials, http.StatusSeeOther, "/login")
		SetErrorFlash(s, "Invalid email or password")
		c.Redirect("/login", http.StatusSeeOther)

		return
	}

	startSession(c, s, user)
	c.Redirect("/", http.StatusSeeOther)
}

// Register handles the HTML registration form.
func Register(c flamego.Context, s session.Session) {
	r := c.Request()

	if r.FormValue("password") != r.FormValue("confirm_password") {
		SetErrorFlash(s, registrationMessage(errPasswordMismatch))
		c.Redirect("/register", http.StatusSeeOther)
		return
	}

	_, err := registerUser(c, r.FormValue("email"), r.FormValue("password"), r.FormValue("display_name"))
	if err != nil {
		SetErrorFlash(s, registrationMessage(err))
		c.Redirect("/register", http.StatusSeeOther)
		return
	}

	SetSuccessFlash(s, "Account created, please sign in")
	c.Redirect("/login", http.StatusSeeOther)
}

// Logout handles logout request
func Logout(s session.Session, c flamego.Context) {
	endSession(s)
	c.Redirect("/login")
}

// RequireAuth is a middleware that checks if user is authenticated
func RequireAuth(s session.Session, c flamego.Context) {
	authenticated, ok := s.Get("authenticated").(bool)
	if ok && authenticated {
		c.Next()
		return
	}

	if isAPIRequest(c.Request()) {
		logAccessDenied(c, s, denyUnauthenticated, http.StatusUnauthorized, "")
		writeJSONError(c, http.StatusUnauthorized, "Authentication required")

		return
	}

	logAccessDenied(c, s, denyUnauthenticated, http.StatusFound, "/login")
	c.Redirect("/login")
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	FullName    string `json:"full_name"`
}

type sessionUser struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// APIRegister creates an account from a JSON body.
func APIRegister(c flamego.Context) {
	var req credentialsRequest
	if err := decodeJSON(c, &req); err != nil {
		writeJSONError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := req.DisplayName
	if name == "" {
		name = req.FullName
	}

	user, err := registerUser(c, req.Email, req.Password, name)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, db.ErrEmailTaken) {
			status = http.StatusConflict
		} else if !isRegistrationError(err) {
			status = http.StatusInternalServerError
		}

		writeJSONError(c, status, registrationMessage(err))

		return
	}

	writeJSON(c, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Registration successful",
		"user":    toSessionUser(user),
	})
}

// APILogin signs in with a JSON body.
func APILogin(c flamego.Context, s session.Session) {
	var req credentialsRequest
	if err := decodeJSON(c, &req); err != nil {
		writeJSONError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeJSONError(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := db.Authenticate(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, db.ErrInvalidCredentials) {
		logAccessDenied(c, s, denyInvalidCredentials, http.StatusUnauthorized, "")
		writeJSONError(c, http.StatusUnauthorized, "Invalid email or password")

		return
	}

	if err != nil {
		logger.Error("Login failed", "error", err)
		writeJSONError(c, http.StatusInternalServerError, "Login failed")

		return
	}

	startSession(c, s, user)

	redirect := "/"
	if user.IsAdmin() {
		redirect = "/admin"
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":  true,
		"user":     toSessionUser(user),
		"redirect": redirect,
	})
}

// APILogout ends the session.
func APILogout(c flamego.Context, s session.Session) {
	endSession(s)
	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out",
	})
}

// APISession describes the signed-in user, if any.
func APISession(c flamego.Context, s session.Session) {
	authenticated, userID := sessionAuthInfo(s)
	if !authenticated {
		writeJSON(c, http.StatusOK, map[string]interface{}{
			"success":       true,
			"authenticated": false,
			"user":          nil,
		})

		return
	}

	isAdmin, _ := s.Get("user_is_admin").(bool)
	displayName, _ := s.Get("user_display_name").(string)
	email, _ := s.Get("user_email").(string)

	role := db.RoleUser
	if isAdmin {
		role = db.RoleAdmin
	}

	writeJSON(c, http.StatusOK, map[string]interface{}{
		"success":       true,
		"authenticated": true,
		"user": sessionUser{
			UserID:      userID,
			Email:       email,
			DisplayName: displayName,
			Role:        string(role),
		},
	})
}

func startSession(c flamego.Context, s session.Session, user *db.User) {
	if err := s.RegenerateID(c.ResponseWriter(), c.Request().Request); err != nil {
		logger.Warn("Failed to regenerate session ID", "error", err)
	}

	s.Set("authenticated", true)
	s.Set("user_id", user.ID)
	s.Set("user_is_admin", user.IsAdmin())
	s.Set("user_display_name", user.DisplayName)
	s.Set("user_email", user.Email)

	logger.Info("User signed in", "user_id", user.ID, "admin", user.IsAdmin())
}

func endSession(s session.Session) {
	for _, key := range sessionUserKeys {
		s.Delete(key)
	}
}

func toSessionUser(u *db.User) sessionUser {
	return sessionUser{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
	}
}

func validateRegistration(email, password, displayName string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return errMissingCredentials
	}

	if addr, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil || addr.Address != strings.TrimSpace(email) {
		return errInvalidEmail
	}

	if utf8.RuneCountInString(password) < minPasswordLength {
		return errWeakPassword
	}

	if utf8.RuneCountInString(displayName) > 100 {
		return errDisplayNameTooLong
	}

	return nil
}

func registerUser(c flamego.Context, email, password, displayName string) (*db.User, error) {
	displayName = strings.TrimSpace(displayName)

	if err := validateRegistration(email, password, displayName); err != nil {
		return nil, err
	}

	user, err := db.CreateUser(c.Request().Context(), email, password, displayName, db.RoleUser)
	if err != nil {
		if !errors.Is(err, db.ErrEmailTaken) {
			logger.Error("Registration failed", "error", err)
		}

		return nil, err
	}

	logger.Info("User registered", "user_id", user.ID)

	return user, nil
}

func isRegistrationError(err error) bool {
	for _, known := range []error{errMissingCredentials, errInvalidEmail, errWeakPassword, errDisplayNameTooLong, errPasswordMismatch, db.ErrEmailTaken} {
		if errors.Is(err, known) {
			return true
		}
	}

	return false
}

func registrationMessage(err error) string {
	if errors.Is(err, db.ErrEmailTaken) {
		return "An account with this email already exists"
	}

	if isRegistrationError(err) {
		msg := err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:]
	}

	return "Registration failed"
}
