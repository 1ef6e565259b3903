/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import "errors"

var (
	errSessionUserMissing = errors.New("session user missing")
	errInvalidJSON        = errors.New("invalid JSON body")
	errMissingCredentials = errors.New("email and password are required")
	errInvalidEmail       = errors.New("please enter a valid email address")
	errWeakPassword       = errors.New("password must be at least 6 characters")
	errPasswordMismatch   = errors.New("passwords do not match")
	errDisplayNameTooLong = errors.New("display name must be at most 100 characters")
	errCannotDeleteSelf   = errors.New("admins cannot delete their own account")
	errEmptyDocument      = errors.New("document text is required")
	errURLDocument        = errors.New("documents can only be uploaded as a file or as text")
	errDocumentNotText    = errors.New("document must be UTF-8 text")
)
