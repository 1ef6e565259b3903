/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import "errors"

var (
	// ErrNotFound is returned when a document path holds no value.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath is returned for empty paths or segments outside [A-Za-z0-9_-].
	ErrInvalidPath = errors.New("invalid document path")
	// ErrStoreNotInitialized is returned when Init has not been called.
	ErrStoreNotInitialized = errors.New("document store not initialized")
	// ErrUnknownBackend is returned for an unsupported store backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrDatabaseURLRequired is returned when the postgres backend has no connection string.
	ErrDatabaseURLRequired = errors.New("database url is required for the postgres store")
	// ErrStoreURLRequired is returned when the rest backend has no base URL.
	ErrStoreURLRequired = errors.New("store url is required for the rest store")
	// ErrDatabaseNameNotSpecified is returned when the connection string names no database.
	ErrDatabaseNameNotSpecified = errors.New("database name not specified in connection string")
	// ErrDatabaseConnectionNotInitialized is returned when the postgres pool is not open.
	ErrDatabaseConnectionNotInitialized = errors.New("database connection not initialized")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned when the email or password does not match.
	ErrInvalidCredentials = errors.New("invalid email or password")

	errUnexpectedStatus = errors.New("unexpected status from document store")
	errCorruptDocument  = errors.New("document store file is not valid JSON")
)
