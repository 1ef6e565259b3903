/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import "errors"

var (
	errDatabaseURLRequired   = errors.New("database-url is required (set via --database-url or DATABASE_URL env var)")
	errMigrationNameRequired = errors.New("migration name is required")
	errInvalidLogLevel       = errors.New("log-level must be one of: debug, info, warn, error")
	errAdminPasswordRequired = errors.New("admin-password is required when admin-email is set")
	errInvalidChatRate       = errors.New("chat-rate must be positive")
	errInvalidDisplayZone    = errors.New("display-tz must be an IANA time zone name")
)
