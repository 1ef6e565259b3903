/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"encoding/gob"

	"github.com/flamego/session"
)

// FlashType represents the type of flash message
type FlashType string

const (
	FlashError   FlashType = "error"
	FlashSuccess FlashType = "success"
	FlashWarning FlashType = "warning"
	FlashInfo    FlashType = "info"
)

// FlashMessage is shown once on the next rendered page.
type FlashMessage struct {
	Type    FlashType
	Message string
}

func init() {
	// Sessions are gob encoded by the document session store.
	gob.Register(FlashMessage{})
}

func setFlash(s session.Session, typ FlashType, message string) {
	s.SetFlash(FlashMessage{Type: typ, Message: message})
}

// SetErrorFlash sets an error flash message in the session
func SetErrorFlash(s session.Session, message string) {
	setFlash(s, FlashError, message)
}

// SetSuccessFlash sets a success flash message in the session
func SetSuccessFlash(s session.Session, message string) {
	setFlash(s, FlashSuccess, message)
}

// SetWarningFlash sets a warning flash message in the session
func SetWarningFlash(s session.Session, message string) {
	setFlash(s, FlashWarning, message)
}

// SetInfoFlash sets an info flash message in the session
func SetInfoFlash(s session.Session, message string) {
	setFlash(s, FlashInfo, message)
}
