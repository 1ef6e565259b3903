// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"path/filepath"
	"testing"
	"time"
)

func useTempStore(t *testing.T) *FileStore {
	t.Helper()

	fs, err := OpenFileStore(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	prev := UseStore(fs)
	t.Cleanup(func() {
		UseStore(prev)
	})

	return fs
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()

	tm, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}

	return tm
}
