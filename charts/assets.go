/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package charts

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Chart kinds, used as file name suffixes.
const (
	KindCurrentVsNormal   = "current_vs_normal"
	KindHistoryComparison = "history_comparison"
	KindDoctorReport      = "doctor_report"
)

// URLPrefix is where the asset root is served over HTTP.
const URLPrefix = "/static/"

// ReportsDir is the asset subdirectory holding per-owner charts.
const ReportsDir = "reports"

var unsafeOwnerChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeOwner turns an owner ID into a safe directory name.
func SanitizeOwner(owner string) string {
	cleaned := unsafeOwnerChars.ReplaceAllString(owner, "_")
	if cleaned == "" {
		return "anonymous"
	}

	return cleaned
}

// Assets is the directory generated chart images are written to. Paths
// handed out are relative to Root and use forward slashes.
type Assets struct {
	Root string
}

// RelPath returns the relative path of a chart for owner and id.
func (a Assets) RelPath(owner, id, kind string) string {
	return path.Join(ReportsDir, SanitizeOwner(owner), SanitizeOwner(id)+"_"+kind+".png")
}

// TextPath returns the relative path of a narrative written for owner and
// id at the given time. Earlier narratives are kept.
func (a Assets) TextPath(owner, id, kind string, at time.Time) string {
	name := SanitizeOwner(id) + "_" + kind + "_" + at.UTC().Format("20060102_150405") + ".txt"

	return path.Join(ReportsDir, SanitizeOwner(owner), name)
}

// Abs resolves a relative asset path inside Root.
func (a Assets) Abs(rel string) (string, error) {
	if a.Root == "" {
		return "", errEmptyAssetRoot
	}

	cleaned := path.Clean("/" + strings.ReplaceAll(rel, "\\", "/"))
	if cleaned == "/" || strings.Contains(rel, "..") {
		return "", fmt.Errorf("%w: %q", errUnsafeAssetPath, rel)
	}

	return filepath.Join(a.Root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

// Exists reports whether the asset at rel is a readable file.
func (a Assets) Exists(rel string) bool {
	if rel == "" {
		return false
	}

	abs, err := a.Abs(rel)
	if err != nil {
		return false
	}

	info, err := os.Stat(abs)

	return err == nil && info.Mode().IsRegular()
}

// Read returns the bytes of the asset at rel.
func (a Assets) Read(rel string) ([]byte, error) {
	abs, err := a.Abs(rel)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(abs)
}

// Write stores data at rel, creating directories as needed.
func (a Assets) Write(rel string, data []byte) error {
	abs, err := a.Abs(rel)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}

	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset: %w", err)
	}

	return nil
}

// RemoveOwner deletes every chart generated for owner.
func (a Assets) RemoveOwner(owner string) error {
	if a.Root == "" {
		return errEmptyAssetRoot
	}

	return os.RemoveAll(filepath.Join(a.Root, ReportsDir, SanitizeOwner(owner)))
}

// URL returns the public URL of a relative asset path.
func URL(rel string) string {
	if rel == "" {
		return ""
	}

	return URLPrefix + strings.TrimPrefix(rel, "/")
}
