// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package charts

import (
	"errors"
	"testing"
)

func TestSanitizeOwner(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":             "anonymous",
		"u-1_a":        "u-1_a",
		"../etc":       "___etc",
		"a@b.com":      "a_b_com",
		"anonymous":    "anonymous",
		"with space/x": "with_space_x",
	}

	for in, want := range cases {
		if got := SanitizeOwner(in); got != want {
			t.Fatalf("SanitizeOwner(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAssetsRejectsEscapes(t *testing.T) {
	t.Parallel()

	a := Assets{Root: t.TempDir()}

	if _, err := a.Abs("../secret.png"); !errors.Is(err, errUnsafeAssetPath) {
		t.Fatalf("expected errUnsafeAssetPath, got %v", err)
	}

	if a.Exists("") {
		t.Fatal("empty path must not exist")
	}

	if _, err := (Assets{}).Abs("reports/x.png"); !errors.Is(err, errEmptyAssetRoot) {
		t.Fatalf("expected errEmptyAssetRoot, got %v", err)
	}
}

func TestAssetsWriteReadRemove(t *testing.T) {
	t.Parallel()

	a := Assets{Root: t.TempDir()}
	rel := a.RelPath("u1", "pred_1", KindCurrentVsNormal)

	if err := a.Write(rel, []byte("png")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := a.Read(rel)
	if err != nil || string(data) != "png" {
		t.Fatalf("Read returned %q, %v", data, err)
	}

	if URL(rel) != "/static/reports/u1/pred_1_current_vs_normal.png" {
		t.Fatalf("unexpected URL %q", URL(rel))
	}

	if err := a.RemoveOwner("u1"); err != nil {
		t.Fatalf("RemoveOwner failed: %v", err)
	}

	if a.Exists(rel) {
		t.Fatal("expected asset to be removed")
	}
}
