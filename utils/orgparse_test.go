// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/niklasfasching/go-org/org"
	nethtml "golang.org/x/net/html"
)

var (
	errTestBoom        = errors.New("boom")
	errTestWriteFailed = errors.New("write failed")
	errTestParseFailed = errors.New("parse failed")
)

func TestParseOrgToHTML(t *testing.T) {
	content := "* Heading\nSome text"

	rendered, err := ParseOrgToHTML(content)
	if err != nil {
		t.Fatalf("ParseOrgToHTML failed: %v", err)
	}

	if !strings.Contains(rendered, "Heading") {
		t.Fatalf("expected heading in output, got %s", rendered)
	}
}

func TestParseOrgToHTMLCodeBlocks(t *testing.T) {
	content := strings.Join([]string{
		"#+BEGIN_SRC go",
		"fmt.Println(\"<hi>\")",
		"#+END_SRC",
	}, "\n")

	rendered, err := ParseOrgToHTML(content)
	if err != nil {
		t.Fatalf("ParseOrgToHTML failed: %v", err)
	}

	if !strings.Contains(rendered, "<pre><code>") {
		t.Fatalf("expected code block in output, got %s", rendered)
	}

	if strings.Contains(rendered, "<hi>") {
		t.Fatalf("expected code to be escaped, got %s", rendered)
	}
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	got, err := HTMLToText("<h2>Diet</h2><p>Eat   more\nvegetables.</p><ul><li><p>Oats</p></li><li>Beans</li></ul><script>x()</script>")
	if err != nil {
		t.Fatalf("HTMLToText failed: %v", err)
	}

	for _, want := range []string{"Diet", "Eat more vegetables.", "- Oats", "- Beans"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}

	if strings.Contains(got, "x()") {
		t.Fatalf("expected scripts to be dropped, got %q", got)
	}

	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("expected blank lines to be collapsed, got %q", got)
	}
}

func TestHTMLToTextEmpty(t *testing.T) {
	t.Parallel()

	got, err := HTMLToText("   ")
	if err != nil || got != "" {
		t.Fatalf("expected empty text, got %q err=%v", got, err)
	}
}

func TestExtractTitle(t *testing.T) {
	content := "#+TITLE: My Note\n* Heading"
	if got := ExtractTitle(content); got != "My Note" {
		t.Fatalf("expected title from directive, got %q", got)
	}

	content = "* Heading Title\nSome text"
	if got := ExtractTitle(content); got != "Heading Title" {
		t.Fatalf("expected title from heading, got %q", got)
	}

	content = "# Markdown Title\nSome text"
	if got := ExtractTitle(content); got != "Markdown Title" {
		t.Fatalf("expected title from markdown heading, got %q", got)
	}

	content = "No title here"
	if got := ExtractTitle(content); got != "Untitled Note" {
		t.Fatalf("expected default title, got %q", got)
	}
}

func TestParseOrgToHTMLParseError(t *testing.T) {
	origParseOrg := parseOrg
	parseOrg = func(_ *org.Configuration, _ io.Reader) *org.Document {
		return &org.Document{Error: errTestBoom}
	}

	defer func() {
		parseOrg = origParseOrg
	}()

	if _, err := ParseOrgToHTML("content"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseOrgToHTMLWriteError(t *testing.T) {
	origWriteOrg := writeOrg
	writeOrg = func(_ *org.Document, _ *org.HTMLWriter) (string, error) {
		return "", errTestWriteFailed
	}

	defer func() {
		writeOrg = origWriteOrg
	}()

	if _, err := ParseOrgToHTML("content"); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestHTMLToTextParseError(t *testing.T) {
	origParseFragment := parseHTMLFragment
	parseHTMLFragment = func(_ io.Reader, _ *nethtml.Node) ([]*nethtml.Node, error) {
		return nil, errTestParseFailed
	}

	defer func() {
		parseHTMLFragment = origParseFragment
	}()

	if _, err := HTMLToText("<p>Hi</p>"); err == nil {
		t.Fatalf("expected parse error")
	}
}
