/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package utils

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/niklasfasching/go-org/org"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var newOrgConfig = org.New

var parseOrg = func(config *org.Configuration, reader io.Reader) *org.Document {
	return config.Parse(reader, "")
}

var newHTMLWriter = org.NewHTMLWriter

var writeOrg = func(doc *org.Document, writer *org.HTMLWriter) (string, error) {
	return doc.Write(writer)
}

var parseHTMLFragment = nethtml.ParseFragment

// ParseOrgToHTML converts org-mode content to HTML.
func ParseOrgToHTML(content string) (string, error) {
	config := newOrgConfig()

	// Links are kept as plain text; knowledge documents are never served.
	config.ResolveLink = func(protocol string, description []org.Node, link string) org.Node {
		return org.RegularLink{
			Protocol:    protocol,
			Description: description,
			URL:         link,
		}
	}

	doc := parseOrg(config, strings.NewReader(content))
	if doc.Error != nil {
		return "", fmt.Errorf("failed to parse org-mode content: %w", doc.Error)
	}

	writer := newHTMLWriter()
	writer.HighlightCodeBlock = func(source, lang string, inline bool, params map[string]string) string {
		if inline {
			return `<code>` + html.EscapeString(source) + `</code>`
		}
		return `<pre><code>` + html.EscapeString(source) + `</code></pre>`
	}

	rendered, err := writeOrg(doc, writer)
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	return rendered, nil
}

// blockElements end a line when flattening HTML to text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Dt: true, atom.Dd: true, atom.Blockquote: true,
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// HTMLToText flattens an HTML fragment to plain text, one block per line.
// List items are prefixed with "- ".
func HTMLToText(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}

	container := &nethtml.Node{Type: nethtml.ElementNode, Data: "div", DataAtom: atom.Div}

	nodes, err := parseHTMLFragment(strings.NewReader(body), container)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, node := range nodes {
		writeText(&buf, node)
	}

	lines := strings.Split(buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}

	text := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")

	return strings.TrimSpace(text), nil
}

func writeText(buf *bytes.Buffer, node *nethtml.Node) {
	switch node.Type {
	case nethtml.TextNode:
		buf.WriteString(collapseSpace(node.Data))
		return
	case nethtml.ElementNode:
		if node.DataAtom == atom.Script || node.DataAtom == atom.Style {
			return
		}
	}

	block := node.Type == nethtml.ElementNode && blockElements[node.DataAtom] && !inListItem(node)
	if block {
		buf.WriteString("\n")
		if node.DataAtom == atom.Li {
			buf.WriteString("- ")
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(buf, child)
	}

	if block {
		buf.WriteString("\n")
	}
}

// inListItem reports whether node is a paragraph directly inside a list
// item, which stays on the item's line.
func inListItem(node *nethtml.Node) bool {
	return node.DataAtom == atom.P && node.Parent != nil && node.Parent.DataAtom == atom.Li
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}

	out := strings.Join(fields, " ")
	if strings.TrimLeft(s, " \t\r\n") != s {
		out = " " + out
	}

	if strings.TrimRight(s, " \t\r\n") != s {
		out += " "
	}

	return out
}

// ExtractTitle extracts the title from org-mode content
// Tries #+TITLE: first, then falls back to the first headline
func ExtractTitle(content string) string {
	reTitleDirective := regexp.MustCompile(`(?i)^\s*#\+TITLE:\s+(.+)$`)
	lines := strings.Split(content, "\n")

	for _, line := range lines {
		if matches := reTitleDirective.FindStringSubmatch(line); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}

	reHeadline := regexp.MustCompile(`(?m)^\*+\s+(.+)$`)
	if matches := reHeadline.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	reMarkdown := regexp.MustCompile(`(?m)^#+\s+(.+)$`)
	if matches := reMarkdown.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return "Untitled Note"
}
