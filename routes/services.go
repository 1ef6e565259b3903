/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"strings"

	"github.com/flamego/flamego"

	"github.com/humaidq/glycowatch/analysis"
	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/chatbot"
	"github.com/humaidq/glycowatch/model"
)

// Services are the long-lived dependencies handlers need. One value is
// mapped into the flamego injector at startup.
type Services struct {
	Assets    charts.Assets
	Model     *model.Model
	Assembler *analysis.Assembler
	Assistant *chatbot.Assistant
	// BaseURL is the public origin used in links printed on reports. When
	// empty it is derived from the request.
	BaseURL string
}

// llmAvailable reports whether narratives can be generated.
func (svc *Services) llmAvailable() bool {
	return svc.Assembler != nil && svc.Assembler.Synthesizer.Available()
}

// externalURL turns an absolute path into a full URL for printing.
func (svc *Services) externalURL(r *flamego.Request, path string) string {
	if base := strings.TrimRight(strings.TrimSpace(svc.BaseURL), "/"); base != "" {
		return base + path
	}

	return buildExternalURL(r, path)
}

func buildExternalURL(r *flamego.Request, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		if idx := strings.Index(proto, ","); idx != -1 {
			proto = proto[:idx]
		}

		if proto = strings.TrimSpace(proto); proto != "" {
			scheme = proto
		}
	}

	host := r.Host
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}

	if host == "" {
		return path
	}

	return scheme + "://" + host + path
}

// isAPIRequest reports whether the caller expects JSON rather than pages.
func isAPIRequest(r *flamego.Request) bool {
	p := r.URL.Path
	if strings.HasPrefix(p, "/api/") || p == "/predict" || p == "/statistics" || p == "/prediction/analysis" {
		return true
	}

	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
