/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package logging

import (
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Log source tags used in structured logger contexts.
const (
	SourceApp        = "app"
	SourceWeb        = "web"
	SourceWebRequest = "web_request"
	SourceDB         = "db"
	SourceLLM        = "llm"
	SourceAnalysis   = "analysis"
	SourceReport     = "report"
	SourceCharts     = "charts"
	SourceChatbot    = "chatbot"
	SourceModel      = "model"
)

var (
	initOnce   sync.Once
	baseLogger *log.Logger

	derivedMu sync.Mutex
	derived   []*log.Logger
)

// Init configures the base logger and stdlib log output.
func Init() {
	initOnce.Do(func() {
		baseLogger = log.NewWithOptions(os.Stdout, log.Options{
			TimeFunction:    log.NowUTC,
			TimeFormat:      time.RFC3339Nano,
			Level:           log.DebugLevel,
			ReportTimestamp: true,
			Formatter:       log.LogfmtFormatter,
		})

		stdLogger := baseLogger.With("source", SourceApp).StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel})

		stdlog.SetFlags(0)
		stdlog.SetOutput(stdLogger.Writer())
	})
}

// SetLevel changes the minimum level of the base logger and every source
// logger handed out so far. Unknown names leave the level unchanged and
// return false.
func SetLevel(name string) bool {
	Init()

	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return false
	}

	derivedMu.Lock()
	defer derivedMu.Unlock()

	baseLogger.SetLevel(level)
	for _, l := range derived {
		l.SetLevel(level)
	}

	return true
}

// Logger returns a logfmt logger tagged with the provided source.
func Logger(source string) *log.Logger {
	Init()

	l := baseLogger.With("source", source)

	derivedMu.Lock()
	derived = append(derived, l)
	derivedMu.Unlock()

	return l
}

// StdLogger returns a stdlib logger that writes logfmt output with a source.
func StdLogger(source string) *stdlog.Logger {
	Init()
	return baseLogger.With("source", source).StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel})
}
