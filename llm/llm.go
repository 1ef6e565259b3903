/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package llm talks to hosted chat-completion models. Every client built by
// New makes exactly one attempt per call, bounded by a timeout and guarded
// by a circuit breaker.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Defaults applied by New.
const (
	DefaultOpenAIURL      = "https://api.groq.com/openai"
	DefaultOpenAIModel    = "llama-3.1-8b-instant"
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxTokens      = 700
	DefaultTemperature    = 0.4
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion request. Messages should end with a user
// turn.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Prompt builds a request with one user message.
func Prompt(system, user string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}

func (r Request) withDefaults() Request {
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}

	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}

	return r
}

// Client generates text from a request.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	URL      string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New builds the configured provider behind a timeout and circuit breaker.
// A missing API key yields ErrNotConfigured.
func New(cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var provider Client

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		if cfg.URL == "" {
			cfg.URL = DefaultOpenAIURL
		}

		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}

		provider = NewOpenAIClient(cfg.URL, cfg.Model, cfg.APIKey, cfg.Timeout)
	case ProviderAnthropic:
		if cfg.Model == "" {
			cfg.Model = DefaultAnthropicModel
		}

		provider = NewAnthropicClient(cfg.URL, cfg.Model, cfg.APIKey, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	logger.Info("LLM client configured", "provider", cfg.Provider, "model", cfg.Model, "timeout", cfg.Timeout)

	return WithBreaker(provider, cfg.Provider, cfg.Timeout), nil
}
