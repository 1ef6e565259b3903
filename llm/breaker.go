/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

const (
	breakerFailures = 3
	breakerCooldown = 60 * time.Second
)

type breakerClient struct {
	next    Client
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// WithBreaker bounds every call to next by timeout and stops calling it
// after repeated consecutive failures until a cooldown has passed.
func WithBreaker(next Client, name string, timeout time.Duration) Client {
	if name == "" {
		name = ProviderOpenAI
	}

	return &breakerClient{
		next:    next,
		timeout: timeout,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm-" + name,
			MaxRequests: 1,
			Timeout:     breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			IsSuccessful: func(err error) bool {
				// A caller giving up says nothing about the provider.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *breakerClient) Generate(ctx context.Context, req Request) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err != nil {
		return "", err
	}

	text, _ := out.(string)

	return text, nil
}
