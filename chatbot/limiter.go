/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package chatbot

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 4096
	limiterIdleTTL   = time.Hour
)

// Limiter hands out one token bucket per user. Buckets of users idle for
// an hour are dropped, which resets them to full.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewLimiter allows perMinute messages a minute per user with bursts of
// up to burst messages.
func NewLimiter(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		perMinute = 1
	}

	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
	}
}

// Allow reports whether userID may send a message now. A nil limiter
// allows everything.
func (l *Limiter) Allow(userID string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets.Get(userID)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
	}

	// Re-adding refreshes the idle expiry.
	l.buckets.Add(userID, bucket)

	return bucket.Allow()
}
