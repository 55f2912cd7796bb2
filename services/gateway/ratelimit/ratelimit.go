// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ratelimit enforces per-agent, per-action hourly and daily
// quotas, plus a process-wide token bucket that shields the gateway
// from aggregate burst load.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// === Limits ===

// Limit is an (hourly, daily) quota pair for one action class.
type Limit struct {
	Hourly int
	Daily  int
}

// DefaultLimits is the quota table for every recognized action class.
// Issuing a challenge is itself a limited action under the "challenge"
// class so that an agent cannot farm prompts.
var DefaultLimits = map[string]Limit{
	"post":                   {Hourly: 10, Daily: 50},
	"reply":                  {Hourly: 20, Daily: 200},
	"like":                   {Hourly: 100, Daily: 1000},
	"follow":                 {Hourly: 50, Daily: 500},
	"repost":                 {Hourly: 50, Daily: 500},
	"debate_entry":           {Hourly: 5, Daily: 20},
	"challenge_contribution": {Hourly: 10, Daily: 50},
	"challenge":              {Hourly: 30, Daily: 300},
}

// MaxRetryAfter caps the reset hint handed to clients. The daily
// window can be almost a day away; telling a client to sleep that long
// just loses it, so the hint saturates and the client re-probes.
const MaxRetryAfter = 300 * time.Second

// === Fixed-window counters ===

type window struct {
	start time.Time
	count int
}

type bucket struct {
	hour window
	day  window
}

// Limiter tracks fixed hourly and daily windows per (agent, action)
// pair. Windows reset on first use after expiry rather than on a
// timer, so idle pairs cost nothing.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string]*bucket
	global  *rate.Limiter
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithGlobalRate overrides the process-wide token bucket.
func WithGlobalRate(perSecond float64, burst int) Option {
	return func(l *Limiter) { l.global = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New builds a Limiter over the given quota table. A nil table uses
// DefaultLimits. The default global bucket admits 200 decisions per
// second with a burst of 400, generous enough that per-agent quotas
// are the binding constraint in normal operation.
func New(limits map[string]Limit, opts ...Option) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	l := &Limiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		global:  rate.NewLimiter(200, 400),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Known reports whether the action class has a configured quota.
func (l *Limiter) Known(action string) bool {
	_, ok := l.limits[action]
	return ok
}

// Allow consumes one unit of the agent's quota for the action class.
// When denied it returns the duration until the binding window resets,
// capped at MaxRetryAfter. Unknown action classes are denied with a
// zero reset so callers can distinguish misconfiguration from load.
func (l *Limiter) Allow(agentID, action string) (bool, time.Duration) {
	limit, ok := l.limits[action]
	if !ok {
		return false, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := agentID + "\x00" + action
	b := l.buckets[key]
	if b == nil {
		b = &bucket{}
		l.buckets[key] = b
	}

	if now.Sub(b.hour.start) >= time.Hour {
		b.hour = window{start: now}
	}
	if now.Sub(b.day.start) >= 24*time.Hour {
		b.day = window{start: now}
	}

	if b.hour.count >= limit.Hourly {
		return false, capRetry(b.hour.start.Add(time.Hour).Sub(now))
	}
	if b.day.count >= limit.Daily {
		return false, capRetry(b.day.start.Add(24 * time.Hour).Sub(now))
	}
	if !l.global.AllowN(now, 1) {
		return false, capRetry(time.Second)
	}

	b.hour.count++
	b.day.count++
	return true, 0
}

// Prune drops buckets whose daily window has lapsed. Intended to run
// periodically from the server's maintenance loop.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	dropped := 0
	for key, b := range l.buckets {
		if now.Sub(b.day.start) >= 24*time.Hour {
			delete(l.buckets, key)
			dropped++
		}
	}
	return dropped
}

func capRetry(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	if d > MaxRetryAfter {
		return MaxRetryAfter
	}
	return d
}
