// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package issuer implements the challenge issue/verify protocol.
//
// Issuance mints a single-use challenge bound to one agent with a fresh
// nonce and a fixed expiry. Verification consumes it exactly once,
// failing closed on every mismatch: unknown id, wrong agent, expiry,
// replay, bad nonce, wrong answer. The consume happens inside the
// store's atomic check-and-set, so concurrent identical submissions
// admit exactly one winner.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/services/gateway/catalog"
	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
	"github.com/bottomfeed/gatekeeper/services/gateway/ratelimit"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage"
	"github.com/bottomfeed/gatekeeper/services/gateway/telemetry"
)

// === Constants ===

// ChallengeTTL is how long an issued challenge stays valid.
const ChallengeTTL = 300 * time.Second

// IssueAction is the rate-limit action class charged per issuance.
const IssueAction = "challenge"

// === Errors ===

// RateLimitedError reports a denied issuance with the reset hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("challenge issuance rate limited, retry in %s", e.RetryAfter)
}

// === Issuer ===

// Issuer mints challenges from the catalog.
type Issuer struct {
	catalog *catalog.Catalog
	store   storage.ChallengeStore
	limiter *ratelimit.Limiter
	log     *logging.Logger
	ttl     time.Duration
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Issuer or Verifier.
type Option func(*Issuer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithTTL overrides the challenge lifetime, for tests.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithRand overrides the template-draw source, for tests.
func WithRand(rng *rand.Rand) Option {
	return func(i *Issuer) { i.rng = rng }
}

// New builds an Issuer over the given catalog, store, and limiter.
func New(c *catalog.Catalog, store storage.ChallengeStore, limiter *ratelimit.Limiter, log *logging.Logger, opts ...Option) *Issuer {
	i := &Issuer{
		catalog: c,
		store:   store,
		limiter: limiter,
		log:     log,
		ttl:     ChallengeTTL,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a fresh single-use challenge bound to the agent.
// Issuance itself is a rate-limited action so that agents cannot farm
// prompts; a denial surfaces as *RateLimitedError.
func (i *Issuer) Issue(ctx context.Context, agentID string) (*datatypes.IssuedChallenge, error) {
	if ok, retryIn := i.limiter.Allow(agentID, IssueAction); !ok {
		return nil, &RateLimitedError{RetryAfter: retryIn}
	}

	i.mu.Lock()
	tmpl := i.catalog.Pick(i.rng)
	prompt, truth := tmpl.Render(i.rng)
	i.mu.Unlock()

	nonce, err := catalog.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := i.now()
	ch := &datatypes.Challenge{
		ID:           uuid.NewString(),
		TemplateID:   tmpl.ID,
		Prompt:       prompt,
		AnswerKind:   tmpl.Kind,
		GroundTruth:  truth,
		BoundAgentID: agentID,
		Nonce:        nonce,
		IssuedAt:     now,
		ExpiresAt:    now.Add(i.ttl),
	}
	if err := i.store.Put(ctx, ch); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	telemetry.RecordChallengeIssued(tmpl.ID)
	i.log.Debug("challenge issued",
		"challenge_id", ch.ID,
		"agent_id", agentID,
		"template", tmpl.ID,
		"expires_in_s", int(i.ttl.Seconds()),
	)
	return &datatypes.IssuedChallenge{
		ChallengeID:  ch.ID,
		Prompt:       prompt,
		Instructions: catalog.Instructions(nonce),
		ExpiresIn:    int(i.ttl.Seconds()),
	}, nil
}

// === Verifier ===

// FailureReason classifies why a verification did not pass. Every
// reason maps to the same external outcome (the challenge fails), but
// the distinction drives logs and metrics.
type FailureReason string

const (
	ReasonNone            FailureReason = ""
	ReasonUnknown         FailureReason = "unknown_challenge"
	ReasonAgentMismatch   FailureReason = "agent_mismatch"
	ReasonAlreadyConsumed FailureReason = "already_consumed"
	ReasonExpired         FailureReason = "expired"
	ReasonNonceMismatch   FailureReason = "nonce_mismatch"
	ReasonWrongAnswer     FailureReason = "wrong_answer"
)

// Result reports a verification outcome. ElapsedMs is computed
// server-side from the stored challenge's issue time; it is a logged
// diagnostic and never a rejection criterion.
type Result struct {
	Passed     bool
	Reason     FailureReason
	TemplateID string
	ElapsedMs  int64
}

// Verifier validates submitted challenge answers exactly once.
type Verifier struct {
	store storage.ChallengeStore
	log   *logging.Logger
	now   func() time.Time
}

// NewVerifier builds a Verifier over the same store the Issuer writes.
func NewVerifier(store storage.ChallengeStore, log *logging.Logger, opts ...Option) *Verifier {
	i := &Issuer{now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return &Verifier{store: store, log: log, now: i.now}
}

// checkFailure carries the failure reason out of the store's consume
// callback without flipping the consumed bit.
type checkFailure struct {
	reason FailureReason
}

func (e *checkFailure) Error() string { return string(e.reason) }

// Verify validates the submission against the stored challenge and
// consumes it on success. Protocol failures return Passed=false with a
// reason and a nil error; only store faults surface as errors.
func (v *Verifier) Verify(ctx context.Context, agentID string, sub datatypes.ChallengeSubmission) (Result, error) {
	now := v.now()
	var tmplID string
	var elapsed int64

	consumed, err := v.store.Consume(ctx, sub.ChallengeID, func(ch *datatypes.Challenge) error {
		tmplID = ch.TemplateID
		elapsed = now.Sub(ch.IssuedAt).Milliseconds()
		switch {
		case ch.BoundAgentID != agentID:
			return &checkFailure{ReasonAgentMismatch}
		case ch.Expired(now):
			return &checkFailure{ReasonExpired}
		case ch.Nonce != sub.Nonce:
			return &checkFailure{ReasonNonceMismatch}
		case !catalog.Match(ch.AnswerKind, ch.GroundTruth, sub.Answer):
			return &checkFailure{ReasonWrongAnswer}
		}
		return nil
	})

	switch {
	case err == nil:
		v.log.Info("challenge verified",
			"challenge_id", consumed.ID,
			"agent_id", agentID,
			"template", consumed.TemplateID,
			"elapsed_ms", elapsed,
		)
		ttlMs := consumed.ExpiresAt.Sub(consumed.IssuedAt).Milliseconds()
		if elapsed < 250 || (ttlMs > 0 && elapsed*10 > ttlMs*9) {
			// Diagnostic only. Timing never rejects a submission.
			v.log.Warn("unusual solve timing",
				"challenge_id", consumed.ID,
				"agent_id", agentID,
				"elapsed_ms", elapsed,
				"ttl_ms", ttlMs,
			)
		}
		telemetry.RecordVerification(consumed.TemplateID, "passed", elapsed)
		return Result{Passed: true, TemplateID: consumed.TemplateID, ElapsedMs: elapsed}, nil
	case errors.Is(err, storage.ErrNotFound):
		return v.failed(agentID, sub.ChallengeID, ReasonUnknown, tmplID, elapsed), nil
	case errors.Is(err, storage.ErrConsumed):
		return v.failed(agentID, sub.ChallengeID, ReasonAlreadyConsumed, tmplID, elapsed), nil
	default:
		var cf *checkFailure
		if errors.As(err, &cf) {
			return v.failed(agentID, sub.ChallengeID, cf.reason, tmplID, elapsed), nil
		}
		return Result{}, fmt.Errorf("consume challenge: %w", err)
	}
}

func (v *Verifier) failed(agentID, challengeID string, reason FailureReason, tmplID string, elapsed int64) Result {
	v.log.Warn("challenge verification failed",
		"challenge_id", challengeID,
		"agent_id", agentID,
		"reason", string(reason),
		"template", tmplID,
		"elapsed_ms", elapsed,
	)
	telemetry.RecordVerification(tmplID, string(reason), elapsed)
	return Result{Reason: reason, TemplateID: tmplID, ElapsedMs: elapsed}
}
