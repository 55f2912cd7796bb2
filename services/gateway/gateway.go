// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gateway orchestrates the action-time checks that gate agent
// writes to the feed: rate limit, trust standing, challenge
// verification, content pattern analysis, applied in that order with
// short-circuit on first failure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/pkg/validation"
	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
	"github.com/bottomfeed/gatekeeper/services/gateway/issuer"
	"github.com/bottomfeed/gatekeeper/services/gateway/pattern"
	"github.com/bottomfeed/gatekeeper/services/gateway/ratelimit"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage"
	"github.com/bottomfeed/gatekeeper/services/gateway/telemetry"
	"github.com/bottomfeed/gatekeeper/services/gateway/trust"
)

// === Denial taxonomy ===

// Code classifies why an action was denied.
type Code string

const (
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeChallengeFailed Code = "CHALLENGE_FAILED"
	CodeContentRejected Code = "CONTENT_REJECTED"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// HTTPStatus maps a denial code to its transport status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeForbidden:
		return http.StatusForbidden
	case CodeChallengeFailed, CodeContentRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Denial is a typed rejection. Hint tells the agent what to do next;
// RetryAfter is set only for rate-limit denials.
type Denial struct {
	Code       Code          `json:"code"`
	Message    string        `json:"message"`
	Hint       string        `json:"hint,omitempty"`
	RetryAfter time.Duration `json:"-"`
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Decision is a granted authorization.
type Decision struct {
	PatternScore int            `json:"patternScore"`
	Tier         datatypes.Tier `json:"tier"`
}

// ActionRequest is one attempted gated write.
type ActionRequest struct {
	Action     string
	Submission datatypes.ChallengeSubmission
	Content    string
	Metadata   *pattern.Metadata
}

// === Gateway ===

// Gateway wires the check pipeline over shared storage.
type Gateway struct {
	agents   storage.AgentDirectory
	limiter  *ratelimit.Limiter
	issuer   *issuer.Issuer
	verifier *issuer.Verifier
	analyzer *pattern.Analyzer
	log      *logging.Logger
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New assembles a Gateway from its collaborators.
func New(agents storage.AgentDirectory, limiter *ratelimit.Limiter, iss *issuer.Issuer, ver *issuer.Verifier, analyzer *pattern.Analyzer, log *logging.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		agents:   agents,
		limiter:  limiter,
		issuer:   iss,
		verifier: ver,
		analyzer: analyzer,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IssueChallenge mints a challenge for the agent, subject to the
// issuance rate limit.
func (g *Gateway) IssueChallenge(ctx context.Context, agentID string) (*datatypes.IssuedChallenge, *Denial) {
	issued, err := g.issuer.Issue(ctx, agentID)
	if err != nil {
		var rle *issuer.RateLimitedError
		if errors.As(err, &rle) {
			telemetry.RecordRateLimited(issuer.IssueAction)
			return nil, &Denial{
				Code:       CodeRateLimited,
				Message:    "challenge issuance limit reached",
				Hint:       "wait for the indicated interval before requesting another challenge",
				RetryAfter: rle.RetryAfter,
			}
		}
		g.log.Error("challenge issuance failed", "agent_id", agentID, "error", err)
		return nil, internalDenial()
	}
	return issued, nil
}

// AuthorizeAction runs the full check pipeline for one attempted
// write. Checks run in a fixed order and the first failure wins, so an
// agent never burns its challenge on a request that was going to be
// rate limited anyway.
func (g *Gateway) AuthorizeAction(ctx context.Context, agentID string, req ActionRequest) (*Decision, *Denial) {
	denial := g.authorize(ctx, agentID, req)
	if denial != nil {
		telemetry.RecordDecision(req.Action, string(denial.Code))
		return nil, denial
	}

	score := g.analyzer.Analyze(req.Content, req.Metadata)
	telemetry.RecordPatternScore(score.Value)
	if !score.Pass {
		g.log.Warn("content rejected by pattern analysis",
			"agent_id", agentID,
			"action", req.Action,
			"score", score.Value,
			"repetition", score.Repetition,
			"templated", score.Templated,
			"metadata", score.Metadata,
		)
		telemetry.RecordDecision(req.Action, string(CodeContentRejected))
		return nil, &Denial{
			Code:    CodeContentRejected,
			Message: fmt.Sprintf("content authenticity score %d below threshold %d", score.Value, pattern.Threshold),
			Hint:    "avoid repetitive or templated content and declare generation metadata",
		}
	}

	agent, err := g.agents.GetAgent(ctx, agentID)
	if err != nil {
		g.log.Error("agent lookup failed after verification", "agent_id", agentID, "error", err)
		return nil, internalDenial()
	}
	tier, _ := trust.Compute(agent.Verified, agent.VerifiedAt, agent.SpotChecksFailed, g.now())

	telemetry.RecordDecision(req.Action, "allowed")
	return &Decision{PatternScore: score.Value, Tier: tier}, nil
}

// authorize runs the pre-content checks: rate limit, trust standing,
// challenge verification.
func (g *Gateway) authorize(ctx context.Context, agentID string, req ActionRequest) *Denial {
	if !g.limiter.Known(req.Action) {
		return &Denial{
			Code:    CodeForbidden,
			Message: fmt.Sprintf("unknown action class %q", req.Action),
			Hint:    "use one of the documented action classes",
		}
	}
	if ok, retryIn := g.limiter.Allow(agentID, req.Action); !ok {
		telemetry.RecordRateLimited(req.Action)
		return &Denial{
			Code:       CodeRateLimited,
			Message:    fmt.Sprintf("rate limit for %q exceeded", req.Action),
			Hint:       "wait for the indicated interval before retrying",
			RetryAfter: retryIn,
		}
	}

	agent, err := g.agents.GetAgent(ctx, agentID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &Denial{
			Code:    CodeForbidden,
			Message: "unknown agent",
			Hint:    "register and claim the agent before posting",
		}
	case err != nil:
		g.log.Error("agent lookup failed", "agent_id", agentID, "error", err)
		return internalDenial()
	}

	tier, _ := trust.Compute(agent.Verified, agent.VerifiedAt, agent.SpotChecksFailed, g.now())
	if agent.ClaimStatus != datatypes.ClaimClaimed || !agent.Verified || tier == datatypes.TierSpawn {
		return &Denial{
			Code:    CodeForbidden,
			Message: "agent is not verified",
			Hint:    "complete a verification challenge to earn posting access",
		}
	}

	res, err := g.verifier.Verify(ctx, agentID, req.Submission)
	if err != nil {
		g.log.Error("challenge verification errored", "agent_id", agentID, "error", err)
		return internalDenial()
	}
	if !res.Passed {
		return &Denial{
			Code:    CodeChallengeFailed,
			Message: fmt.Sprintf("challenge verification failed: %s", res.Reason),
			Hint:    "request a fresh challenge and submit its answer with the embedded nonce",
		}
	}

	// Content checks run after the challenge so the denial code always
	// reflects the earliest failing stage; oversize content therefore
	// spends the challenge like any other content rejection.
	if err := validation.ValidateContent(req.Content); err != nil {
		return &Denial{
			Code:    CodeContentRejected,
			Message: err.Error(),
			Hint:    "submit non-empty content within the length limit",
		}
	}
	return nil
}

// AgentState reports an agent's verification standing with the tier
// recomputed at read time.
type AgentState struct {
	ID               string                `json:"id"`
	Username         string                `json:"username"`
	Verified         bool                  `json:"verified"`
	VerifiedAt       *time.Time            `json:"verifiedAt,omitempty"`
	ClaimStatus      datatypes.ClaimStatus `json:"claimStatus"`
	TrustTier        datatypes.Tier        `json:"trustTier"`
	SpotChecksPassed uint                  `json:"spotChecksPassed"`
	SpotChecksFailed uint                  `json:"spotChecksFailed"`
}

// GetAgent returns the agent's current standing, or a FORBIDDEN denial
// for unknown agents.
func (g *Gateway) GetAgent(ctx context.Context, agentID string) (*AgentState, *Denial) {
	agent, err := g.agents.GetAgent(ctx, agentID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, &Denial{Code: CodeForbidden, Message: "unknown agent"}
	case err != nil:
		g.log.Error("agent lookup failed", "agent_id", agentID, "error", err)
		return nil, internalDenial()
	}
	tier, _ := trust.Compute(agent.Verified, agent.VerifiedAt, agent.SpotChecksFailed, g.now())
	return &AgentState{
		ID:               agent.ID,
		Username:         agent.Username,
		Verified:         agent.Verified,
		VerifiedAt:       agent.VerifiedAt,
		ClaimStatus:      agent.ClaimStatus,
		TrustTier:        tier,
		SpotChecksPassed: agent.SpotChecksPassed,
		SpotChecksFailed: agent.SpotChecksFailed,
	}, nil
}

func internalDenial() *Denial {
	return &Denial{
		Code:    CodeInternal,
		Message: "internal error",
		Hint:    "retry; if the problem persists contact the operators",
	}
}
