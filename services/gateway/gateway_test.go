// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/services/gateway/catalog"
	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
	"github.com/bottomfeed/gatekeeper/services/gateway/issuer"
	"github.com/bottomfeed/gatekeeper/services/gateway/pattern"
	"github.com/bottomfeed/gatekeeper/services/gateway/ratelimit"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage"
)

var testMeta = &pattern.Metadata{Model: "test-model", Reasoning: "solved it step by step"}

type fixture struct {
	gw    *Gateway
	store *storage.Memory
	clock *time.Time
}

func newFixture(t *testing.T, limits map[string]ratelimit.Limit) *fixture {
	t.Helper()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	clock := &now
	tick := func() time.Time { return *clock }

	store := storage.NewMemory()
	limiter := ratelimit.New(limits,
		ratelimit.WithClock(tick),
		ratelimit.WithGlobalRate(1e6, 1e6),
	)
	log := logging.New(logging.Config{Quiet: true})
	t.Cleanup(func() { _ = log.Close() })

	iss := issuer.New(catalog.Default(), store, limiter, log,
		issuer.WithClock(tick),
		issuer.WithRand(rand.New(rand.NewSource(7))),
	)
	ver := issuer.NewVerifier(store, log, issuer.WithClock(tick))

	return &fixture{
		gw:    New(store, limiter, iss, ver, pattern.New(), log, WithClock(tick)),
		store: store,
		clock: clock,
	}
}

func (f *fixture) addAgent(t *testing.T, id string, verifiedAgo time.Duration) {
	t.Helper()
	verifiedAt := f.clock.Add(-verifiedAgo)
	require.NoError(t, f.store.PutAgent(context.Background(), &datatypes.Agent{
		ID:          id,
		Username:    id,
		Verified:    true,
		VerifiedAt:  &verifiedAt,
		ClaimStatus: datatypes.ClaimClaimed,
		TrustTier:   datatypes.TierOne,
	}))
}

// solveIssued produces the well-behaved agent's submission for an
// issued challenge.
func solveIssued(t *testing.T, issued *datatypes.IssuedChallenge) datatypes.ChallengeSubmission {
	t.Helper()
	answer, ok := catalog.NewSolver(catalog.Default()).Solve(issued.Prompt)
	require.True(t, ok)
	nonce, ok := catalog.ExtractNonce(issued.Instructions)
	require.True(t, ok)
	return datatypes.ChallengeSubmission{ChallengeID: issued.ChallengeID, Answer: answer, Nonce: nonce}
}

func postReq(sub datatypes.ChallengeSubmission) ActionRequest {
	return ActionRequest{
		Action:     "post",
		Submission: sub,
		Content:    "Sharing field notes from the morning debate thread, plenty of sharp arguments today.",
		Metadata:   testMeta,
	}
}

func TestEndToEndAuthorize(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addAgent(t, "agent-x", 3*24*time.Hour)

	issued, denial := f.gw.IssueChallenge(ctx, "agent-x")
	require.Nil(t, denial)
	sub := solveIssued(t, issued)

	decision, denial := f.gw.AuthorizeAction(ctx, "agent-x", postReq(sub))
	require.Nil(t, denial)
	assert.Equal(t, datatypes.TierOne, decision.Tier, "tier must match 3-day verification age")
	assert.GreaterOrEqual(t, decision.PatternScore, pattern.Threshold)

	// Replaying the same challenge fails closed.
	_, denial = f.gw.AuthorizeAction(ctx, "agent-x", postReq(sub))
	require.NotNil(t, denial)
	assert.Equal(t, CodeChallengeFailed, denial.Code)
	assert.Equal(t, 422, denial.Code.HTTPStatus())
}

func TestAuthorizeTierReflectsAge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addAgent(t, "veteran", 45*24*time.Hour)

	issued, denial := f.gw.IssueChallenge(ctx, "veteran")
	require.Nil(t, denial)

	decision, denial := f.gw.AuthorizeAction(ctx, "veteran", postReq(solveIssued(t, issued)))
	require.Nil(t, denial)
	assert.Equal(t, datatypes.TierThree, decision.Tier)
}

func TestRateLimitCheckedFirst(t *testing.T) {
	f := newFixture(t, map[string]ratelimit.Limit{
		"post":      {Hourly: 0, Daily: 0},
		"challenge": {Hourly: 10, Daily: 10},
	})
	ctx := context.Background()
	f.addAgent(t, "agent-x", 24*time.Hour)

	issued, denial := f.gw.IssueChallenge(ctx, "agent-x")
	require.Nil(t, denial)
	sub := solveIssued(t, issued)

	_, denial = f.gw.AuthorizeAction(ctx, "agent-x", postReq(sub))
	require.NotNil(t, denial)
	assert.Equal(t, CodeRateLimited, denial.Code)
	assert.Greater(t, denial.RetryAfter, time.Duration(0))

	// The rate-limit denial must not have consumed the challenge.
	res, err := f.store.Get(ctx, sub.ChallengeID)
	require.NoError(t, err)
	assert.False(t, res.Consumed)
}

func TestUnverifiedAgentForbiddenBeforeChallengeConsumed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.PutAgent(ctx, &datatypes.Agent{
		ID: "spawnling", Username: "spawnling", ClaimStatus: datatypes.ClaimClaimed,
	}))

	issued, denial := f.gw.IssueChallenge(ctx, "spawnling")
	require.Nil(t, denial)
	sub := solveIssued(t, issued)

	_, denial = f.gw.AuthorizeAction(ctx, "spawnling", postReq(sub))
	require.NotNil(t, denial)
	assert.Equal(t, CodeForbidden, denial.Code)

	res, err := f.store.Get(ctx, sub.ChallengeID)
	require.NoError(t, err)
	assert.False(t, res.Consumed, "trust denial must not burn the challenge")
}

func TestUnclaimedAgentForbidden(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	verifiedAt := f.clock.Add(-24 * time.Hour)
	require.NoError(t, f.store.PutAgent(ctx, &datatypes.Agent{
		ID: "pending", Username: "pending", Verified: true, VerifiedAt: &verifiedAt,
		ClaimStatus: datatypes.ClaimPending,
	}))

	_, denial := f.gw.AuthorizeAction(ctx, "pending", postReq(datatypes.ChallengeSubmission{}))
	require.NotNil(t, denial)
	assert.Equal(t, CodeForbidden, denial.Code)
}

func TestUnknownAgentForbidden(t *testing.T) {
	f := newFixture(t, nil)

	_, denial := f.gw.AuthorizeAction(context.Background(), "ghost", postReq(datatypes.ChallengeSubmission{}))
	require.NotNil(t, denial)
	assert.Equal(t, CodeForbidden, denial.Code)
	assert.Equal(t, 403, denial.Code.HTTPStatus())
}

func TestRevokedAgentForbiddenDespiteAge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	verifiedAt := f.clock.Add(-60 * 24 * time.Hour)
	require.NoError(t, f.store.PutAgent(ctx, &datatypes.Agent{
		ID: "burned", Username: "burned", Verified: true, VerifiedAt: &verifiedAt,
		ClaimStatus: datatypes.ClaimClaimed, SpotChecksFailed: 10,
	}))

	_, denial := f.gw.AuthorizeAction(ctx, "burned", postReq(datatypes.ChallengeSubmission{}))
	require.NotNil(t, denial)
	assert.Equal(t, CodeForbidden, denial.Code)
}

func TestUnknownActionClassForbidden(t *testing.T) {
	f := newFixture(t, nil)
	f.addAgent(t, "agent-x", 24*time.Hour)

	req := postReq(datatypes.ChallengeSubmission{})
	req.Action = "teleport"
	_, denial := f.gw.AuthorizeAction(context.Background(), "agent-x", req)
	require.NotNil(t, denial)
	assert.Equal(t, CodeForbidden, denial.Code)
}

func TestOversizeContentRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addAgent(t, "agent-x", 24*time.Hour)

	issued, denial := f.gw.IssueChallenge(ctx, "agent-x")
	require.Nil(t, denial)
	req := postReq(solveIssued(t, issued))
	req.Content = strings.Repeat("a", 2001)

	_, denial = f.gw.AuthorizeAction(ctx, "agent-x", req)
	require.NotNil(t, denial)
	assert.Equal(t, CodeContentRejected, denial.Code)

	// Content checks come after challenge verification, so the valid
	// submission is spent even though the content was rejected.
	res, err := f.store.Get(ctx, req.Submission.ChallengeID)
	require.NoError(t, err)
	assert.True(t, res.Consumed)
}

func TestWrongAnswerWinsOverOversizeContent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addAgent(t, "agent-x", 24*time.Hour)

	issued, denial := f.gw.IssueChallenge(ctx, "agent-x")
	require.Nil(t, denial)
	req := postReq(solveIssued(t, issued))
	req.Submission.Answer = "definitely not the answer"
	req.Content = strings.Repeat("a", 2001)

	_, denial = f.gw.AuthorizeAction(ctx, "agent-x", req)
	require.NotNil(t, denial)
	assert.Equal(t, CodeChallengeFailed, denial.Code, "challenge verification is ordered before content checks")
}

func TestLowPatternScoreRejectedAfterChallengePasses(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addAgent(t, "agent-x", 24*time.Hour)

	issued, denial := f.gw.IssueChallenge(ctx, "agent-x")
	require.Nil(t, denial)
	req := postReq(solveIssued(t, issued))
	req.Content = strings.Repeat("buy now ", 40)
	req.Metadata = nil

	_, denial = f.gw.AuthorizeAction(ctx, "agent-x", req)
	require.NotNil(t, denial)
	assert.Equal(t, CodeContentRejected, denial.Code)

	// The challenge was valid and is now spent.
	res, err := f.store.Get(ctx, req.Submission.ChallengeID)
	require.NoError(t, err)
	assert.True(t, res.Consumed)
}

func TestGetAgentRecomputesTier(t *testing.T) {
	f := newFixture(t, nil)
	f.addAgent(t, "agent-x", 10*24*time.Hour)

	state, denial := f.gw.GetAgent(context.Background(), "agent-x")
	require.Nil(t, denial)
	assert.Equal(t, datatypes.TierTwo, state.TrustTier, "stored tier1 must be recomputed from age")

	_, denial = f.gw.GetAgent(context.Background(), "ghost")
	require.NotNil(t, denial)
	assert.Equal(t, CodeForbidden, denial.Code)
}
