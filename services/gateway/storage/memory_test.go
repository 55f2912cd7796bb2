// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChallenge(id string, expiresAt time.Time) *datatypes.Challenge {
	return &datatypes.Challenge{
		ID:           id,
		TemplateID:   "sequence",
		Prompt:       "What number comes next in the sequence 2, 6, 12, 20, 30?",
		AnswerKind:   datatypes.AnswerNumber,
		GroundTruth:  "42",
		BoundAgentID: "agent-1",
		Nonce:        "abc123def4567890",
		IssuedAt:     time.Now(),
		ExpiresAt:    expiresAt,
	}
}

func TestMemoryChallengePutGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ch := testChallenge("ch-1", time.Now().Add(time.Minute))
	require.NoError(t, m.Put(ctx, ch))

	got, err := m.Get(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, ch.GroundTruth, got.GroundTruth)
	assert.False(t, got.Consumed)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryConsumeExactlyOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, testChallenge("ch-1", time.Now().Add(time.Minute))))

	got, err := m.Consume(ctx, "ch-1", func(*datatypes.Challenge) error { return nil })
	require.NoError(t, err)
	assert.True(t, got.Consumed)

	_, err = m.Consume(ctx, "ch-1", func(*datatypes.Challenge) error { return nil })
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestMemoryConsumeCheckFailureDoesNotConsume(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, testChallenge("ch-1", time.Now().Add(time.Minute))))

	wrong := errors.New("wrong answer")
	_, err := m.Consume(ctx, "ch-1", func(*datatypes.Challenge) error { return wrong })
	assert.ErrorIs(t, err, wrong)

	// Still consumable after a failed check.
	_, err = m.Consume(ctx, "ch-1", func(*datatypes.Challenge) error { return nil })
	assert.NoError(t, err)
}

func TestMemoryConsumeConcurrentSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, testChallenge("ch-1", time.Now().Add(time.Minute))))

	const n = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Consume(ctx, "ch-1", func(*datatypes.Challenge) error { return nil }); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	assert.Equal(t, 1, len(successes), "exactly one concurrent consume must succeed")
}

func TestMemorySweepExpired(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.Put(ctx, testChallenge("old", now.Add(-time.Minute))))
	require.NoError(t, m.Put(ctx, testChallenge("fresh", now.Add(time.Minute))))

	dropped, err := m.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	_, err = m.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryAgentDirectory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, m.PutAgent(ctx, &datatypes.Agent{
		ID: "agent-1", Username: "bot1", Verified: true, VerifiedAt: &now,
		ClaimStatus: datatypes.ClaimClaimed,
	}))
	require.NoError(t, m.PutAgent(ctx, &datatypes.Agent{
		ID: "agent-2", Username: "bot2", ClaimStatus: datatypes.ClaimPending,
	}))

	agent, err := m.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.True(t, agent.Verified)

	require.NoError(t, m.UpdateAgent(ctx, "agent-1", func(a *datatypes.Agent) error {
		a.SpotChecksFailed++
		return nil
	}))
	agent, err = m.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), agent.SpotChecksFailed)

	ids, err := m.ListVerified(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-1"}, ids)

	assert.ErrorIs(t, m.UpdateAgent(ctx, "missing", func(*datatypes.Agent) error { return nil }), ErrNotFound)
}

func TestMemorySpotCheckLog(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Append(ctx, datatypes.SpotCheckResult{
			AgentID:   "agent-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Passed:    i%2 == 0,
		}))
	}

	all, err := m.Recent(ctx, "agent-1", base.Add(-time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	// Since filter drops the first two, limit keeps the newest two.
	recent, err := m.Recent(ctx, "agent-1", base.Add(90*time.Second), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, base.Add(4*time.Minute).Unix(), recent[1].Timestamp.Unix())
}
