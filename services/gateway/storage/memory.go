// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
)

// Memory implements ChallengeStore, AgentDirectory, and SpotCheckLog in
// process memory. Used by tests and single-node dev deployments; state
// is lost on restart, which is safe for challenges and rate windows but
// means agents and spot-check history should use the Badger store in
// production.
type Memory struct {
	mu         sync.Mutex
	challenges map[string]*datatypes.Challenge
	agents     map[string]*datatypes.Agent
	spotChecks map[string][]datatypes.SpotCheckResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		challenges: make(map[string]*datatypes.Challenge),
		agents:     make(map[string]*datatypes.Agent),
		spotChecks: make(map[string][]datatypes.SpotCheckResult),
	}
}

var (
	_ ChallengeStore = (*Memory)(nil)
	_ AgentDirectory = (*Memory)(nil)
	_ SpotCheckLog   = (*Memory)(nil)
)

// Put stores a copy of the challenge.
func (m *Memory) Put(_ context.Context, ch *datatypes.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.challenges[ch.ID] = &cp
	return nil
}

// Get returns a copy of the challenge, or ErrNotFound.
func (m *Memory) Get(_ context.Context, id string) (*datatypes.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

// Consume runs check and flips Consumed under the store lock, so two
// concurrent redemptions of the same challenge cannot both succeed.
func (m *Memory) Consume(_ context.Context, id string, check func(*datatypes.Challenge) error) (*datatypes.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	if ch.Consumed {
		cp := *ch
		return &cp, ErrConsumed
	}
	if err := check(ch); err != nil {
		cp := *ch
		return &cp, err
	}
	ch.Consumed = true
	cp := *ch
	return &cp, nil
}

// SweepExpired drops challenges past expiry.
func (m *Memory) SweepExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, ch := range m.challenges {
		if ch.Expired(now) {
			delete(m.challenges, id)
			dropped++
		}
	}
	return dropped, nil
}

// GetAgent returns a copy of the agent, or ErrNotFound.
func (m *Memory) GetAgent(_ context.Context, id string) (*datatypes.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *agent
	return &cp, nil
}

// PutAgent stores a copy of the agent.
func (m *Memory) PutAgent(_ context.Context, agent *datatypes.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *agent
	m.agents[agent.ID] = &cp
	return nil
}

// UpdateAgent applies fn under the store lock.
func (m *Memory) UpdateAgent(_ context.Context, id string, fn func(*datatypes.Agent) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return ErrNotFound
	}
	return fn(agent)
}

// ListVerified returns IDs of verified agents in stable order.
func (m *Memory) ListVerified(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, agent := range m.agents {
		if agent.Verified {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Append adds a spot-check result to the agent's log.
func (m *Memory) Append(_ context.Context, result datatypes.SpotCheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spotChecks[result.AgentID] = append(m.spotChecks[result.AgentID], result)
	return nil
}

// Recent returns results newer than since, oldest first, capped at limit.
func (m *Memory) Recent(_ context.Context, agentID string, since time.Time, limit int) ([]datatypes.SpotCheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []datatypes.SpotCheckResult
	for _, r := range m.spotChecks[agentID] {
		if r.Timestamp.After(since) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
