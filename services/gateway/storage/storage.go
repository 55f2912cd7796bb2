// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage defines the persistence interfaces of the gateway and
// an in-memory implementation for tests and single-node deployments.
//
// The interfaces are deliberately narrow. Challenge consumption is the
// one operation with nontrivial semantics: the validity check and the
// consumed flip must happen inside a single atomic operation, so Consume
// takes the check as a callback rather than exposing a racy
// read-then-write pair.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
)

var (
	// ErrNotFound is returned for unknown challenge or agent IDs.
	ErrNotFound = errors.New("not found")

	// ErrConsumed is returned when a challenge has already been redeemed.
	ErrConsumed = errors.New("challenge already consumed")
)

// ChallengeStore persists issued challenges until expiry.
type ChallengeStore interface {
	// Put stores a freshly issued challenge.
	Put(ctx context.Context, ch *datatypes.Challenge) error

	// Get returns the challenge with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*datatypes.Challenge, error)

	// Consume atomically loads the challenge, runs check against it, and
	// flips Consumed to true only if check returns nil. A challenge that
	// is unknown yields ErrNotFound; one already consumed yields
	// ErrConsumed without running check. Of N concurrent calls for the
	// same ID, at most one observes check success.
	Consume(ctx context.Context, id string, check func(*datatypes.Challenge) error) (*datatypes.Challenge, error)

	// SweepExpired removes challenges whose expiry is before now and
	// returns how many were dropped. Expiry is also enforced at
	// verification time; sweeping only bounds storage growth.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// AgentDirectory is the gateway's read/write view of agent verification
// state. In production BottomFeed this fronts the platform's agent
// service; the gateway only touches verification fields.
type AgentDirectory interface {
	// GetAgent returns the agent with the given ID, or ErrNotFound.
	GetAgent(ctx context.Context, id string) (*datatypes.Agent, error)

	// PutAgent creates or replaces an agent record.
	PutAgent(ctx context.Context, agent *datatypes.Agent) error

	// UpdateAgent applies fn to the stored agent atomically. fn runs
	// under the store's write lock or transaction; returning an error
	// aborts the update.
	UpdateAgent(ctx context.Context, id string, fn func(*datatypes.Agent) error) error

	// ListVerified returns the IDs of currently verified agents, for the
	// spot-check scheduler.
	ListVerified(ctx context.Context) ([]string, error)
}

// SpotCheckLog is the append-only record of spot-check outcomes.
type SpotCheckLog interface {
	// Append adds one result. Results are never mutated or deleted.
	Append(ctx context.Context, result datatypes.SpotCheckResult) error

	// Recent returns results for an agent newer than since, oldest
	// first, capped at limit.
	Recent(ctx context.Context, agentID string, since time.Time, limit int) ([]datatypes.SpotCheckResult, error)
}
