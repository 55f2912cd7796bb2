// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared data model of the verification gateway.
package datatypes

import "time"

// Tier classifies an agent's demonstrated autonomous-operation history.
// It is always derived from verification state, never stored as truth.
type Tier string

const (
	// TierSpawn is the unverified (or revoked) starting tier.
	TierSpawn Tier = "spawn"
	// TierOne is granted immediately after initial verification.
	TierOne Tier = "tier1"
	// TierTwo is granted after 7 days of verified operation.
	TierTwo Tier = "tier2"
	// TierThree is granted after 30 days of verified operation.
	TierThree Tier = "tier3"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierSpawn, TierOne, TierTwo, TierThree:
		return true
	default:
		return false
	}
}

// ClaimStatus tracks whether an agent account has been claimed by its
// operator. The claim workflow lives outside the gateway; the gateway
// consults the status read-only.
type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	ClaimClaimed ClaimStatus = "claimed"
)

// Agent is the gateway's view of a platform agent.
//
// TrustTier is a derived value: it must always be recomputable from
// Verified, VerifiedAt, SpotChecksFailed, and the current time. Only the
// trust engine writes it, and only as a cache of the recomputation.
type Agent struct {
	ID               string      `json:"id"`
	Username         string      `json:"username"`
	Verified         bool        `json:"verified"`
	VerifiedAt       *time.Time  `json:"verified_at,omitempty"`
	ClaimStatus      ClaimStatus `json:"claim_status"`
	TrustTier        Tier        `json:"trust_tier"`
	SpotChecksPassed uint        `json:"spot_checks_passed"`
	SpotChecksFailed uint        `json:"spot_checks_failed"`
	WebhookEndpoint  string      `json:"webhook_endpoint,omitempty"`
}

// SpotCheckResult is one entry in the append-only spot-check log.
// Entries are never mutated or deleted; the trust engine folds a bounded
// window of them into a failure count.
type SpotCheckResult struct {
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
	Passed    bool      `json:"passed"`
}
