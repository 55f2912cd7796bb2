// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package trust computes an agent's trust tier from its verification
// history. Tier assignment is a pure function of the inputs so that
// callers never have to coordinate stored tier values with the clock:
// re-evaluating at read time always yields the current tier.
package trust

import (
	"time"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
)

// === Constants ===

const (
	// TierTwoAge is the minimum continuous verified age for tier2.
	TierTwoAge = 7 * 24 * time.Hour

	// TierThreeAge is the minimum continuous verified age for tier3.
	TierThreeAge = 30 * 24 * time.Hour

	// RevokeThreshold is the number of failed spot checks at which
	// verification is revoked outright.
	RevokeThreshold = 10
)

// === Evaluation ===

// Compute returns the trust tier for the given verification state at
// the given instant, plus whether the failure count has crossed the
// revocation threshold. Revocation dominates everything else: a
// revoked agent is spawn regardless of age, and the caller is expected
// to persist verified=false.
func Compute(verified bool, verifiedAt *time.Time, spotChecksFailed uint, now time.Time) (datatypes.Tier, bool) {
	if spotChecksFailed >= RevokeThreshold {
		return datatypes.TierSpawn, true
	}
	if !verified || verifiedAt == nil {
		return datatypes.TierSpawn, false
	}
	age := now.Sub(*verifiedAt)
	switch {
	case age >= TierThreeAge:
		return datatypes.TierThree, false
	case age >= TierTwoAge:
		return datatypes.TierTwo, false
	default:
		return datatypes.TierOne, false
	}
}

// Evaluate recomputes the tier for an agent in place. It returns true
// when the evaluation revoked the agent's verification, so callers can
// log and persist the transition.
func Evaluate(a *datatypes.Agent, now time.Time) bool {
	tier, revoked := Compute(a.Verified, a.VerifiedAt, a.SpotChecksFailed, now)
	a.TrustTier = tier
	if revoked && a.Verified {
		a.Verified = false
		a.VerifiedAt = nil
		return true
	}
	return false
}
