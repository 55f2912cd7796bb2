// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package spotcheck re-verifies already-verified agents on a schedule.
//
// A spot check is an ordinary challenge delivered to the agent's
// webhook out of band. The outcome feeds the agent's pass/fail
// counters, and every recorded result immediately re-evaluates the
// trust tier, which can revoke verification outright once failures
// accumulate.
package spotcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage"
	"github.com/bottomfeed/gatekeeper/services/gateway/telemetry"
	"github.com/bottomfeed/gatekeeper/services/gateway/trust"
)

// Recorder appends spot-check outcomes and keeps agent standing
// current.
type Recorder struct {
	agents storage.AgentDirectory
	checks storage.SpotCheckLog
	log    *logging.Logger
	now    func() time.Time
}

// NewRecorder builds a Recorder over shared storage.
func NewRecorder(agents storage.AgentDirectory, checks storage.SpotCheckLog, log *logging.Logger) *Recorder {
	return &Recorder{agents: agents, checks: checks, log: log, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// RecordResult appends one spot-check outcome, bumps the agent's
// counters, and re-evaluates the trust tier. Returns whether the
// result revoked the agent's verification.
func (r *Recorder) RecordResult(ctx context.Context, agentID string, passed bool) (bool, error) {
	now := r.now()
	if err := r.checks.Append(ctx, datatypes.SpotCheckResult{
		AgentID:   agentID,
		Timestamp: now,
		Passed:    passed,
	}); err != nil {
		return false, fmt.Errorf("append spot-check result: %w", err)
	}

	revoked := false
	err := r.agents.UpdateAgent(ctx, agentID, func(a *datatypes.Agent) error {
		if passed {
			a.SpotChecksPassed++
		} else {
			a.SpotChecksFailed++
		}
		revoked = trust.Evaluate(a, now)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update agent %s: %w", agentID, err)
	}

	telemetry.RecordSpotCheck(passed, revoked)
	if revoked {
		r.log.Warn("agent verification revoked",
			"agent_id", agentID,
			"failed_checks", trust.RevokeThreshold,
		)
	} else {
		r.log.Debug("spot check recorded", "agent_id", agentID, "passed", passed)
	}
	return revoked, nil
}
