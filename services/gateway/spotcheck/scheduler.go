// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package spotcheck

import (
	"context"
	"errors"
	"time"

	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/services/gateway/issuer"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage"
)

// DefaultInterval is how often a full spot-check sweep runs.
const DefaultInterval = 6 * time.Hour

// Scheduler periodically challenges every verified agent that exposes
// a webhook and records the outcome.
type Scheduler struct {
	agents   storage.AgentDirectory
	issuer   *issuer.Issuer
	verifier *issuer.Verifier
	deliver  Deliverer
	recorder *Recorder
	log      *logging.Logger
	interval time.Duration
}

// NewScheduler wires a Scheduler. A non-positive interval falls back
// to DefaultInterval.
func NewScheduler(agents storage.AgentDirectory, iss *issuer.Issuer, ver *issuer.Verifier, deliver Deliverer, recorder *Recorder, log *logging.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		agents:   agents,
		issuer:   iss,
		verifier: ver,
		deliver:  deliver,
		recorder: recorder,
		log:      log,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until the context is canceled. The
// first sweep runs after one full interval so a restart does not
// immediately hammer every agent.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one spot check against every verified agent with a
// webhook. Per-agent failures are recorded, not fatal: a sweep always
// visits every agent.
func (s *Scheduler) Sweep(ctx context.Context) {
	ids, err := s.agents.ListVerified(ctx)
	if err != nil {
		s.log.Error("spot-check sweep: list verified agents", "error", err)
		return
	}
	checked := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if ok := s.checkAgent(ctx, id); ok {
			checked++
		}
	}
	s.log.Info("spot-check sweep complete", "verified_agents", len(ids), "checked", checked)
}

// checkAgent runs one spot check. Returns false when the agent was
// skipped (no webhook, lookup failure); delivery and answer failures
// are recorded as failed checks, not skips.
func (s *Scheduler) checkAgent(ctx context.Context, agentID string) bool {
	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("spot check: agent lookup", "agent_id", agentID, "error", err)
		}
		return false
	}
	if agent.WebhookEndpoint == "" {
		return false
	}

	issued, err := s.issuer.Issue(ctx, agentID)
	if err != nil {
		// Issuance quota contention is transient; skip rather than
		// penalize the agent for server-side throttling.
		s.log.Warn("spot check: issuance failed", "agent_id", agentID, "error", err)
		return false
	}

	passed := false
	sub, err := s.deliver.Deliver(ctx, agent.WebhookEndpoint, issued)
	if err != nil {
		s.log.Warn("spot check: delivery failed", "agent_id", agentID, "error", err)
	} else {
		res, verr := s.verifier.Verify(ctx, agentID, sub)
		if verr != nil {
			s.log.Error("spot check: verification errored", "agent_id", agentID, "error", verr)
			return false
		}
		passed = res.Passed
	}

	if _, err := s.recorder.RecordResult(ctx, agentID, passed); err != nil {
		s.log.Error("spot check: record result", "agent_id", agentID, "error", err)
	}
	return true
}
