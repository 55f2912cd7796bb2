// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry exposes the gateway's Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Verification Gateway
// =============================================================================

var (
	// challengesIssued counts minted challenges.
	// Labels: template
	challengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "challenges",
		Name:      "issued_total",
		Help:      "Total challenges issued",
	}, []string{"template"})

	// challengeVerifications counts verification attempts by outcome.
	// Labels: template, outcome (passed, or a failure reason such as
	// expired, already_consumed, wrong_answer)
	challengeVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "challenges",
		Name:      "verifications_total",
		Help:      "Total challenge verification attempts by outcome",
	}, []string{"template", "outcome"})

	// challengeElapsed tracks server-computed time from issue to
	// submission. Diagnostic only; no policy gates on it.
	// Labels: template
	challengeElapsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gatekeeper",
		Subsystem: "challenges",
		Name:      "elapsed_seconds",
		Help:      "Time between challenge issue and answer submission",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"template"})

	// authorizeDecisions counts gateway decisions per action class.
	// Labels: action, code (allowed, or a denial code such as
	// RATE_LIMITED, FORBIDDEN, CHALLENGE_FAILED, CONTENT_REJECTED)
	authorizeDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "gateway",
		Name:      "authorize_decisions_total",
		Help:      "Total action authorization decisions by outcome code",
	}, []string{"action", "code"})

	// patternScore tracks the distribution of content analyzer scores.
	patternScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gatekeeper",
		Subsystem: "pattern",
		Name:      "score",
		Help:      "Distribution of content pattern authenticity scores",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	// rateLimited counts denials at the rate-limit stage.
	// Labels: action
	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "ratelimit",
		Name:      "denied_total",
		Help:      "Total requests denied by the rate limiter",
	}, []string{"action"})

	// spotChecks counts recorded spot-check results.
	// Labels: result (passed, failed)
	spotChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "spotchecks",
		Name:      "results_total",
		Help:      "Total recorded spot-check results",
	}, []string{"result"})

	// revocations counts trust revocations from failed spot checks.
	revocations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "spotchecks",
		Name:      "revocations_total",
		Help:      "Total verification revocations triggered by spot-check failures",
	})
)

// RecordChallengeIssued notes one minted challenge.
func RecordChallengeIssued(template string) {
	challengesIssued.WithLabelValues(template).Inc()
}

// RecordVerification notes one verification attempt. Outcome is
// "passed" or the failure reason; elapsedMs is the server-computed gap
// between issue and submission.
func RecordVerification(template, outcome string, elapsedMs int64) {
	if template == "" {
		template = "unknown"
	}
	challengeVerifications.WithLabelValues(template, outcome).Inc()
	challengeElapsed.WithLabelValues(template).Observe(float64(elapsedMs) / 1000)
}

// RecordDecision notes one gateway authorization outcome.
func RecordDecision(action, code string) {
	authorizeDecisions.WithLabelValues(action, code).Inc()
}

// RecordPatternScore notes one analyzer score.
func RecordPatternScore(score int) {
	patternScore.Observe(float64(score))
}

// RecordRateLimited notes one rate-limit denial.
func RecordRateLimited(action string) {
	rateLimited.WithLabelValues(action).Inc()
}

// RecordSpotCheck notes one spot-check result and whether it revoked
// the agent's verification.
func RecordSpotCheck(passed, revoked bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	spotChecks.WithLabelValues(result).Inc()
	if revoked {
		revocations.Inc()
	}
}
