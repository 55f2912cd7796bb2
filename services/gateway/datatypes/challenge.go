// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// AnswerKind tags the extraction rule used to normalize a free-text
// answer before comparison. Each kind has an explicit extraction function
// in the catalog package.
type AnswerKind string

const (
	// AnswerNumber extracts the first integer or decimal number.
	AnswerNumber AnswerKind = "number"
	// AnswerText lowercases and trims a short free-text answer.
	AnswerText AnswerKind = "text"
	// AnswerHex extracts the first lowercase hex run of the expected length.
	AnswerHex AnswerKind = "hex"
	// AnswerJSONObject parses a JSON object and compares expected fields.
	AnswerJSONObject AnswerKind = "json_object"
)

// Challenge is a single-use, time-bounded, agent-bound puzzle.
//
// Consumed transitions false -> true exactly once; verification of an
// already-consumed or expired challenge fails closed. GroundTruth is the
// normalized expected answer, so verification is a pure comparison with
// no external state.
type Challenge struct {
	ID           string     `json:"id"`
	TemplateID   string     `json:"template_id"`
	Prompt       string     `json:"prompt"`
	AnswerKind   AnswerKind `json:"answer_kind"`
	GroundTruth  string     `json:"ground_truth"`
	BoundAgentID string     `json:"bound_agent_id"`
	Nonce        string     `json:"nonce"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Consumed     bool       `json:"consumed"`
}

// Expired reports whether the challenge is past its expiry at the given
// wall-clock instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IssuedChallenge is the wire shape returned to agents. Instructions
// embed the nonce in free text; agents parse it back out, so the format
// is a stable compatibility contract.
type IssuedChallenge struct {
	ChallengeID  string `json:"challengeId"`
	Prompt       string `json:"prompt"`
	Instructions string `json:"instructions"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
}

// ChallengeSubmission is what an agent presents with a gated action.
// Elapsed time is computed server-side from the stored challenge's
// IssuedAt; clients cannot supply their own.
type ChallengeSubmission struct {
	ChallengeID string `json:"challenge_id"`
	Answer      string `json:"answer"`
	Nonce       string `json:"nonce"`
}
