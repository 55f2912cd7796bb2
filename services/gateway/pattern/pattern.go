// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pattern scores submitted content for authenticity signals.
// The score is advisory: the gateway rejects only below a coarse
// threshold, treating this as a spam filter rather than verification.
package pattern

import (
	"strings"
)

// === Scoring ===

// Threshold is the score below which the gateway rejects content.
const Threshold = 50

// Metadata is the generation metadata an agent may declare alongside
// content. All fields are optional; declaring them earns back part of
// the metadata penalty.
type Metadata struct {
	Model     string `json:"model,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
}

// Score holds the analyzer verdict with the per-signal breakdown that
// shows up in logs.
type Score struct {
	Value      int  `json:"value"`
	Repetition int  `json:"repetitionPenalty"`
	Templated  int  `json:"templatedPenalty"`
	Metadata   int  `json:"metadataPenalty"`
	Pass       bool `json:"pass"`
}

// templatedMarkers are phrasings characteristic of unedited
// boilerplate output. Matching is case-insensitive substring.
var templatedMarkers = []string{
	"as an ai language model",
	"i cannot assist with",
	"certainly! here is",
	"certainly, here is",
	"i hope this helps",
	"in conclusion, ",
	"[insert ",
	"{insert ",
	"lorem ipsum",
}

// Analyzer scores content against a fixed heuristic set. The zero
// value is not usable; construct with New.
type Analyzer struct {
	markers []string
}

// New returns an Analyzer with the default marker set.
func New() *Analyzer {
	return &Analyzer{markers: templatedMarkers}
}

// Analyze produces a score in [0, 100] for the content and its
// declared metadata. Higher is more plausibly authentic. Empty content
// scores zero outright.
func (a *Analyzer) Analyze(content string, meta *Metadata) Score {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Score{Value: 0}
	}

	s := Score{Value: 100}
	s.Repetition = repetitionPenalty(trimmed)
	s.Templated = a.templatedPenalty(trimmed)
	s.Metadata = metadataPenalty(meta)

	s.Value -= s.Repetition + s.Templated + s.Metadata
	if s.Value < 0 {
		s.Value = 0
	}
	s.Pass = s.Value >= Threshold
	return s
}

// repetitionPenalty charges for degenerate repetition: a small
// distinct-token vocabulary relative to length, or the same token run
// back to back many times.
func repetitionPenalty(content string) int {
	tokens := strings.Fields(strings.ToLower(content))
	if len(tokens) < 6 {
		return 0
	}

	distinct := make(map[string]struct{}, len(tokens))
	maxRun, run := 1, 1
	for i, tok := range tokens {
		distinct[tok] = struct{}{}
		if i > 0 && tok == tokens[i-1] {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 1
		}
	}

	penalty := 0
	ratio := float64(len(distinct)) / float64(len(tokens))
	switch {
	case ratio < 0.1:
		penalty += 60
	case ratio < 0.25:
		penalty += 40
	case ratio < 0.5:
		penalty += 15
	}
	if maxRun >= 4 {
		penalty += 30
	}
	return penalty
}

// templatedPenalty charges per boilerplate marker. Two or more markers
// must sink the score below Threshold even with complete metadata, so
// the cap sits above half the scale.
func (a *Analyzer) templatedPenalty(content string) int {
	lower := strings.ToLower(content)
	penalty := 0
	for _, marker := range a.markers {
		if strings.Contains(lower, marker) {
			penalty += 30
			if penalty >= 60 {
				return 60
			}
		}
	}
	return penalty
}

// metadataPenalty charges for missing generation metadata. Absence is
// a weak signal on its own, which is why it can never push an
// otherwise clean submission below the threshold.
func metadataPenalty(meta *Metadata) int {
	if meta == nil {
		return 20
	}
	penalty := 0
	if meta.Model == "" {
		penalty += 10
	}
	if meta.Reasoning == "" {
		penalty += 10
	}
	return penalty
}
