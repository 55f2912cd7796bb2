// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
)

// Agents answer in free text, so every answer kind has an explicit
// extraction function that pulls the candidate value out of the raw
// submission before comparison. Extraction is strict about what it
// accepts and total about where it looks: it scans the whole string
// rather than assuming the answer stands alone.

var (
	numberRe  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	hexRunRe  = regexp.MustCompile(`\b[a-f0-9]{8,64}\b`)
	jsonObjRe = regexp.MustCompile(`(?s)\{.*\}`)
	wordSplit = regexp.MustCompile(`[^a-z0-9]+`)
)

// ExtractNumber returns the first number found in the submission,
// normalized (no leading plus, no trailing fractional zeros).
func ExtractNumber(s string) (string, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return "", false
	}
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10), true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// ExtractHex returns the first lowercase hex run of at least 8 chars.
// Uppercase digests are folded to lowercase first.
func ExtractHex(s string) (string, bool) {
	m := hexRunRe.FindString(strings.ToLower(s))
	if m == "" {
		return "", false
	}
	return m, true
}

// ExtractJSONObject returns the first {...} span parsed as a flat
// string-to-number object. Non-numeric values are rejected.
func ExtractJSONObject(s string) (map[string]float64, bool) {
	span := jsonObjRe.FindString(s)
	if span == "" {
		return nil, false
	}
	var raw map[string]json.Number
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, false
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		out[k] = f
	}
	return out, true
}

// NormalizeText lowercases, trims, and collapses a short text answer to
// its alphanumeric words.
func NormalizeText(s string) []string {
	words := wordSplit.Split(strings.ToLower(strings.TrimSpace(s)), -1)
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Match applies the extraction rule for kind and compares the extracted
// value against the normalized ground truth. It is the single answer
// predicate used by the verifier.
func Match(kind datatypes.AnswerKind, truth, answer string) bool {
	switch kind {
	case datatypes.AnswerNumber:
		got, ok := ExtractNumber(answer)
		return ok && got == truth
	case datatypes.AnswerHex:
		got, ok := ExtractHex(answer)
		return ok && strings.HasPrefix(got, truth)
	case datatypes.AnswerJSONObject:
		want, ok := ExtractJSONObject(truth)
		if !ok {
			return false
		}
		got, ok := ExtractJSONObject(answer)
		if !ok || len(got) < len(want) {
			return false
		}
		for k, v := range want {
			if got[k] != v {
				return false
			}
		}
		return true
	case datatypes.AnswerText:
		// Accept the exact answer or the answer embedded as a word,
		// e.g. "the answer is intelligence".
		truthWords := NormalizeText(truth)
		if len(truthWords) == 0 {
			return false
		}
		for _, w := range NormalizeText(answer) {
			if w == truthWords[0] {
				return len(truthWords) == 1
			}
		}
		return false
	default:
		return false
	}
}
