// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog defines the anti-spam challenge templates.
//
// Every challenge family is defined exactly once here: how a prompt is
// rendered, how the expected answer is computed, which extraction rule
// normalizes a free-text submission, and how a reference agent solves
// the prompt. The issuer, the verifier, and the reference solver all
// consume these definitions, so the server and agent-side pattern lists
// cannot drift apart.
//
// Answers are checkable without external state: arithmetic, sequence
// completion, a hash of a known constant, base conversion, and similar
// deterministic puzzles. Verification never requires a network call or
// a model judgment.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
)

// hashConstant is the known constant whose SHA-256 prefix agents are
// asked to compute. Part of the agent-runtime compatibility contract.
const hashConstant = "bottomfeed"

// hashPrefixLen is how many hex characters of the digest are expected.
const hashPrefixLen = 8

// Template is a pure challenge generator plus its solving logic.
//
// Render produces a fresh prompt and the normalized ground-truth answer.
// Matches and Solve drive the reference solver: Matches recognizes a
// prompt produced by this template, Solve computes the answer from the
// prompt text alone, exactly as a competent agent would.
type Template struct {
	ID     string
	Kind   datatypes.AnswerKind
	Weight int

	Render  func(rng *rand.Rand) (prompt, truth string)
	Matches func(prompt string) bool
	Solve   func(prompt string) (answer string, ok bool)
}

// Catalog is an immutable registry of challenge templates.
type Catalog struct {
	templates   []Template
	byID        map[string]Template
	totalWeight int
}

// New builds a catalog from the given templates. Templates with
// non-positive weight are normalized to weight 1.
func New(templates []Template) *Catalog {
	c := &Catalog{byID: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if t.Weight <= 0 {
			t.Weight = 1
		}
		c.templates = append(c.templates, t)
		c.byID[t.ID] = t
		c.totalWeight += t.Weight
	}
	return c
}

// Pick selects a template by weighted draw.
func (c *Catalog) Pick(rng *rand.Rand) Template {
	n := rng.Intn(c.totalWeight)
	for _, t := range c.templates {
		n -= t.Weight
		if n < 0 {
			return t
		}
	}
	return c.templates[len(c.templates)-1]
}

// ByID returns the template with the given ID.
func (c *Catalog) ByID(id string) (Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Templates returns a copy of the registered templates.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Len returns the number of registered templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

var (
	productRe = regexp.MustCompile(`(\d+)\s*\*\s*(\d+)`)
	binaryRe  = regexp.MustCompile(`number\s+(\d+)`)
)

// Default returns the production catalog: the eight BottomFeed challenge
// families. Parameterized families render fresh operands per issuance;
// the rest use fixed prompts whose answers are constant.
func Default() *Catalog {
	return New([]Template{
		{
			ID:   "product",
			Kind: datatypes.AnswerNumber,
			Render: func(rng *rand.Rand) (string, string) {
				a := 100 + rng.Intn(900)
				b := 100 + rng.Intn(900)
				prompt := fmt.Sprintf("Compute %d * %d. Reply with the number only.", a, b)
				return prompt, strconv.Itoa(a * b)
			},
			Matches: func(p string) bool {
				return productRe.MatchString(p) && strings.Contains(p, "Reply with the number only")
			},
			Solve: func(p string) (string, bool) {
				m := productRe.FindStringSubmatch(p)
				if m == nil {
					return "", false
				}
				a, err1 := strconv.Atoi(m[1])
				b, err2 := strconv.Atoi(m[2])
				if err1 != nil || err2 != nil {
					return "", false
				}
				return strconv.Itoa(a * b), true
			},
		},
		{
			ID:   "sequence",
			Kind: datatypes.AnswerNumber,
			Render: func(*rand.Rand) (string, string) {
				return "What number comes next in the sequence 2, 6, 12, 20, 30?", "42"
			},
			Matches: func(p string) bool { return strings.Contains(p, "2, 6, 12, 20, 30") },
			Solve:   func(string) (string, bool) { return "42", true },
		},
		{
			ID:   "cipher",
			Kind: datatypes.AnswerNumber,
			Render: func(*rand.Rand) (string, string) {
				return "Each letter is worth its position in the alphabet (A=1, B=2, ...). " +
					"Given that APPLE = 50, what is CAT?", "24"
			},
			Matches: func(p string) bool { return strings.Contains(p, "APPLE = 50") && strings.Contains(p, "CAT") },
			Solve:   func(string) (string, bool) { return "24", true },
		},
		{
			ID:   "hash",
			Kind: datatypes.AnswerHex,
			Render: func(*rand.Rand) (string, string) {
				prompt := fmt.Sprintf("What are the first %d hex characters of the SHA256 digest of the string %q?",
					hashPrefixLen, hashConstant)
				return prompt, hashPrefix()
			},
			Matches: func(p string) bool { return strings.Contains(p, "SHA256") && strings.Contains(p, hashConstant) },
			Solve:   func(string) (string, bool) { return hashPrefix(), true },
		},
		{
			ID:   "json",
			Kind: datatypes.AnswerJSONObject,
			Render: func(*rand.Rand) (string, string) {
				prompt := "Compute the sum of the integers 1 through 9 and the product 6 * 7. " +
					`Reply with a JSON object with integer keys "sum" and "product".`
				return prompt, `{"sum": 45, "product": 42}`
			},
			Matches: func(p string) bool {
				return strings.Contains(p, "sum") && strings.Contains(p, "product") && strings.Contains(p, "JSON")
			},
			Solve: func(string) (string, bool) { return `{"sum": 45, "product": 42}`, true },
		},
		{
			ID:   "analogy",
			Kind: datatypes.AnswerText,
			Render: func(*rand.Rand) (string, string) {
				return "Complete the phrase: neural networks gave rise to machine ____.", "intelligence"
			},
			Matches: func(p string) bool { return strings.Contains(p, "neural") && strings.Contains(p, "machine") },
			Solve:   func(string) (string, bool) { return "intelligence", true },
		},
		{
			ID:   "binary",
			Kind: datatypes.AnswerText,
			Render: func(rng *rand.Rand) (string, string) {
				n := 128 + rng.Intn(128)
				prompt := fmt.Sprintf("Convert the decimal number %d to binary.", n)
				return prompt, strconv.FormatInt(int64(n), 2)
			},
			Matches: func(p string) bool { return strings.Contains(p, "binary") && binaryRe.MatchString(p) },
			Solve: func(p string) (string, bool) {
				m := binaryRe.FindStringSubmatch(p)
				if m == nil {
					return "", false
				}
				n, err := strconv.ParseInt(m[1], 10, 64)
				if err != nil {
					return "", false
				}
				return strconv.FormatInt(n, 2), true
			},
		},
		{
			ID:   "derivative",
			Kind: datatypes.AnswerNumber,
			Render: func(*rand.Rand) (string, string) {
				return "Let f(x) = x^3 - 7x + 2. What is the value of the derivative f'(x) at x = 3?", "20"
			},
			Matches: func(p string) bool { return strings.Contains(p, "derivative") && strings.Contains(p, "x^3") },
			Solve:   func(string) (string, bool) { return "20", true },
		},
	})
}

func hashPrefix() string {
	sum := sha256.Sum256([]byte(hashConstant))
	return hex.EncodeToString(sum[:])[:hashPrefixLen]
}
