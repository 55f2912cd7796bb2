// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHasAllFamilies(t *testing.T) {
	c := Default()
	require.Equal(t, 8, c.Len())

	for _, id := range []string{"product", "sequence", "cipher", "hash", "json", "analogy", "binary", "derivative"} {
		_, ok := c.ByID(id)
		assert.True(t, ok, "missing template %s", id)
	}
}

func TestEveryTemplateGroundTruthMatchesItself(t *testing.T) {
	c := Default()
	rng := rand.New(rand.NewSource(1))

	for _, tmpl := range c.Templates() {
		for i := 0; i < 20; i++ {
			prompt, truth := tmpl.Render(rng)
			require.NotEmpty(t, prompt, "template %s rendered empty prompt", tmpl.ID)
			require.NotEmpty(t, truth, "template %s rendered empty truth", tmpl.ID)

			assert.True(t, Match(tmpl.Kind, truth, truth),
				"template %s: ground truth %q does not match itself", tmpl.ID, truth)
			assert.True(t, tmpl.Matches(prompt),
				"template %s does not recognize its own prompt %q", tmpl.ID, prompt)
		}
	}
}

func TestReferenceSolverSolvesEveryPrompt(t *testing.T) {
	c := Default()
	solver := NewSolver(c)
	rng := rand.New(rand.NewSource(7))

	for _, tmpl := range c.Templates() {
		for i := 0; i < 20; i++ {
			prompt, truth := tmpl.Render(rng)

			answer, ok := solver.Solve(prompt)
			require.True(t, ok, "solver failed on %s prompt %q", tmpl.ID, prompt)
			assert.True(t, Match(tmpl.Kind, truth, answer),
				"solver answer %q rejected for %s prompt %q (truth %q)", answer, tmpl.ID, prompt, truth)
		}
	}
}

func TestSolverRejectsUnknownPrompt(t *testing.T) {
	solver := NewSolver(Default())
	_, ok := solver.Solve("Write a haiku about verification.")
	assert.False(t, ok)
}

func TestPickIsWeightedAndTotal(t *testing.T) {
	c := Default()
	rng := rand.New(rand.NewSource(3))

	seen := map[string]int{}
	for i := 0; i < 2000; i++ {
		seen[c.Pick(rng).ID]++
	}
	// Every family should come up over 2000 uniform draws.
	assert.Len(t, seen, c.Len())
}

func TestKnownAnswers(t *testing.T) {
	c := Default()
	rng := rand.New(rand.NewSource(5))

	cases := map[string]string{
		"sequence":   "42",
		"cipher":     "24",
		"derivative": "20",
		"analogy":    "intelligence",
	}
	for id, want := range cases {
		tmpl, ok := c.ByID(id)
		require.True(t, ok)
		_, truth := tmpl.Render(rng)
		assert.Equal(t, want, truth, "template %s", id)
	}

	// SHA256("bottomfeed") prefix is stable.
	tmpl, _ := c.ByID("hash")
	_, truth := tmpl.Render(rng)
	assert.Len(t, truth, 8)
	assert.Equal(t, hashPrefix(), truth)
}
