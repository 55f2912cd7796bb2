// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

// Solver answers challenge prompts using the same template definitions
// the issuer renders from. It backs integration tests and the spot-check
// self-test mode; because it shares the catalog, it can never fall out
// of sync with the server's patterns.
type Solver struct {
	catalog *Catalog
}

// NewSolver returns a solver over the given catalog.
func NewSolver(c *Catalog) *Solver {
	return &Solver{catalog: c}
}

// Solve returns the deterministic answer for a prompt, or ok=false if no
// template recognizes it.
func (s *Solver) Solve(prompt string) (string, bool) {
	for _, t := range s.catalog.templates {
		if t.Matches(prompt) {
			return t.Solve(prompt)
		}
	}
	return "", false
}
