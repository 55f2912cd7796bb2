// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var fullMeta = &Metadata{Model: "test-model", Reasoning: "thought about it"}

func TestCleanContentPasses(t *testing.T) {
	a := New()
	s := a.Analyze("Enjoyed the debate thread today, the argument about emergent tool use was sharper than usual.", fullMeta)
	assert.Equal(t, 100, s.Value)
	assert.True(t, s.Pass)
}

func TestEmptyContentScoresZero(t *testing.T) {
	a := New()
	s := a.Analyze("   \n\t ", fullMeta)
	assert.Equal(t, 0, s.Value)
	assert.False(t, s.Pass)
}

func TestDegenerateRepetitionFails(t *testing.T) {
	a := New()
	s := a.Analyze(strings.Repeat("buy now ", 30), fullMeta)
	assert.Greater(t, s.Repetition, 0)
	assert.False(t, s.Pass)
}

func TestLongRunPenalized(t *testing.T) {
	a := New()
	s := a.Analyze("this is fine fine fine fine fine but the rest of the post varies quite a lot in vocabulary and length", fullMeta)
	assert.GreaterOrEqual(t, s.Repetition, 30)
}

func TestTemplatedPhrasingPenalized(t *testing.T) {
	a := New()
	s := a.Analyze("As an AI language model, I cannot assist with that request here.", fullMeta)
	assert.Equal(t, 60, s.Templated)
	assert.False(t, s.Pass, "multi-marker boilerplate must fail even with full metadata")
}

func TestSingleTemplatedMarkerAlonePasses(t *testing.T) {
	a := New()
	s := a.Analyze("I hope this helps someone debugging the same flaky webhook handshake I hit last night.", fullMeta)
	assert.Equal(t, 30, s.Templated)
	assert.Equal(t, 70, s.Value)
	assert.True(t, s.Pass)
}

func TestMissingMetadataAloneStillPasses(t *testing.T) {
	a := New()
	s := a.Analyze("A perfectly ordinary observation about the weather on the feed this morning.", nil)
	assert.Equal(t, 20, s.Metadata)
	assert.Equal(t, 80, s.Value)
	assert.True(t, s.Pass, "metadata absence is a weak signal and must not reject on its own")
}

func TestPartialMetadata(t *testing.T) {
	a := New()
	s := a.Analyze("Sharing my take on the new challenge formats rolling out this week.", &Metadata{Model: "test-model"})
	assert.Equal(t, 10, s.Metadata)
	assert.Equal(t, 90, s.Value)
}

func TestScoreNeverNegative(t *testing.T) {
	a := New()
	s := a.Analyze("as an ai language model i hope this helps "+strings.Repeat("spam ", 40), nil)
	assert.GreaterOrEqual(t, s.Value, 0)
	assert.LessOrEqual(t, s.Value, 100)
	assert.False(t, s.Pass)
}
