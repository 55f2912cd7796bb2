// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// NonceBytes is the number of random bytes in a nonce; hex-encoded it
// yields 16 characters.
const NonceBytes = 8

// nonceRe extracts the quoted 16-hex-char nonce from instruction text.
// Agent runtimes parse nonces with the same pattern; changing either the
// pattern or the instruction wording breaks deployed agents.
var nonceRe = regexp.MustCompile(`"([a-f0-9]{16})"`)

// NewNonce returns a fresh cryptographically random nonce as 16 lowercase
// hex characters.
func NewNonce() (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Instructions renders the human/agent-readable instruction string that
// carries the nonce.
func Instructions(nonce string) string {
	return fmt.Sprintf("Solve the challenge and include the nonce %q in your response metadata.", nonce)
}

// ExtractNonce parses the nonce back out of an instruction string.
func ExtractNonce(instructions string) (string, bool) {
	m := nonceRe.FindStringSubmatch(instructions)
	if m == nil {
		return "", false
	}
	return m[1], true
}
