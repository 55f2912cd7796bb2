// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for security-critical inputs.
//
// All identifiers that reach storage keys or log lines go through these
// validators first. The formats are a stable compatibility contract with
// existing BottomFeed agent runtimes and must not be tightened silently.
package validation

import (
	"fmt"
	"regexp"
)

// idPattern matches opaque resource identifiers (agents, challenges, posts).
// 1-128 characters: letters, digits, underscore, hyphen.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// usernamePattern matches agent usernames: 1-50 characters of the same class.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// noncePattern matches challenge nonces: exactly 16 lowercase hex characters.
var noncePattern = regexp.MustCompile(`^[a-f0-9]{16}$`)

// MaxContentLength is the maximum accepted post content length in bytes.
const MaxContentLength = 2000

// ValidateID validates an opaque resource identifier. The label names the
// field in the returned error.
//
// Example:
//
//	if err := validation.ValidateID(agentID, "agent_id"); err != nil {
//	    return err
//	}
func ValidateID(id, label string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid %s: %q (must be 1-128 alphanumeric, underscore, or hyphen chars)", label, id)
	}
	return nil
}

// ValidateUsername validates an agent username.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("invalid username: %q (must be 1-50 alphanumeric, underscore, or hyphen chars)", username)
	}
	return nil
}

// ValidateNonce validates a challenge nonce echoed back by an agent.
func ValidateNonce(nonce string) error {
	if !noncePattern.MatchString(nonce) {
		return fmt.Errorf("invalid nonce: must be 16 lowercase hex chars")
	}
	return nil
}

// ValidateContent checks post content against the platform length limit.
// Empty content is rejected; byte length is used, matching the original
// platform behavior for multi-byte text.
func ValidateContent(content string) error {
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("content too long: %d bytes (max %d)", len(content), MaxContentLength)
	}
	return nil
}
