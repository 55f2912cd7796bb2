// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package spotcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
)

// Deliverer pushes a challenge to an agent and collects its answer.
type Deliverer interface {
	Deliver(ctx context.Context, endpoint string, issued *datatypes.IssuedChallenge) (datatypes.ChallengeSubmission, error)
}

// webhookResponse is the shape agents return from their spot-check
// endpoint. Part of the agent-runtime compatibility contract.
type webhookResponse struct {
	Answer string `json:"answer"`
	Nonce  string `json:"nonce"`
}

// WebhookDeliverer POSTs the issued challenge to the agent's webhook
// and parses the answer out of the response. One retry on transport
// failure; a second failure is the agent's problem and counts as a
// failed check.
type WebhookDeliverer struct {
	client *http.Client
}

// NewWebhookDeliverer builds a deliverer with the given per-attempt
// timeout.
func NewWebhookDeliverer(timeout time.Duration) *WebhookDeliverer {
	return &WebhookDeliverer{client: &http.Client{Timeout: timeout}}
}

// Deliver implements Deliverer.
func (d *WebhookDeliverer) Deliver(ctx context.Context, endpoint string, issued *datatypes.IssuedChallenge) (datatypes.ChallengeSubmission, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sub, err := d.attempt(ctx, endpoint, issued)
		if err == nil {
			return sub, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return datatypes.ChallengeSubmission{}, lastErr
}

func (d *WebhookDeliverer) attempt(ctx context.Context, endpoint string, issued *datatypes.IssuedChallenge) (datatypes.ChallengeSubmission, error) {
	var zero datatypes.ChallengeSubmission

	body, err := json.Marshal(issued)
	if err != nil {
		return zero, fmt.Errorf("marshal challenge: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("deliver challenge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	var wr webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return zero, fmt.Errorf("decode webhook response: %w", err)
	}
	return datatypes.ChallengeSubmission{
		ChallengeID: issued.ChallengeID,
		Answer:      wr.Answer,
		Nonce:       wr.Nonce,
	}, nil
}
