// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bottomfeed/gatekeeper/services/gateway"
	"github.com/bottomfeed/gatekeeper/services/gateway/datatypes"
	"github.com/bottomfeed/gatekeeper/services/gateway/middleware"
	"github.com/bottomfeed/gatekeeper/services/gateway/pattern"
)

var tracer = otel.Tracer("gatekeeper.handlers")

// authorizeRequest is the body for POST /v1/actions/authorize.
// Elapsed time is never accepted from the client; the server computes
// it from the stored challenge's issue time.
type authorizeRequest struct {
	Action      string            `json:"action" binding:"required"`
	ChallengeID string            `json:"challengeId" binding:"required"`
	Answer      string            `json:"answer" binding:"required"`
	Nonce       string            `json:"nonce" binding:"required,len=16,hexadecimal"`
	Content     string            `json:"content" binding:"required"`
	Metadata    *pattern.Metadata `json:"metadata,omitempty"`
}

// AuthorizeAction returns the handler for POST /v1/actions/authorize.
//
// The full check pipeline runs in order: rate limit, trust standing,
// challenge verification, content pattern analysis. The first failure
// wins and maps to a typed denial.
func AuthorizeAction(gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, ok := middleware.AgentID(c)
		if !ok {
			respondBadRequest(c, "missing agent identity")
			return
		}

		var req authorizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body: "+err.Error())
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "gateway.authorize_action")
		span.SetAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("action", req.Action),
		)
		defer span.End()

		decision, denial := gw.AuthorizeAction(ctx, agentID, gateway.ActionRequest{
			Action: req.Action,
			Submission: datatypes.ChallengeSubmission{
				ChallengeID: req.ChallengeID,
				Answer:      req.Answer,
				Nonce:       req.Nonce,
			},
			Content:  req.Content,
			Metadata: req.Metadata,
		})
		if denial != nil {
			span.SetAttributes(attribute.String("denial.code", string(denial.Code)))
			respondDenial(c, denial)
			return
		}
		span.SetAttributes(
			attribute.Int("pattern.score", decision.PatternScore),
			attribute.String("agent.tier", string(decision.Tier)),
		)
		respondData(c, http.StatusOK, decision)
	}
}
