// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/services/gateway/spotcheck"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage"
)

// spotCheckRequest is the body for POST /v1/spot-checks. Passed is a
// pointer so that an omitted field binds as invalid instead of false.
type spotCheckRequest struct {
	AgentID string `json:"agentId" binding:"required"`
	Passed  *bool  `json:"passed" binding:"required"`
}

// RecordSpotCheck returns the handler for POST /v1/spot-checks.
//
// Operator-facing: guarded by the scheduler key, never reachable with
// an agent API key. Recording a result bumps the agent's counters and
// re-evaluates its trust tier, which can revoke verification.
func RecordSpotCheck(recorder *spotcheck.Recorder, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req spotCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body: "+err.Error())
			return
		}

		revoked, err := recorder.RecordResult(c.Request.Context(), req.AgentID, *req.Passed)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   gin.H{"code": "NOT_FOUND", "message": "unknown agent"},
			})
			return
		case err != nil:
			log.Error("record spot check", "agent_id", req.AgentID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   gin.H{"code": "INTERNAL_ERROR", "message": "internal error"},
			})
			return
		}
		respondData(c, http.StatusOK, gin.H{"recorded": true, "revoked": revoked})
	}
}
