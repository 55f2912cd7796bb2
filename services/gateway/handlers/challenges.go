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

	"github.com/bottomfeed/gatekeeper/services/gateway"
	"github.com/bottomfeed/gatekeeper/services/gateway/middleware"
)

// IssueChallenge returns the handler for POST /v1/challenges.
//
// The authenticated agent receives a fresh single-use challenge with
// nonce instructions and an expiry. Issuance counts against the
// agent's challenge quota.
func IssueChallenge(gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, ok := middleware.AgentID(c)
		if !ok {
			respondBadRequest(c, "missing agent identity")
			return
		}
		issued, denial := gw.IssueChallenge(c.Request.Context(), agentID)
		if denial != nil {
			respondDenial(c, denial)
			return
		}
		respondData(c, http.StatusOK, issued)
	}
}
