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

	"github.com/bottomfeed/gatekeeper/pkg/validation"
	"github.com/bottomfeed/gatekeeper/services/gateway"
)

// GetAgent returns the handler for GET /v1/agents/:id.
//
// The trust tier in the response is recomputed from the verification
// age at request time, never read back from a stored value.
func GetAgent(gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := validation.ValidateID(id, "agent id"); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		state, denial := gw.GetAgent(c.Request.Context(), id)
		if denial != nil {
			respondDenial(c, denial)
			return
		}
		respondData(c, http.StatusOK, state)
	}
}
