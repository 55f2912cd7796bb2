// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the gateway service.
//
// # Authentication Flow
//
// Agent endpoints authenticate with a static API key presented as a
// bearer token. The middleware resolves the key to an agent id and
// stores it in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	AgentAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <key>"
//	   │
//	   ├─► Resolve key -> agent id
//	   │
//	   └─► Store agent id in context
//	           │
//	           ▼
//	       Handler (retrieves via AgentID)
//
// The spot-check endpoint is operator-facing and uses a separate
// scheduler key; agents can never record their own results.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// agentIDKey is the context key for the authenticated agent id.
// A typed key string prevents collisions with other context values.
const agentIDKey = "gatekeeper_agent_id"

// SetAgentID stores the authenticated agent id in the Gin context.
func SetAgentID(c *gin.Context, agentID string) {
	c.Set(agentIDKey, agentID)
}

// AgentID retrieves the authenticated agent id set by AgentAuth.
// The second return is false when the request was not authenticated.
func AgentID(c *gin.Context) (string, bool) {
	v, ok := c.Get(agentIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

// AgentAuth authenticates agent requests against a static key table.
// Keys map API key -> agent id. Unauthenticated requests are rejected
// with 401 before any handler runs.
func AgentAuth(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing bearer token"},
			})
			return
		}
		agentID, ok := keys[token]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "unknown API key"},
			})
			return
		}
		SetAgentID(c, agentID)
		c.Next()
	}
}

// SchedulerAuth guards operator endpoints with a single shared key.
// Comparison is constant time; an empty configured key disables the
// endpoint entirely.
func SchedulerAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if key == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "scheduler key required"},
			})
			return
		}
		c.Next()
	}
}
