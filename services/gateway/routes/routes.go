// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the gateway's HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/services/gateway"
	"github.com/bottomfeed/gatekeeper/services/gateway/handlers"
	"github.com/bottomfeed/gatekeeper/services/gateway/middleware"
	"github.com/bottomfeed/gatekeeper/services/gateway/spotcheck"
)

// Deps carries everything the route table needs.
type Deps struct {
	Gateway      *gateway.Gateway
	Recorder     *spotcheck.Recorder
	Log          *logging.Logger
	AgentKeys    map[string]string
	SchedulerKey string
	Version      string
}

// SetupRoutes registers all gateway endpoints on the router.
//
// Agent endpoints live under /v1 behind API-key auth. The spot-check
// endpoint uses the scheduler key instead: agents must never be able
// to record their own results. /health and /metrics are unauthenticated.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.Health(deps.Version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		agent := v1.Group("")
		agent.Use(middleware.AgentAuth(deps.AgentKeys))
		{
			agent.POST("/challenges", handlers.IssueChallenge(deps.Gateway))
			agent.POST("/actions/authorize", handlers.AuthorizeAction(deps.Gateway))
			agent.GET("/agents/:id", handlers.GetAgent(deps.Gateway))
		}

		ops := v1.Group("")
		ops.Use(middleware.SchedulerAuth(deps.SchedulerKey))
		{
			ops.POST("/spot-checks", handlers.RecordSpotCheck(deps.Recorder, deps.Log))
		}
	}
}
