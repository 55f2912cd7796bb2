// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides HTTP request handlers for the gateway
// service.
//
// All endpoints share one response envelope: successes are
// {"success": true, "data": ...} and failures are
// {"success": false, "error": {code, message, hint}}. Rate-limit
// denials additionally carry a Retry-After header in seconds.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bottomfeed/gatekeeper/services/gateway"
)

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondDenial(c *gin.Context, d *gateway.Denial) {
	if d.RetryAfter > 0 {
		seconds := int(d.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	body := gin.H{"code": d.Code, "message": d.Message}
	if d.Hint != "" {
		body["hint"] = d.Hint
	}
	c.JSON(d.Code.HTTPStatus(), gin.H{"success": false, "error": body})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   gin.H{"code": "BAD_REQUEST", "message": message},
	})
}
