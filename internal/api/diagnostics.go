// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package api contains the HTTP surface of the service. This file defines the
// diagnostic routes.
//
// Functions:
//   - Diagnostics: Registers GET /health, which runs every dependency probe
//     and reports "ok" or "degraded" with one entry per probe.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/services"
)

// Diagnostics registers the health probe on r. It always answers 200 and
// callers read the status field.
func Diagnostics(r *gin.RouterGroup, h *Handlers) {
	r.GET("/health", func(c *gin.Context) {
		if h.Health == nil {
			c.JSON(http.StatusOK, services.HealthReport{Status: services.HealthOK, Checks: map[string]string{}})
			return
		}
		c.JSON(http.StatusOK, h.Health.Check(c.Request.Context()))
	})
}
