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


// Package api contains the HTTP surface of the service. Handlers decode the
// request, call a service or workflow, and write either the success body or
// an apperr.ErrorEnvelope. No other package writes responses.
//
// Functions:
//   - NewRouter: Builds the gin engine with every route under /api/v1.
//   - Register: Adds the routes to an existing router group.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/services"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/workflow"
)

// DefaultMaxBodyBytes caps a request body when Handlers.MaxBodyBytes is unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// AnalysisRunner runs the transcript analysis workflow.
type AnalysisRunner interface {
	Run(ctx context.Context, body []byte) (*workflow.AnalysisOutcome, error)
}

// Suggester proposes the next interview question.
type Suggester interface {
	Suggest(ctx context.Context, raw map[string]any) (*model.SuggestionResponse, error)
}

// MediaOperations generates and signs media.
type MediaOperations interface {
	RequireProject() error
	GenerateImage(ctx context.Context, req model.ImageGenerationRequest) (*model.ImageResult, error)
	StartVideo(ctx context.Context, req model.VideoGenerationRequest) (*model.VideoStartResponse, error)
	VideoStatus(ctx context.Context, operationName string) (*model.VideoStatusResponse, error)
	SignedURL(ctx context.Context, uri string) (*model.SignedURLResponse, error)
}

// HealthChecker runs the dependency probes.
type HealthChecker interface {
	Check(ctx context.Context) services.HealthReport
}

// Handlers holds the collaborators of every route.
type Handlers struct {
	Analysis     AnalysisRunner
	Suggestions  Suggester
	Media        MediaOperations
	Health       HealthChecker
	MaxBodyBytes int64
}

// writeError converts err into an envelope and aborts the request with it.
func writeError(c *gin.Context, err error) {
	env := apperr.CreateErrorResponse(err, "Request failed")
	attrs := []any{"path", c.FullPath(), "code", env.Code, "status", env.StatusCode, "error", env.Error}
	if env.StatusCode >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", attrs...)
	} else {
		slog.WarnContext(c.Request.Context(), "request rejected", attrs...)
	}
	c.AbortWithStatusJSON(env.StatusCode, env)
}

// readBody reads the whole body, bounded by MaxBodyBytes.
func (h *Handlers) readBody(c *gin.Context) ([]byte, error) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Newf(apperr.PayloadTooLarge, "Request body exceeds %d bytes", limit).
				WithContext("limitBytes", limit)
		}
		return nil, apperr.Wrap(apperr.InvalidJSON, "Unable to read request body", err)
	}
	return body, nil
}

// readObject reads the body and decodes it as a JSON object.
func (h *Handlers) readObject(c *gin.Context) (map[string]any, error) {
	body, err := h.readBody(c)
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}
