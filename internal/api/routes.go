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


package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// NewRouter builds a gin engine with recovery, the request logger, any extra
// middleware, and every route under /api/v1.
func NewRouter(h *Handlers, middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	r.Use(middleware...)
	Register(r.Group("/api/v1"), h)
	return r
}

// Register adds the routes to r.
func Register(r *gin.RouterGroup, h *Handlers) {
	r.POST("/analyze", h.Analyze)
	r.POST("/suggest-question", h.SuggestQuestion)

	images := r.Group("/images")
	{
		images.POST("/generate", h.GenerateImage)
	}

	videos := r.Group("/videos")
	{
		videos.POST("/generate", h.GenerateVideo)
		videos.GET("/status", h.VideoStatus)
	}

	media := r.Group("/media")
	{
		media.GET("/signed-url", h.SignedURL)
	}

	Diagnostics(r, h)
}

// Analyze handles POST /analyze.
func (h *Handlers) Analyze(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Analysis.Run(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AnalysisResponse{Analysis: out.Analysis, Success: true, SchemaWarnings: out.SchemaWarnings})
}

// SuggestQuestion handles POST /suggest-question.
func (h *Handlers) SuggestQuestion(c *gin.Context) {
	raw, err := h.readObject(c)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Suggestions.Suggest(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GenerateImage handles POST /images/generate.
func (h *Handlers) GenerateImage(c *gin.Context) {
	if err := h.Media.RequireProject(); err != nil {
		writeError(c, err)
		return
	}
	raw, err := h.readObject(c)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Media.GenerateImage(c.Request.Context(), model.ImageGenerationRequest{
		Prompt:      stringField(raw["prompt"]),
		AspectRatio: model.AspectRatio(textField(raw["aspectRatio"])),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GenerateVideo handles POST /videos/generate.
func (h *Handlers) GenerateVideo(c *gin.Context) {
	if err := h.Media.RequireProject(); err != nil {
		writeError(c, err)
		return
	}
	raw, err := h.readObject(c)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Media.StartVideo(c.Request.Context(), model.VideoGenerationRequest{
		Prompt:      stringField(raw["prompt"]),
		AspectRatio: model.AspectRatio(textField(raw["aspectRatio"])),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// VideoStatus handles GET /videos/status?operationName=...
func (h *Handlers) VideoStatus(c *gin.Context) {
	out, err := h.Media.VideoStatus(c.Request.Context(), c.Query("operationName"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// SignedURL handles GET /media/signed-url?uri=gs://...
func (h *Handlers) SignedURL(c *gin.Context) {
	out, err := h.Media.SignedURL(c.Request.Context(), c.Query("uri"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func decodeObject(body []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, apperr.Wrap(apperr.InvalidJSON, "Request body must be a JSON object", err)
	}
	return raw, nil
}

// stringField returns v when it is a string and "" otherwise.
func stringField(v any) string {
	s, _ := v.(string)
	return s
}

// textField returns strings as is and renders any other non-null value, so
// that a wrongly typed aspect ratio is reported as unsupported rather than
// silently defaulted.
func textField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
