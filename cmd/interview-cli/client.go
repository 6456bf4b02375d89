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


package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/services"
)

// Client calls the persona research HTTP API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

func (c *Client) Analyze(ctx context.Context, body []byte) (*model.AnalysisResponse, error) {
	out := &model.AnalysisResponse{}
	return out, c.do(ctx, http.MethodPost, "/api/v1/analyze", nil, body, out)
}

func (c *Client) Suggest(ctx context.Context, req model.SuggestionRequest) (*model.SuggestionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	out := &model.SuggestionResponse{}
	return out, c.do(ctx, http.MethodPost, "/api/v1/suggest-question", nil, body, out)
}

func (c *Client) GenerateImage(ctx context.Context, req model.ImageGenerationRequest) (*model.ImageResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	out := &model.ImageResult{}
	return out, c.do(ctx, http.MethodPost, "/api/v1/images/generate", nil, body, out)
}

func (c *Client) StartVideo(ctx context.Context, req model.VideoGenerationRequest) (*model.VideoStartResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	out := &model.VideoStartResponse{}
	return out, c.do(ctx, http.MethodPost, "/api/v1/videos/generate", nil, body, out)
}

func (c *Client) VideoStatus(ctx context.Context, operationName string) (*model.VideoStatusResponse, error) {
	out := &model.VideoStatusResponse{}
	return out, c.do(ctx, http.MethodGet, "/api/v1/videos/status", url.Values{"operationName": {operationName}}, nil, out)
}

func (c *Client) SignedURL(ctx context.Context, uri string) (*model.SignedURLResponse, error) {
	out := &model.SignedURLResponse{}
	return out, c.do(ctx, http.MethodGet, "/api/v1/media/signed-url", url.Values{"uri": {uri}}, nil, out)
}

func (c *Client) Health(ctx context.Context) (*services.HealthReport, error) {
	out := &services.HealthReport{}
	return out, c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil, out)
}

// do sends one request and decodes a 2xx body into out. Any other status is
// decoded as an error envelope and returned as an *apperr.AppError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeEnvelope(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func decodeEnvelope(status int, raw []byte) error {
	var env apperr.ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Code == "" {
		return apperr.Upstream(apperr.UnknownError, status, string(raw))
	}
	return &apperr.AppError{Message: env.Error, HTTPStatus: status, Code: env.Code, Context: env.Details}
}
