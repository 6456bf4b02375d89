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

// Package providers contains the adapters for the external generative
// services: a chat completion endpoint for transcript analysis, and the
// Vertex AI publisher model endpoints for image and video synthesis.
//
// Every adapter checks its configuration (API key, project id) before any
// network call, runs the call under a cloud.CallPolicy, and converts non-2xx
// responses into an AppError that keeps the provider's HTTP status.
//
// Structs:
//   - VertexClient: Bearer authenticated JSON transport for publisher models.
//   - TextClient: Chat completion adapter.
//   - ImageClient: Image generation adapter.
//   - VideoClient: Long running video generation adapter.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GlobalLocation is served from the location-less host.
const GlobalLocation = "global"

// maxResponseBytes bounds a provider response body. Inline videos can be
// large, so the cap is generous.
const maxResponseBytes = 256 << 20

// VertexCredentials resolves the project id and a bearer token.
// *cloud.Credentials implements it.
type VertexCredentials interface {
	ProjectID() (string, error)
	Token() (string, error)
}

// Target addresses one method of one publisher model.
type Target struct {
	Location         string
	Model            string
	Method           string
	EndpointOverride string // Replaces scheme and host when set.
}

// URL returns the REST address of the target in projectID.
func (t Target) URL(projectID string) string {
	host := fmt.Sprintf("https://%s-aiplatform.googleapis.com", t.Location)
	if t.Location == GlobalLocation {
		host = "https://aiplatform.googleapis.com"
	}
	if t.EndpointOverride != "" {
		host = strings.TrimRight(t.EndpointOverride, "/")
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		host, url.PathEscape(projectID), url.PathEscape(t.Location), url.PathEscape(t.Model), t.Method)
}

// VertexClient posts JSON to publisher model methods.
type VertexClient struct {
	httpClient  *http.Client
	credentials VertexCredentials
	tracer      trace.Tracer
}

// NewVertexClient creates a transport. A nil httpClient gets a pooled
// client without a global timeout; deadlines come from the CallPolicy.
func NewVertexClient(httpClient *http.Client, credentials VertexCredentials) *VertexClient {
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConnsPerHost = 100
		transport.IdleConnTimeout = 90 * time.Second
		httpClient = &http.Client{Transport: transport}
	}
	return &VertexClient{
		httpClient:  httpClient,
		credentials: credentials,
		tracer:      otel.Tracer("vertex-client"),
	}
}

// Invoke posts payload to target and returns the raw 2xx response body.
//
// Inputs:
//   - ctx: The request context.
//   - target: The model method to call.
//   - payload: The request body, encoded as JSON.
//   - code: The error code used for non-2xx responses.
//   - policy: The timeout and retry policy.
//
// Outputs:
//   - []byte: The response body.
//   - error: MISSING_PROJECT_ID before any network call, AUTH_TOKEN_ERROR when
//     no token can be obtained, or code with the upstream status and body.
func (c *VertexClient) Invoke(ctx context.Context, target Target, payload any, code apperr.Code, policy cloud.CallPolicy) ([]byte, error) {
	projectID, err := c.credentials.ProjectID()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, "failed to encode provider request", err)
	}
	endpoint := target.URL(projectID)

	ctx, span := c.tracer.Start(ctx, "vertex."+target.Method)
	defer span.End()
	span.SetAttributes(attribute.String("vertex.model", target.Model), attribute.String("vertex.location", target.Location))

	var out []byte
	err = policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.post(ctx, endpoint, body, code)
		return callErr
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Wrap(code, "provider request failed", err)
	}
	span.SetStatus(codes.Ok, "ok")
	return out, nil
}

func (c *VertexClient) post(ctx context.Context, endpoint string, body []byte, code apperr.Code) ([]byte, error) {
	token, err := c.credentials.Token()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Upstream(code, resp.StatusCode, string(data))
	}
	return data, nil
}

func locationOf(m cloud.VertexMediaModel, fallback string) string {
	if m.Location != "" {
		return m.Location
	}
	return fallback
}
