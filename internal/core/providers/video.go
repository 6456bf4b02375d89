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

package providers

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

var (
	operationModel    = regexp.MustCompile(`/models/([^/]+)/operations/`)
	operationLocation = regexp.MustCompile(`/locations/([^/]+)/`)
)

type videoInstance struct {
	Prompt string `json:"prompt"`
}

type videoParameters struct {
	AspectRatio     string `json:"aspectRatio"`
	SampleCount     int    `json:"sampleCount"`
	DurationSeconds int    `json:"durationSeconds"`
	StorageURI      string `json:"storageUri,omitempty"`
}

type predictLongRunningRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type fetchOperationRequest struct {
	OperationName string `json:"operationName"`
}

// VideoClient starts and observes long running video generations. It keeps
// no operation state; the provider is the only source of truth.
type VideoClient struct {
	vertex       *VertexClient
	model        cloud.VertexMediaModel
	location     string
	createPolicy cloud.CallPolicy
	statusPolicy cloud.CallPolicy
}

// NewVideoClient creates the adapter. createPolicy should not retry, since a
// repeated create starts a second job.
func NewVideoClient(vertex *VertexClient, m cloud.VertexMediaModel, location string, createPolicy, statusPolicy cloud.CallPolicy) *VideoClient {
	if m.SampleCount < 1 {
		m.SampleCount = 1
	}
	return &VideoClient{
		vertex:       vertex,
		model:        m,
		location:     locationOf(m, location),
		createPolicy: createPolicy,
		statusPolicy: statusPolicy,
	}
}

// Start submits a generation and returns its operation name.
//
// Inputs:
//   - ctx: The request context.
//   - prompt: The sanitized prompt.
//   - aspect: A validated aspect ratio.
//   - storageURI: Optional `gs://` prefix the provider writes the videos to.
//
// Outputs:
//   - string: The operation name.
//   - error: VEO3_API_ERROR with the upstream status, or
//     MISSING_OPERATION_HANDLE when the answer carries no name.
func (c *VideoClient) Start(ctx context.Context, prompt string, aspect model.AspectRatio, storageURI string) (string, error) {
	req := predictLongRunningRequest{
		Instances: []videoInstance{{Prompt: prompt}},
		Parameters: videoParameters{
			AspectRatio:     string(aspect),
			SampleCount:     c.model.SampleCount,
			DurationSeconds: c.model.DurationSeconds,
			StorageURI:      storageURI,
		},
	}
	target := Target{Location: c.location, Model: c.model.Model, Method: "predictLongRunning", EndpointOverride: c.model.EndpointOverride}
	body, err := c.vertex.Invoke(ctx, target, req, apperr.Veo3APIError, c.createPolicy)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Name == "" {
		return "", apperr.New(apperr.MissingOperationHandle, "Video provider did not return an operation name")
	}
	return resp.Name, nil
}

// Fetch returns the raw status object of operationName. The model and the
// location are taken from the operation name when it carries them.
func (c *VideoClient) Fetch(ctx context.Context, operationName string) (map[string]any, error) {
	target := Target{
		Location:         c.location,
		Model:            c.model.Model,
		Method:           "fetchPredictOperation",
		EndpointOverride: c.model.EndpointOverride,
	}
	if m := operationModel.FindStringSubmatch(operationName); m != nil {
		target.Model = m[1]
	}
	if m := operationLocation.FindStringSubmatch(operationName); m != nil {
		target.Location = m[1]
	}

	body, err := c.vertex.Invoke(ctx, target, fetchOperationRequest{OperationName: operationName}, apperr.Veo3StatusError, c.statusPolicy)
	if err != nil {
		return nil, err
	}
	var status map[string]any
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, apperr.Wrap(apperr.Veo3StatusError, "Video provider returned an unreadable status", err).
			WithContext("upstreamBody", apperr.BodyPreview(string(body)))
	}
	if status == nil {
		status = map[string]any{}
	}
	return status, nil
}
