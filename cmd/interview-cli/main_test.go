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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T, polls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/videos/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.VideoStartResponse{Success: true, OperationName: "projects/p/operations/op-1", Status: model.VideoGenerating})
	})
	mux.HandleFunc("/api/v1/videos/status", func(w http.ResponseWriter, r *http.Request) {
		status := model.VideoGenerating
		if atomic.AddInt32(polls, 1) >= 3 {
			status = model.VideoCompleted
		}
		_ = json.NewEncoder(w).Encode(model.VideoStatusResponse{
			Success: true, Status: status, OperationName: r.URL.Query().Get("operationName"),
		})
	})
	mux.HandleFunc("/api/v1/images/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(apperr.ErrorEnvelope{
			Error: "Invalid aspect ratio", Code: apperr.InvalidAspectRatio, StatusCode: http.StatusBadRequest,
			Details: map[string]any{"allowed": []string{"1:1", "16:9", "9:16"}},
		})
	})
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream connect error"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVideoWaitPollsUntilCompleted(t *testing.T) {
	var polls int32
	srv := fakeAPI(t, &polls)

	stdout, stderr, err := run(t, "video", "--server", srv.URL, "--prompt", "persona walking", "--wait", "--interval", "1ms")
	require.NoError(t, err, stderr)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
	assert.Contains(t, stderr, "poll 3: completed")

	var status model.VideoStatusResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &status))
	assert.Equal(t, model.VideoCompleted, status.Status)
	assert.Equal(t, "projects/p/operations/op-1", status.OperationName)
}

func TestVideoWaitGivesUp(t *testing.T) {
	var polls int32 = -100
	srv := fakeAPI(t, &polls)

	_, stderr, err := run(t, "status", "projects/p/operations/op-1", "--server", srv.URL, "--wait", "--interval", "1ms", "--max-wait", "20ms")
	require.Error(t, err)
	assert.Contains(t, stderr, "resume with")
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	var polls int32
	srv := fakeAPI(t, &polls)
	c := NewClient(srv.URL+"/", nil)

	_, err := c.GenerateImage(context.Background(), model.ImageGenerationRequest{Prompt: "x", AspectRatio: "4:3"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidAspectRatio, ae.Code)
	assert.Equal(t, http.StatusBadRequest, ae.HTTPStatus)
	assert.Equal(t, []any{"1:1", "16:9", "9:16"}, ae.Context["allowed"])

	_, err = c.Health(context.Background())
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.UnknownError, ae.Code)
	assert.Equal(t, "upstream connect error", ae.Context["upstreamBody"])
}
