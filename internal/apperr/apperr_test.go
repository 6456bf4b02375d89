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

package apperr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryCodeIsRegistered(t *testing.T) {
	seen := make(map[apperr.Code]bool)
	for _, c := range apperr.AllCodes() {
		assert.True(t, c.Known(), "code %s has no table entry", c)
		assert.False(t, seen[c], "code %s listed twice", c)
		seen[c] = true
	}
	assert.False(t, apperr.Code("NOT_A_CODE").Known())
}

func TestInputCodesAreBadRequest(t *testing.T) {
	for _, c := range apperr.AllCodes() {
		if apperr.KindOf(c) != apperr.KindInput || c == apperr.PayloadTooLarge {
			continue
		}
		assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(c), string(c))
	}
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusOf(apperr.APIKeyMissing))
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusOf(apperr.ParseError))
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusOf(apperr.JSONParseError))
}

func TestCreateErrorResponseAppError(t *testing.T) {
	ae := apperr.New(apperr.MissingRequiredFields, "Missing required fields").
		WithContext("missing", []string{"persona", "scenario"})

	env := apperr.CreateErrorResponse(ae, "fallback")
	assert.Equal(t, "Missing required fields", env.Error)
	assert.Equal(t, apperr.MissingRequiredFields, env.Code)
	assert.Equal(t, http.StatusBadRequest, env.StatusCode)
	assert.Equal(t, []string{"persona", "scenario"}, env.Details["missing"])
}

func TestCreateErrorResponseWrappedAppError(t *testing.T) {
	ae := apperr.Upstream(apperr.NanoBananaAPIError, http.StatusTooManyRequests, "quota exceeded")
	wrapped := fmt.Errorf("image step: %w", ae)

	env := apperr.CreateErrorResponse(wrapped, "fallback")
	assert.Equal(t, apperr.NanoBananaAPIError, env.Code)
	assert.Equal(t, http.StatusTooManyRequests, env.StatusCode)
	assert.Equal(t, "quota exceeded", env.Details["upstreamBody"])
}

func TestCreateErrorResponseGenericError(t *testing.T) {
	env := apperr.CreateErrorResponse(errors.New("connection reset"), "fallback")
	assert.Equal(t, "connection reset", env.Error)
	assert.Equal(t, apperr.InternalError, env.Code)
	assert.Equal(t, http.StatusInternalServerError, env.StatusCode)
	assert.Nil(t, env.Details)
}

func TestCreateErrorResponseIsTotal(t *testing.T) {
	var typedNil *apperr.AppError
	var nilErr error
	inputs := []any{
		nil,
		nilErr,
		typedNil,
		"a thrown string",
		42,
		struct{ X int }{1},
		[]int{1, 2},
		errors.New(""),
	}
	for i, in := range inputs {
		env := apperr.CreateErrorResponse(in, "Something failed", apperr.TextAPIError)
		assert.NotEmpty(t, env.Error, "input %d", i)
		assert.NotEmpty(t, env.Code, "input %d", i)
		assert.Equal(t, http.StatusInternalServerError, env.StatusCode, "input %d", i)

		raw, err := json.Marshal(env)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Contains(t, decoded, "error")
		assert.Contains(t, decoded, "code")
		assert.Contains(t, decoded, "statusCode")
	}

	env := apperr.CreateErrorResponse("oops", "Something failed", apperr.TextAPIError)
	assert.Equal(t, "Something failed", env.Error)
	assert.Equal(t, apperr.TextAPIError, env.Code)

	env = apperr.CreateErrorResponse(nil, "")
	assert.Equal(t, apperr.DefaultFallbackMessage, env.Error)
	assert.Equal(t, apperr.UnknownError, env.Code)
}

type panickyError struct{}

func (panickyError) Error() string { panic("boom") }

func TestCreateErrorResponseRecoversFromPanics(t *testing.T) {
	env := apperr.CreateErrorResponse(panickyError{}, "fallback", apperr.InternalError)
	assert.Equal(t, "fallback", env.Error)
	assert.Equal(t, apperr.InternalError, env.Code)
}

func TestUpstreamKeepsStatusAndTruncatesBody(t *testing.T) {
	body := strings.Repeat("x", apperr.MaxBodyPreview*2)
	ae := apperr.Upstream(apperr.Veo3StatusError, http.StatusNotFound, body)
	assert.Equal(t, http.StatusNotFound, ae.HTTPStatus)
	assert.Len(t, ae.Context["upstreamBody"], apperr.MaxBodyPreview)

	// Non error statuses fall back to the table default.
	ae = apperr.Upstream(apperr.Veo3StatusError, 200, "")
	assert.Equal(t, http.StatusBadGateway, ae.HTTPStatus)
}

func TestUpstreamRedactsCredentials(t *testing.T) {
	body := `{"error":{"message":"Incorrect API key provided: sk-proj-****abcd. Header was Bearer ya29.a0Af-xyz","code":"invalid_api_key"}}`
	ae := apperr.Upstream(apperr.TextAPIError, http.StatusUnauthorized, body)

	preview := ae.Context["upstreamBody"].(string)
	assert.NotContains(t, preview, "sk-proj")
	assert.NotContains(t, preview, "ya29.")
	assert.Contains(t, preview, apperr.RedactedSecret)
	assert.Contains(t, preview, "invalid_api_key")
	assert.Equal(t, "quota exceeded", apperr.BodyPreview("quota exceeded"))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := "héllo"
	assert.Equal(t, "h", apperr.Truncate(s, 2))
	assert.Equal(t, "hé", apperr.Truncate(s, 3))
	assert.Equal(t, s, apperr.Truncate(s, 0))
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", apperr.New(apperr.ParseError, "no json"))
	assert.True(t, apperr.HasCode(err, apperr.ParseError))
	assert.False(t, apperr.HasCode(err, apperr.JSONParseError))
	assert.False(t, apperr.HasCode(errors.New("plain"), apperr.ParseError))
}
