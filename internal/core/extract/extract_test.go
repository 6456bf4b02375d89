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

package extract_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/extract"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestExtractJSONFromProse(t *testing.T) {
	out, err := extract.ExtractJSON("Sure, here:\n{\"keyInsights\":[\"a\"]}\nThanks")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keyInsights": []any{"a"}}, out)

	out, err = extract.ExtractJSON("```json\n{\"a\": {\"b\": 1}}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": float64(1)}}, out)
}

func TestExtractJSONFailures(t *testing.T) {
	_, err := extract.ExtractJSON("I could not analyze this transcript.")
	assert.True(t, apperr.HasCode(err, apperr.ParseError))
	assert.Equal(t, http.StatusInternalServerError, apperr.CreateErrorResponse(err, "").StatusCode)

	_, err = extract.ExtractJSON("{not json}")
	assert.True(t, apperr.HasCode(err, apperr.JSONParseError))

	// The span is greedy, so two objects separated by prose are not valid JSON.
	_, err = extract.ExtractJSON(`{"a":1} and {"b":2}`)
	assert.True(t, apperr.HasCode(err, apperr.JSONParseError))
}

const validAnalysis = `{
  "keyInsights": ["a"],
  "sentiment": {"overall": "positive", "confidence": 0, "reasoning": "r"},
  "authenticityScore": 1,
  "painPoints": [],
  "opportunities": [],
  "quotes": [],
  "recommendations": []
}`

func TestValidateAnalysisAcceptsBoundaries(t *testing.T) {
	res := extract.ValidateAnalysis(decode(t, validAnalysis))
	assert.True(t, res.Valid, res.Reasons)
	assert.Empty(t, res.Reasons)
	assert.NoError(t, res.Err())
}

func TestValidateAnalysisReportsReasons(t *testing.T) {
	raw := decode(t, `{
	  "keyInsights": "not an array",
	  "sentiment": {"overall": "", "confidence": 1.5},
	  "authenticityScore": -0.1,
	  "painPoints": [],
	  "opportunities": [],
	  "quotes": []
	}`)
	res := extract.ValidateAnalysis(raw)
	require.False(t, res.Valid)

	assert.Contains(t, res.Reasons, "sentiment.overall: is required")
	assert.Contains(t, res.Reasons, "sentiment.confidence: must be <= 1")
	assert.Contains(t, res.Reasons, "authenticityScore: must be >= 0")
	assert.Contains(t, res.Reasons, "recommendations: is required")
	found := false
	for _, r := range res.Reasons {
		if len(r) > len("keyInsights:") && r[:len("keyInsights:")] == "keyInsights:" {
			found = true
		}
	}
	assert.True(t, found, "keyInsights type error should be reported once: %v", res.Reasons)

	env := apperr.CreateErrorResponse(res.Err(), "")
	assert.Equal(t, apperr.SchemaMismatch, env.Code)
	assert.Equal(t, res.Reasons, env.Details["reasons"])
}

func TestClassifyOperation(t *testing.T) {
	op := extract.ClassifyOperation("op/1", decode(t, `{"done": false}`))
	assert.Equal(t, model.VideoGenerating, op.State)
	assert.Empty(t, op.Videos)

	op = extract.ClassifyOperation("op/1", decode(t, `{}`))
	assert.Equal(t, model.VideoGenerating, op.State)

	op = extract.ClassifyOperation("op/1", decode(t, `{"done": true, "error": {"code": 3, "message": "blocked"}}`))
	assert.Equal(t, model.VideoFailed, op.State)
	assert.Equal(t, map[string]any{"code": float64(3), "message": "blocked"}, op.Error)

	// The error is checked before done.
	op = extract.ClassifyOperation("op/1", decode(t, `{"done": false, "error": {"message": "quota"}}`))
	assert.Equal(t, model.VideoFailed, op.State)

	op = extract.ClassifyOperation("op/1", decode(t, `{"done": true, "response": {"videos": [{"gcsUri": "gs://x", "mimeType": "video/mp4"}]}}`))
	assert.Equal(t, model.VideoCompleted, op.State)
	require.Len(t, op.Videos, 1)
	assert.Equal(t, model.VideoDescriptor{Kind: model.VideoKindGCS, URI: "gs://x", MIMEType: "video/mp4"}, op.Videos[0])
}

func TestExtractVideosDropsMalformedEntries(t *testing.T) {
	videos := extract.ExtractVideos(decode(t, `{"videos": [
	  {"gcsUri": "gs://b/v1.mp4"},
	  {"mimeType": "video/mp4"},
	  {"bytesBase64Encoded": "AAAA", "mimeType": "video/webm"},
	  "garbage",
	  {"gcsUri": "", "bytesBase64Encoded": ""}
	]}`))
	require.Len(t, videos, 2)
	assert.Equal(t, model.VideoKindGCS, videos[0].Kind)
	assert.Equal(t, extract.DefaultVideoMIMEType, videos[0].MIMEType)
	assert.Equal(t, model.VideoDescriptor{Kind: model.VideoKindBase64, Data: "AAAA", MIMEType: "video/webm"}, videos[1])

	legacy := extract.ExtractVideos(decode(t, `{"generatedSamples": [{"video": {"uri": "ignored"}}, {"video": {"gcsUri": "gs://b/v2.mp4"}}]}`))
	require.Len(t, legacy, 1)
	assert.Equal(t, "gs://b/v2.mp4", legacy[0].URI)

	assert.NotNil(t, extract.ExtractVideos(nil))
	assert.Empty(t, extract.ExtractVideos("not an object"))
}

func TestVideoURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/b/videos/v.mp4",
		extract.VideoURL(model.VideoDescriptor{Kind: model.VideoKindGCS, URI: "gs://b/videos/v.mp4"}))
	assert.Equal(t, "data:video/mp4;base64,AAAA",
		extract.VideoURL(model.VideoDescriptor{Kind: model.VideoKindBase64, Data: "AAAA", MIMEType: "video/mp4"}))
}

func TestStatusResponseIsDeterministic(t *testing.T) {
	raw := `{"done": true, "response": {"videos": [{"gcsUri": "gs://b/v.mp4"}], "raiMediaFilteredCount": 0}}`
	first, err := json.Marshal(extract.StatusResponse(extract.ClassifyOperation("op/9", decode(t, raw))))
	require.NoError(t, err)
	second, err := json.Marshal(extract.StatusResponse(extract.ClassifyOperation("op/9", decode(t, raw))))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"videoUrl":"https://storage.googleapis.com/b/v.mp4"`)
	assert.Contains(t, string(first), `"status":"completed"`)
}
