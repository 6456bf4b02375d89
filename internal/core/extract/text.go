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

// Package extract pulls structured data out of provider responses.
//
// Text answers are expected to hold one JSON object somewhere in free-form
// prose. Video operations are classified into the generating, completed and
// failed states and their videos mapped to descriptors.
//
// Functions:
//   - ExtractJSON: Finds and decodes the JSON object in a text answer.
//   - ValidateAnalysis: Checks a decoded analysis against AnalysisResult.
//   - ClassifyOperation: Maps a raw operation status to a VideoOperation.
//   - ExtractVideos: Maps a completed operation's response to descriptors.
//   - VideoURL: Maps a descriptor to a URL a browser can load.
package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"unicode/utf8"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
)

// PreviewRunes bounds the raw text logged when extraction fails.
const PreviewRunes = 200

// jsonSpan is greedy: it runs from the first '{' to the last '}'.
var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON decodes the JSON object embedded in text.
//
// Inputs:
//   - text: The raw model answer.
//
// Outputs:
//   - map[string]any: The decoded object.
//   - error: PARSE_ERROR when no brace delimited span exists, JSON_PARSE_ERROR
//     when the span is not a valid JSON object.
func ExtractJSON(text string) (map[string]any, error) {
	span := jsonSpan.FindString(text)
	if span == "" {
		logPreview("model answer contains no JSON object", text, nil)
		return nil, apperr.New(apperr.ParseError, "Failed to parse analysis response")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		logPreview("model answer contains invalid JSON", text, err)
		return nil, apperr.Wrap(apperr.JSONParseError, "Invalid JSON in analysis response", err)
	}
	return out, nil
}

func logPreview(msg, text string, err error) {
	attrs := []any{
		"preview", sanitize.TruncateRunes(text, PreviewRunes),
		"length", utf8.RuneCountInString(text),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	slog.Warn(msg, attrs...)
}
