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


// Package services contains the business logic behind the HTTP handlers.
// This file defines the SuggestionService, which proposes the next interview
// question from the last exchange.
package services

import (
	"context"
	"strings"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/commands"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/prompt"
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
)

// SuggestionFields are required on every suggestion request.
var SuggestionFields = []string{"lastInterviewerMsg", "lastPersonaResponse"}

// SuggestionService asks a text provider for a follow-up question.
type SuggestionService struct {
	Keys      commands.APIKeySource // Optional. Checked before the request is sanitized.
	Generator commands.TextGenerator
	Builder   *prompt.SuggestionBuilder
	Limits    sanitize.Limits
}

// Suggest validates raw and returns one question.
//
// Inputs:
//   - ctx: The request context.
//   - raw: The decoded JSON body.
//
// Outputs:
//   - *model.SuggestionResponse: The success body.
//   - error: MISSING_REQUIRED_FIELDS, API_KEY_MISSING, EMPTY_RESPONSE or the
//     provider's SUGGESTION_API_ERROR.
func (s *SuggestionService) Suggest(ctx context.Context, raw map[string]any) (*model.SuggestionResponse, error) {
	if res := sanitize.ValidateRequired(raw, SuggestionFields); !res.IsValid {
		return nil, apperr.New(apperr.MissingRequiredFields, "Missing required fields").WithContext("missing", res.Missing)
	}
	if s.Keys != nil {
		if _, err := s.Keys.TextAPIKey(); err != nil {
			return nil, err
		}
	}

	limit := s.Limits.WithDefaults().SuggestInput
	req := model.SuggestionRequest{
		LastInterviewerMsg:  sanitize.SanitizeString(raw["lastInterviewerMsg"], limit),
		LastPersonaResponse: sanitize.SanitizeString(raw["lastPersonaResponse"], limit),
		PersonaName:         sanitize.SanitizeString(raw["personaName"], s.Limits.WithDefaults().PersonaName),
	}
	var empty []string
	if req.LastInterviewerMsg == "" {
		empty = append(empty, "lastInterviewerMsg")
	}
	if req.LastPersonaResponse == "" {
		empty = append(empty, "lastPersonaResponse")
	}
	if len(empty) > 0 {
		return nil, apperr.New(apperr.MissingRequiredFields, "Required fields must be non-empty text").WithContext("missing", empty)
	}

	text, err := s.Builder.Build(req.LastInterviewerMsg, req.LastPersonaResponse, req.PersonaName)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, "failed to build suggestion prompt", err)
	}
	answer, err := s.Generator.GenerateText(ctx, text)
	if err != nil {
		return nil, err
	}
	question := cleanQuestion(answer)
	if question == "" {
		return nil, apperr.New(apperr.EmptyResponse, "Suggestion provider returned an empty question")
	}
	return &model.SuggestionResponse{SuggestedQuestion: question, Success: true}, nil
}

// cleanQuestion keeps the first non-empty line and strips wrapping quotes.
func cleanQuestion(answer string) string {
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'“”")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
