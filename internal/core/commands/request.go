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


// Package commands provides the concrete steps of the analysis pipeline. This
// file holds the steps that check the shape of an analysis request before any
// provider is contacted.
//
// Logic Flow:
//  1. RequestReader decodes the raw body into a JSON object.
//  2. RequiredFields checks that conversation, persona and scenario are present.
//  3. APIKeyCheck fails fast when the text provider key is not configured.
//  4. ConversationFilter sanitizes every field and drops malformed turns.
package commands

import (
	"encoding/json"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/cor"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
)

// AnalysisFields are the top level fields every analysis request must carry.
var AnalysisFields = []string{"conversation", "persona", "scenario"}

// RequestReader decodes a raw JSON body into a map.
type RequestReader struct {
	cor.BaseCommand
}

// NewRequestReader creates the reader step.
func NewRequestReader(name string) *RequestReader {
	return &RequestReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute expects a []byte input and produces a map[string]any.
func (c *RequestReader) Execute(context cor.Context) {
	in, ok := context.Get(c.GetInputParam()).([]byte)
	if !ok {
		c.Fail(context, apperr.New(apperr.InvalidJSON, "Request body must be a JSON object"))
		return
	}
	var body map[string]any
	if err := json.Unmarshal(in, &body); err != nil || body == nil {
		c.Fail(context, apperr.Wrap(apperr.InvalidJSON, "Request body must be a JSON object", err))
		return
	}
	c.Succeed(context, body)
}

// RequiredFields reports every missing top level field at once.
type RequiredFields struct {
	cor.BaseCommand
	fields []string
}

// NewRequiredFields creates a step that requires fields, in order.
func NewRequiredFields(name string, fields []string) *RequiredFields {
	return &RequiredFields{BaseCommand: *cor.NewBaseCommand(name), fields: fields}
}

func (c *RequiredFields) Execute(context cor.Context) {
	body := context.Get(c.GetInputParam()).(map[string]any)
	if res := sanitize.ValidateRequired(body, c.fields); !res.IsValid {
		c.Fail(context, apperr.New(apperr.MissingRequiredFields, "Missing required fields").
			WithContext("missing", res.Missing))
		return
	}
	c.Succeed(context, body)
}

// APIKeySource resolves the text provider key at call time.
type APIKeySource interface {
	TextAPIKey() (string, error)
}

// APIKeyCheck passes its input through when a text API key is configured.
type APIKeyCheck struct {
	cor.BaseCommand
	keys APIKeySource
}

func NewAPIKeyCheck(name string, keys APIKeySource) *APIKeyCheck {
	return &APIKeyCheck{BaseCommand: *cor.NewBaseCommand(name), keys: keys}
}

func (c *APIKeyCheck) Execute(context cor.Context) {
	if _, err := c.keys.TextAPIKey(); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, context.Get(c.GetInputParam()))
}

// ConversationFilter turns a validated body into a sanitized
// model.AnalysisRequest. The request is also stored under ParamRequest.
type ConversationFilter struct {
	cor.BaseCommand
	limits sanitize.Limits
}

// NewConversationFilter creates the filter step.
//
// Inputs:
//   - name: A string name for this command instance.
//   - limits: Field caps. Unset caps use the defaults.
//
// Outputs:
//   - *ConversationFilter: The new command.
func NewConversationFilter(name string, limits sanitize.Limits) *ConversationFilter {
	return &ConversationFilter{BaseCommand: *cor.NewBaseCommand(name), limits: limits.WithDefaults()}
}

func (c *ConversationFilter) Execute(context cor.Context) {
	body := context.Get(c.GetInputParam()).(map[string]any)

	raw, ok := body["conversation"].([]any)
	if !ok || len(raw) == 0 {
		c.Fail(context, apperr.New(apperr.InvalidConversation, "Conversation must be a non-empty array"))
		return
	}
	turns := sanitize.FilterTranscript(raw, c.limits.TurnMessage)
	if len(turns) == 0 {
		c.Fail(context, apperr.New(apperr.InvalidConversation, "Conversation contains no valid turns").
			WithContext("receivedTurns", len(raw)))
		return
	}

	persona, _ := body["persona"].(map[string]any)
	scenario, _ := body["scenario"].(map[string]any)
	req := &model.AnalysisRequest{
		Conversation: turns,
		Persona: model.PersonaProfile{
			Name:       sanitize.SanitizeString(persona["name"], c.limits.PersonaName),
			Type:       sanitize.SanitizeString(persona["type"], c.limits.PersonaType),
			Background: sanitize.SanitizeString(persona["background"], c.limits.PersonaBackground),
		},
		Scenario: model.Scenario{
			Name: sanitize.SanitizeString(scenario["name"], c.limits.ScenarioName),
		},
	}
	context.Add(ParamRequest, req)
	c.Succeed(context, req)
}
