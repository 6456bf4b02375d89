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

// Package prompt builds the text prompts sent to the generative providers.
//
// Prompts are rendered from Go templates. The template text can be replaced
// from configuration (`[prompt_templates]`); the built-in defaults are used
// when the configured value is empty. Rendering is pure: the same inputs
// always produce the same prompt.
//
// Structs:
//   - AnalysisBuilder: Renders the transcript analysis prompt.
//   - SuggestionBuilder: Renders the follow-up question prompt.
//
// Functions:
//   - NewAnalysisBuilder: Parses an analysis template.
//   - NewSuggestionBuilder: Parses a suggestion template.
//   - FormatTranscript: Renders a transcript as "Speaker: message" lines.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
)

const (
	// MaxPromptRunes caps a composed prompt. The cap is applied after the
	// template is rendered, so a long transcript loses its tail.
	MaxPromptRunes = 50000

	// ModeratorLabel is the fixed label of moderator turns.
	ModeratorLabel = "Interviewer"

	// DefaultPersonaLabel labels persona turns when the persona has no name.
	DefaultPersonaLabel = "Persona"
)

// DefaultAnalysisTemplate is the built-in analysis prompt.
const DefaultAnalysisTemplate = `You are an experienced UX researcher. Analyze the interview transcript below and extract insights about the participant's needs, behaviour and attitudes.

Participant
- Name: {{.PERSONA_NAME}}
- Type: {{.PERSONA_TYPE}}
- Background: {{.PERSONA_BACKGROUND}}

Scenario: {{.SCENARIO_NAME}}

Transcript:
{{.TRANSCRIPT}}

Answer with a single JSON object and nothing else. The object must have exactly these fields:
- keyInsights: array of strings
- sentiment: object with overall (string), confidence (number from 0 to 1) and reasoning (string)
- authenticityScore: number from 0 to 1 rating how realistic the participant's answers are
- painPoints: array of strings
- opportunities: array of strings
- quotes: array of strings copied verbatim from the participant's turns
- recommendations: array of strings

Example:
{{.EXAMPLE_JSON}}
`

// DefaultSuggestionTemplate is the built-in follow-up question prompt.
const DefaultSuggestionTemplate = `You are helping a UX researcher run an interview with {{.PERSONA_NAME}}.

The interviewer last asked:
{{.LAST_INTERVIEWER_MSG}}

The participant answered:
{{.LAST_PERSONA_RESPONSE}}

Suggest one open-ended follow-up question that digs deeper into the participant's answer. Reply with the question only.
`

func parse(name, text, fallback string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = fallback
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s prompt template: %w", name, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, params map[string]interface{}, maxRunes int) (string, error) {
	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, params); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", tmpl.Name(), err)
	}
	return sanitize.TruncateRunes(buffer.String(), maxRunes), nil
}

// PersonaLabel returns the transcript label used for persona turns. The
// label is always a single line.
func PersonaLabel(personaName string) string {
	if name := strings.TrimSpace(sanitize.SingleLine(personaName)); name != "" {
		return name
	}
	return DefaultPersonaLabel
}

// FormatTranscript renders one "Speaker: message" line per turn. Moderator
// turns are labeled ModeratorLabel and persona turns PersonaLabel(personaName).
// Line breaks inside a message are folded so a turn never spans two lines.
func FormatTranscript(personaName string, transcript []model.ConversationTurn) string {
	persona := PersonaLabel(personaName)
	lines := make([]string, 0, len(transcript))
	for _, turn := range transcript {
		label := persona
		if turn.Speaker == model.SpeakerModerator {
			label = ModeratorLabel
		}
		lines = append(lines, label+": "+sanitize.SingleLine(turn.Message))
	}
	return strings.Join(lines, "\n")
}

// AnalysisBuilder renders the transcript analysis prompt.
type AnalysisBuilder struct {
	template    *template.Template
	exampleJSON string
	maxRunes    int
}

// NewAnalysisBuilder parses an analysis template.
//
// Inputs:
//   - text: The template text. Empty selects DefaultAnalysisTemplate.
//   - maxRunes: The cap on the composed prompt. Values <= 0 use MaxPromptRunes.
//
// Outputs:
//   - *AnalysisBuilder: The builder.
//   - error: A template parse error.
func NewAnalysisBuilder(text string, maxRunes int) (*AnalysisBuilder, error) {
	tmpl, err := parse("analysis", text, DefaultAnalysisTemplate)
	if err != nil {
		return nil, err
	}
	example, err := json.MarshalIndent(model.GetExampleAnalysis(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode example analysis: %w", err)
	}
	if maxRunes <= 0 {
		maxRunes = MaxPromptRunes
	}
	return &AnalysisBuilder{template: tmpl, exampleJSON: string(example), maxRunes: maxRunes}, nil
}

// Build renders the analysis prompt. All inputs are expected to be sanitized
// already. The background is embedded verbatim and the other fields are
// folded onto one line.
func (b *AnalysisBuilder) Build(personaName, personaType, personaBackground, scenarioName string, transcript []model.ConversationTurn) (string, error) {
	params := map[string]interface{}{
		"PERSONA_NAME":       PersonaLabel(personaName),
		"PERSONA_TYPE":       sanitize.SingleLine(personaType),
		"PERSONA_BACKGROUND": personaBackground,
		"SCENARIO_NAME":      sanitize.SingleLine(scenarioName),
		"TRANSCRIPT":         FormatTranscript(personaName, transcript),
		"EXAMPLE_JSON":       b.exampleJSON,
	}
	return render(b.template, params, b.maxRunes)
}

// BuildRequest is Build for an AnalysisRequest.
func (b *AnalysisBuilder) BuildRequest(req *model.AnalysisRequest) (string, error) {
	return b.Build(req.Persona.Name, req.Persona.Type, req.Persona.Background, req.Scenario.Name, req.Conversation)
}

// SuggestionBuilder renders the follow-up question prompt.
type SuggestionBuilder struct {
	template *template.Template
	maxRunes int
}

// NewSuggestionBuilder parses a suggestion template. Empty text selects
// DefaultSuggestionTemplate.
func NewSuggestionBuilder(text string, maxRunes int) (*SuggestionBuilder, error) {
	tmpl, err := parse("suggestion", text, DefaultSuggestionTemplate)
	if err != nil {
		return nil, err
	}
	if maxRunes <= 0 {
		maxRunes = MaxPromptRunes
	}
	return &SuggestionBuilder{template: tmpl, maxRunes: maxRunes}, nil
}

func (b *SuggestionBuilder) Build(lastInterviewerMsg, lastPersonaResponse, personaName string) (string, error) {
	params := map[string]interface{}{
		"PERSONA_NAME":          PersonaLabel(personaName),
		"LAST_INTERVIEWER_MSG":  lastInterviewerMsg,
		"LAST_PERSONA_RESPONSE": lastPersonaResponse,
	}
	return render(b.template, params, b.maxRunes)
}
