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


package workflow_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/prompt"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/workflow"
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keys struct{ missing bool }

func (k keys) TextAPIKey() (string, error) {
	if k.missing {
		return "", apperr.New(apperr.APIKeyMissing, "Text analysis API key is not configured")
	}
	return "sk-test", nil
}

type generator struct {
	answer string
	calls  int
}

func (g *generator) GenerateText(context.Context, string) (string, error) {
	g.calls++
	return g.answer, nil
}

func (g *generator) ModelName() string { return "test-model" }

type sink struct {
	mu     sync.Mutex
	rows   []*model.ArchivedAnalysis
	events []*model.GenerationEvent
}

func (s *sink) Archive(_ context.Context, row *model.ArchivedAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *sink) Publish(_ context.Context, evt *model.GenerationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

const body = `{"conversation":[{"speaker":"moderator","message":"What frustrates you?"},` +
	`{"speaker":"persona","message":"The checkout takes forever."}],` +
	`"persona":{"name":"Ana","type":"shopper","background":"Shops weekly."},"scenario":{"name":"Checkout"}}`

const answer = `{"keyInsights":["Checkout is slow"],"sentiment":{"overall":"negative","confidence":0.7,"reasoning":"complaint"},` +
	`"authenticityScore":0.8,"painPoints":["slow checkout"],"opportunities":[],"quotes":["takes forever"],"recommendations":[]}`

func newWorkflow(t *testing.T, k keys, gen *generator, strict bool, s *sink) *workflow.AnalysisWorkflow {
	t.Helper()
	builder, err := prompt.NewAnalysisBuilder("", 0)
	require.NoError(t, err)
	deps := workflow.AnalysisDependencies{
		Keys:         k,
		Generator:    gen,
		Builder:      builder,
		Limits:       sanitize.DefaultLimits(),
		StrictSchema: strict,
	}
	if s != nil {
		deps.Archiver = s
		deps.Events = s
	}
	w, err := workflow.NewAnalysisWorkflow(deps)
	require.NoError(t, err)
	return w
}

func TestAnalysisWorkflowSteps(t *testing.T) {
	w := newWorkflow(t, keys{}, &generator{}, true, nil)
	assert.Equal(t, []string{
		"read-request", "check-required-fields", "check-api-key", "filter-conversation",
		"build-prompt", "generate-analysis", "extract-analysis", "validate-analysis",
	}, w.Steps())

	w = newWorkflow(t, keys{}, &generator{}, true, &sink{})
	assert.Equal(t, "publish-analysis-event", w.Steps()[len(w.Steps())-1])
}

func TestAnalysisWorkflowRun(t *testing.T) {
	s := &sink{}
	gen := &generator{answer: "Here you go:\n" + answer}
	out, err := newWorkflow(t, keys{}, gen, true, s).Run(context.Background(), []byte(body))
	require.NoError(t, err)

	assert.Equal(t, []any{"Checkout is slow"}, out.Analysis["keyInsights"])
	assert.Empty(t, out.SchemaWarnings)
	require.Len(t, s.rows, 1)
	assert.Equal(t, "Checkout", s.rows[0].ScenarioName)
	require.Len(t, s.events, 1)
	assert.Equal(t, model.EventAnalysisCompleted, s.events[0].Type)
}

func TestAnalysisWorkflowErrorOrder(t *testing.T) {
	gen := &generator{answer: answer}

	_, err := newWorkflow(t, keys{missing: true}, gen, true, nil).Run(context.Background(), []byte(`{"persona":{}}`))
	assert.True(t, apperr.HasCode(err, apperr.MissingRequiredFields))

	_, err = newWorkflow(t, keys{missing: true}, gen, true, nil).
		Run(context.Background(), []byte(`{"conversation":[],"persona":{},"scenario":{}}`))
	assert.True(t, apperr.HasCode(err, apperr.APIKeyMissing))

	_, err = newWorkflow(t, keys{}, gen, true, nil).
		Run(context.Background(), []byte(`{"conversation":"hello","persona":{},"scenario":{}}`))
	assert.True(t, apperr.HasCode(err, apperr.InvalidConversation))

	assert.Equal(t, 0, gen.calls)
}

func TestAnalysisWorkflowSchemaModes(t *testing.T) {
	partial := &generator{answer: `{"keyInsights":[],"authenticityScore":1.5}`}

	_, err := newWorkflow(t, keys{}, partial, true, nil).Run(context.Background(), []byte(body))
	require.True(t, apperr.HasCode(err, apperr.SchemaMismatch))
	ae, _ := apperr.As(err)
	assert.NotEmpty(t, ae.Context["reasons"])

	s := &sink{}
	out, err := newWorkflow(t, keys{}, partial, false, s).Run(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Contains(t, out.SchemaWarnings, "authenticityScore: must be <= 1")
	require.Len(t, s.rows, 1)
	assert.False(t, s.rows[0].SchemaValid)
}

func TestAnalysisWorkflowDefaultConfigWarnsOnPartialAnalysis(t *testing.T) {
	strict := cloud.NewConfig().Analysis.StrictSchema
	gen := &generator{answer: "Sure, here:\n{\"keyInsights\":[\"a\"]}\nThanks"}

	out, err := newWorkflow(t, keys{}, gen, strict, nil).Run(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, out.Analysis["keyInsights"])
	assert.NotEmpty(t, out.SchemaWarnings)
}

func TestAnalysisWorkflowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newWorkflow(t, keys{}, &generator{answer: answer}, true, nil).Run(ctx, []byte(body))
	assert.True(t, apperr.HasCode(err, apperr.InternalError))
}

func TestNewAnalysisWorkflowRequiresCollaborators(t *testing.T) {
	_, err := workflow.NewAnalysisWorkflow(workflow.AnalysisDependencies{})
	assert.Error(t, err)
}
