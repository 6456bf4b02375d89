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


// Package workflow defines the high-level orchestrations, combining commands
// into pipelines. This file implements the transcript analysis workflow.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/commands"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/cor"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/extract"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/prompt"
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
)

// AnalysisDependencies are the collaborators of an AnalysisWorkflow.
type AnalysisDependencies struct {
	Keys         commands.APIKeySource   // Checked before any sanitization or provider work.
	Generator    commands.TextGenerator  // The text provider.
	Builder      *prompt.AnalysisBuilder // The prompt template.
	Limits       sanitize.Limits         // Field caps.
	StrictSchema bool                    // Fail on a schema mismatch instead of warning.
	Archiver     commands.Archiver       // Optional analysis archive.
	Events       commands.EventPublisher // Optional event sink.
	Now          func() time.Time        // Clock for archive rows and events. Nil uses time.Now.
}

// AnalysisOutcome is the result of a successful run.
type AnalysisOutcome struct {
	Analysis       map[string]any
	SchemaWarnings []string
}

// AnalysisWorkflow takes a raw request body through validation, sanitization,
// prompt composition, the text provider, extraction and schema validation.
// Archive and event steps are appended when their sinks are configured.
type AnalysisWorkflow struct {
	cor.BaseCommand
	deps  AnalysisDependencies
	chain cor.Chain
}

// NewAnalysisWorkflow builds the workflow.
//
// Inputs:
//   - deps: The collaborators. Keys, Generator and Builder are required.
//
// Outputs:
//   - *AnalysisWorkflow: The workflow.
//   - error: When a required collaborator is missing.
func NewAnalysisWorkflow(deps AnalysisDependencies) (*AnalysisWorkflow, error) {
	if deps.Keys == nil || deps.Generator == nil || deps.Builder == nil {
		return nil, errors.New("analysis workflow needs keys, a generator and a prompt builder")
	}
	w := &AnalysisWorkflow{BaseCommand: *cor.NewBaseCommand("analysis-workflow"), deps: deps}
	w.initializeChain()
	return w, nil
}

func (w *AnalysisWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Request shape, in the order the errors are reported to callers.
	out.AddCommand(commands.NewRequestReader("read-request"))
	out.AddCommand(commands.NewRequiredFields("check-required-fields", commands.AnalysisFields))
	out.AddCommand(commands.NewAPIKeyCheck("check-api-key", w.deps.Keys))
	out.AddCommand(commands.NewConversationFilter("filter-conversation", w.deps.Limits))

	out.AddCommand(commands.NewAnalysisPromptBuilder("build-prompt", w.deps.Builder))
	out.AddCommand(commands.NewAnalysisGenerator("generate-analysis", w.deps.Generator))
	out.AddCommand(commands.NewAnalysisExtractor("extract-analysis"))
	out.AddCommand(commands.NewSchemaCheck("validate-analysis", w.deps.StrictSchema))

	if w.deps.Archiver != nil {
		out.AddCommand(commands.NewAnalysisArchive("archive-analysis", w.deps.Archiver, w.deps.Now))
	}
	if w.deps.Events != nil {
		out.AddCommand(commands.NewEventNotifier("publish-analysis-event", w.deps.Events, model.EventAnalysisCompleted, w.deps.Now))
	}
	w.chain = out
}

// Steps returns the command names in execution order.
func (w *AnalysisWorkflow) Steps() []string {
	return w.chain.(*cor.BaseChain).Commands()
}

// IsExecutable requires the raw request body.
func (w *AnalysisWorkflow) IsExecutable(context cor.Context) bool {
	return w.chain.IsExecutable(context) && context.Get(w.GetInputParam()) != nil
}

// Execute runs the chain over the raw body in CtxIn.
func (w *AnalysisWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Run analyzes one raw request body.
//
// Inputs:
//   - ctx: The request context. Cancelling it aborts the provider call.
//   - body: The raw JSON body.
//
// Outputs:
//   - *AnalysisOutcome: The validated analysis and any schema warnings.
//   - error: The first failing step's error. Every error the steps raise is
//     an *apperr.AppError except cancellation and wiring faults.
func (w *AnalysisWorkflow) Run(ctx context.Context, body []byte) (*AnalysisOutcome, error) {
	chCtx := cor.NewBaseContext(ctx)
	chCtx.Add(cor.CtxIn, body)
	w.Execute(chCtx)

	if err := chCtx.FirstError(); err != nil {
		if _, ok := apperr.As(err); !ok && errors.Is(err, context.Canceled) {
			return nil, apperr.Wrap(apperr.InternalError, "Request was cancelled", err)
		}
		return nil, err
	}

	analysis, ok := chCtx.Get(commands.ParamAnalysis).(map[string]any)
	if !ok {
		return nil, apperr.New(apperr.InternalError, "analysis workflow produced no result")
	}
	out := &AnalysisOutcome{Analysis: analysis}
	if schema, ok := chCtx.Get(commands.ParamSchema).(extract.SchemaResult); ok && !schema.Valid {
		out.SchemaWarnings = schema.Reasons
	}
	return out, nil
}
