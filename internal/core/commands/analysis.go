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
// file holds the steps that talk to the text provider and turn its free text
// answer into a validated analysis object.
//
// Logic Flow:
//  1. AnalysisPromptBuilder renders the request into a single prompt string.
//  2. AnalysisGenerator sends the prompt to the text provider.
//  3. AnalysisExtractor pulls the JSON object out of the answer.
//  4. SchemaCheck validates it against the analysis schema. In strict mode a
//     mismatch fails the request, otherwise the reasons are kept as warnings.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/cor"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/extract"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/prompt"
)

// AnalysisPromptBuilder renders a *model.AnalysisRequest into a prompt.
type AnalysisPromptBuilder struct {
	cor.BaseCommand
	builder *prompt.AnalysisBuilder
}

func NewAnalysisPromptBuilder(name string, builder *prompt.AnalysisBuilder) *AnalysisPromptBuilder {
	return &AnalysisPromptBuilder{BaseCommand: *cor.NewBaseCommand(name), builder: builder}
}

func (c *AnalysisPromptBuilder) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.AnalysisRequest)
	text, err := c.builder.BuildRequest(req)
	if err != nil {
		c.Fail(context, apperr.Wrap(apperr.InternalError, "failed to build analysis prompt", err))
		return
	}
	c.Succeed(context, text)
}

// AnalysisGenerator sends the prompt to the text provider and outputs the raw
// answer. The model name is stored under ParamModel for the archive.
type AnalysisGenerator struct {
	cor.BaseCommand
	generator TextGenerator
}

// NewAnalysisGenerator creates the provider step.
//
// Inputs:
//   - name: A string name for this command instance.
//   - generator: The text provider. Timeouts and retries are its concern.
//
// Outputs:
//   - *AnalysisGenerator: The new command.
func NewAnalysisGenerator(name string, generator TextGenerator) *AnalysisGenerator {
	return &AnalysisGenerator{BaseCommand: *cor.NewBaseCommand(name), generator: generator}
}

func (c *AnalysisGenerator) Execute(context cor.Context) {
	text := context.Get(c.GetInputParam()).(string)
	answer, err := c.generator.GenerateText(context.GetContext(), text)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(ParamModel, c.generator.ModelName())
	c.Succeed(context, answer)
}

// AnalysisExtractor parses the JSON object embedded in the provider answer.
type AnalysisExtractor struct {
	cor.BaseCommand
}

func NewAnalysisExtractor(name string) *AnalysisExtractor {
	return &AnalysisExtractor{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *AnalysisExtractor) Execute(context cor.Context) {
	answer := context.Get(c.GetInputParam()).(string)
	analysis, err := extract.ExtractJSON(answer)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, analysis)
}

// SchemaCheck validates the extracted analysis. The result is stored under
// ParamSchema and the analysis under ParamAnalysis.
type SchemaCheck struct {
	cor.BaseCommand
	strict bool
}

func NewSchemaCheck(name string, strict bool) *SchemaCheck {
	return &SchemaCheck{BaseCommand: *cor.NewBaseCommand(name), strict: strict}
}

func (c *SchemaCheck) Execute(context cor.Context) {
	analysis := context.Get(c.GetInputParam()).(map[string]any)
	res := extract.ValidateAnalysis(analysis)
	context.Add(ParamSchema, res)
	if !res.Valid {
		if c.strict {
			c.Fail(context, res.Err())
			return
		}
		slog.Warn("analysis does not match schema", "command", c.GetName(), "reasons", res.Reasons)
	}
	context.Add(ParamAnalysis, analysis)
	c.Succeed(context, analysis)
}
