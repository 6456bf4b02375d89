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


// Package commands provides the concrete steps of the analysis pipeline. Each
// step is a cor.Command that reads the previous step's output from CtxIn and
// writes its own result to CtxOut. Values later steps need again, such as the
// sanitized request, are also stored under the Param* keys below.
//
// Structs:
//   - RequestReader, RequiredFields, APIKeyCheck, ConversationFilter: request shape and sanitization.
//   - AnalysisPromptBuilder, AnalysisGenerator: prompt composition and the text provider call.
//   - AnalysisExtractor, SchemaCheck: structured extraction and validation.
//   - AnalysisArchive, EventNotifier: best effort side effects.
package commands

import (
	"context"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// Context keys shared between the analysis steps.
const (
	ParamRequest  = "__analysis_request__"
	ParamModel    = "__analysis_model__"
	ParamAnalysis = "__analysis_result__"
	ParamSchema   = "__analysis_schema__"
)

// TextGenerator is a text provider that answers a single prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Archiver stores a successful analysis.
type Archiver interface {
	Archive(ctx context.Context, row *model.ArchivedAnalysis) error
}

// EventPublisher publishes a generation event.
type EventPublisher interface {
	Publish(ctx context.Context, evt *model.GenerationEvent) error
}

// SideEffectTimeout bounds each best effort step. It runs detached from the
// request context so that a caller disconnect does not drop the write.
const SideEffectTimeout = 10 * time.Second

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), SideEffectTimeout)
}
