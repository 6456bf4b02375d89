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
// file holds the side effect steps that run after a successful analysis.
//
// Both steps are best effort. A failure is logged and counted, but it is never
// recorded on the cor.Context, so the caller still receives the analysis.
// The analysis map passes through unchanged.
package commands

import (
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/core/cor"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/extract"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// AnalysisArchive writes one archive row per successful analysis.
type AnalysisArchive struct {
	cor.BaseCommand
	archiver Archiver
	now      func() time.Time
}

// NewAnalysisArchive creates the archive step.
//
// Inputs:
//   - name: A string name for this command instance.
//   - archiver: The archive sink.
//   - now: The clock used for the row timestamp. Nil uses time.Now.
//
// Outputs:
//   - *AnalysisArchive: The new command.
func NewAnalysisArchive(name string, archiver Archiver, now func() time.Time) *AnalysisArchive {
	if now == nil {
		now = time.Now
	}
	return &AnalysisArchive{BaseCommand: *cor.NewBaseCommand(name), archiver: archiver, now: now}
}

// IsExecutable also requires the sanitized request.
func (c *AnalysisArchive) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamRequest) != nil
}

func (c *AnalysisArchive) Execute(context cor.Context) {
	analysis := context.Get(c.GetInputParam()).(map[string]any)
	defer c.Succeed(context, analysis)

	req := context.Get(ParamRequest).(*model.AnalysisRequest)
	modelName, _ := context.Get(ParamModel).(string)
	schema, _ := context.Get(ParamSchema).(extract.SchemaResult)

	row, err := model.NewArchivedAnalysis(req, analysis, modelName, schema.Valid, c.now())
	if err != nil {
		c.warn(context, "failed to encode archive row", err)
		return
	}

	ctx, cancel := detached(context.GetContext())
	defer cancel()
	if err := c.archiver.Archive(ctx, row); err != nil {
		c.warn(context, "failed to archive analysis", err)
		return
	}
	slog.Debug("analysis archived", "id", row.Id, "turns", row.TurnCount)
}

func (c *AnalysisArchive) warn(context cor.Context, msg string, err error) {
	if c.ErrorCounter != nil {
		c.ErrorCounter.Add(context.GetContext(), 1)
	}
	slog.Warn(msg, "command", c.GetName(), "error", err)
}

// EventNotifier publishes one event of a fixed type.
type EventNotifier struct {
	cor.BaseCommand
	publisher EventPublisher
	eventType string
	now       func() time.Time
}

func NewEventNotifier(name string, publisher EventPublisher, eventType string, now func() time.Time) *EventNotifier {
	if now == nil {
		now = time.Now
	}
	return &EventNotifier{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher, eventType: eventType, now: now}
}

func (c *EventNotifier) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam())
	defer c.Succeed(context, in)

	attrs := map[string]string{}
	if req, ok := context.Get(ParamRequest).(*model.AnalysisRequest); ok {
		attrs["persona"] = req.Persona.Name
		attrs["scenario"] = req.Scenario.Name
	}
	if modelName, ok := context.Get(ParamModel).(string); ok {
		attrs["model"] = modelName
	}

	ctx, cancel := detached(context.GetContext())
	defer cancel()
	if err := c.publisher.Publish(ctx, model.NewGenerationEvent(c.eventType, c.now(), attrs)); err != nil {
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(context.GetContext(), 1)
		}
		slog.Warn("failed to publish event", "command", c.GetName(), "type", c.eventType, "error", err)
	}
}
