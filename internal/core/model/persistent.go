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

// This file holds the structures written to external sinks: the BigQuery
// analysis archive row and the Pub/Sub generation event.
package model

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

// ArchivedAnalysis is one row of the analysis archive table.
type ArchivedAnalysis struct {
	Id           string    `json:"id" bigquery:"id"`
	CreateDate   time.Time `json:"create_date" bigquery:"create_date"`
	PersonaName  string    `json:"persona_name" bigquery:"persona_name"`
	PersonaType  string    `json:"persona_type" bigquery:"persona_type"`
	ScenarioName string    `json:"scenario_name" bigquery:"scenario_name"`
	TurnCount    int       `json:"turn_count" bigquery:"turn_count"`
	Model        string    `json:"model" bigquery:"model"`
	Analysis     string    `json:"analysis" bigquery:"analysis"` // JSON encoded analysis object.
	SchemaValid  bool      `json:"schema_valid" bigquery:"schema_valid"`
}

// NewArchivedAnalysis builds an archive row with a fresh random id.
func NewArchivedAnalysis(req *AnalysisRequest, analysis map[string]any, model string, schemaValid bool, now time.Time) (*ArchivedAnalysis, error) {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}
	return &ArchivedAnalysis{
		Id:           uuid.NewString(),
		CreateDate:   now.UTC(),
		PersonaName:  req.Persona.Name,
		PersonaType:  req.Persona.Type,
		ScenarioName: req.Scenario.Name,
		TurnCount:    len(req.Conversation),
		Model:        model,
		Analysis:     string(raw),
		SchemaValid:  schemaValid,
	}, nil
}

// Save implements bigquery.ValueSaver so that Id is used as the insert id and
// streaming retries stay idempotent.
func (a *ArchivedAnalysis) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"id":            a.Id,
		"create_date":   a.CreateDate,
		"persona_name":  a.PersonaName,
		"persona_type":  a.PersonaType,
		"scenario_name": a.ScenarioName,
		"turn_count":    a.TurnCount,
		"model":         a.Model,
		"analysis":      a.Analysis,
		"schema_valid":  a.SchemaValid,
	}, a.Id, nil
}

// Event types published on the generation topic.
const (
	EventAnalysisCompleted = "analysis.completed"
	EventImageGenerated    = "image.generated"
	EventVideoStarted      = "video.started"
)

// GenerationEvent is published when a generation step completes.
type GenerationEvent struct {
	Id         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurredAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewGenerationEvent creates an event with a fresh random id.
func NewGenerationEvent(eventType string, now time.Time, attrs map[string]string) *GenerationEvent {
	return &GenerationEvent{
		Id:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: now.UTC(),
		Attributes: attrs,
	}
}
