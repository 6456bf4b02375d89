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


package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-persona-research/internal/api"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/prompt"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/providers"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/services"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/workflow"
)

// StateManager holds the long lived components of the server.
type StateManager struct {
	config      *cloud.Config
	cloud       *cloud.ServiceClients
	credentials *cloud.Credentials
	handlers    *api.Handlers
}

// Close releases the cloud clients.
func (s *StateManager) Close() {
	if s.cloud != nil {
		s.cloud.Close()
	}
}

// SetupOS defaults the configuration directory to "configs" and the runtime
// to "local" unless the environment already names them.
func SetupOS() error {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

// GetConfig loads the layered configuration and the optional secrets file.
func GetConfig() (*cloud.Config, error) {
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to setup environment: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	if err := cloud.LoadSecrets(config.Application.SecretsFile); err != nil {
		return nil, err
	}
	return config, nil
}

// InitState creates the clients, providers, services and handlers for config.
func InitState(ctx context.Context, config *cloud.Config) (*StateManager, error) {
	creds := cloud.NewCredentials(config, os.Getenv)
	clients, err := cloud.NewCloudServiceClients(ctx, config, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud clients: %w", err)
	}
	state := &StateManager{config: config, cloud: clients, credentials: creds}

	analysisBuilder, err := prompt.NewAnalysisBuilder(config.PromptTemplates.AnalysisPrompt, config.Limits.WithDefaults().Prompt)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("invalid analysis prompt template: %w", err)
	}
	suggestionBuilder, err := prompt.NewSuggestionBuilder(config.PromptTemplates.SuggestionPrompt, config.Limits.WithDefaults().Prompt)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("invalid suggestion prompt template: %w", err)
	}

	var archive *services.BigQueryArchive
	deps := workflow.AnalysisDependencies{
		Keys:         creds,
		Generator:    providers.NewTextClient(config.TextAnalysis, creds, config.Policy(cloud.PolicyText), apperr.TextAPIError),
		Builder:      analysisBuilder,
		Limits:       config.Limits,
		StrictSchema: config.Analysis.StrictSchema,
	}
	if clients.BigQueryClient != nil {
		archive = services.NewBigQueryArchive(clients.BigQueryClient, config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.AnalysisTable)
		deps.Archiver = archive
	}
	var events services.EventSink
	if clients.Publisher != nil {
		deps.Events = clients.Publisher
		events = clients.Publisher
	}
	analysis, err := workflow.NewAnalysisWorkflow(deps)
	if err != nil {
		state.Close()
		return nil, err
	}

	suggestions, err := newSuggestionService(config, clients, creds, suggestionBuilder)
	if err != nil {
		state.Close()
		return nil, err
	}

	vertex := providers.NewVertexClient(nil, creds)
	images := providers.NewImageClient(vertex, config.ImageModel, config.Application.GoogleLocation, config.Policy(cloud.PolicyImage))
	videos := providers.NewVideoClient(vertex, config.VideoModel, config.Application.GoogleLocation,
		config.Policy(cloud.PolicyVideoCreate), config.Policy(cloud.PolicyVideoStatus))
	var store services.MediaStore
	if clients.StorageClient != nil {
		store = cloud.NewObjectStore(clients.StorageClient, clients.IAMClient, config.Application.SignerServiceAccountEmail, config.Policy(cloud.PolicyStorage))
	}
	media := services.NewMediaService(config, creds, images, videos, store, events)

	state.handlers = &api.Handlers{
		Analysis:     analysis,
		Suggestions:  suggestions,
		Media:        media,
		Health:       newHealthService(creds, archive),
		MaxBodyBytes: config.Application.MaxBodyBytes,
	}
	slog.Info("state initialized",
		"analysisSteps", analysis.Steps(),
		"archive", archive != nil,
		"events", events != nil,
		"storage", store != nil,
		"suggestionProvider", config.Suggestion.Provider,
	)
	return state, nil
}

func newSuggestionService(config *cloud.Config, clients *cloud.ServiceClients, creds *cloud.Credentials, builder *prompt.SuggestionBuilder) (*services.SuggestionService, error) {
	svc := &services.SuggestionService{Builder: builder, Limits: config.Limits}
	if config.Suggestion.Provider != cloud.SuggestionProviderVertex {
		svc.Keys = creds
		svc.Generator = providers.NewTextClient(config.TextAnalysis, creds, config.Policy(cloud.PolicySuggestion), apperr.SuggestionAPIError)
		return svc, nil
	}
	model, ok := clients.AgentModels[config.Suggestion.AgentModel]
	if !ok {
		return nil, fmt.Errorf("suggestion agent model %q is not configured", config.Suggestion.AgentModel)
	}
	svc.Generator = cloud.NewGenAITextGenerator(model, config.Policy(cloud.PolicySuggestion), apperr.SuggestionAPIError)
	return svc, nil
}

func newHealthService(creds *cloud.Credentials, archive *services.BigQueryArchive) *services.HealthService {
	probes := []services.Probe{
		{Name: "text-api-key", Check: func(context.Context) error {
			_, err := creds.TextAPIKey()
			return err
		}},
		{Name: "google-credentials", Check: func(context.Context) error {
			if _, err := creds.ProjectID(); err != nil {
				return err
			}
			_, err := creds.Token()
			return err
		}},
	}
	if archive != nil {
		probes = append(probes, services.Probe{Name: "bigquery", Check: archive.Probe})
	}
	return &services.HealthService{Probes: probes, Timeout: services.DefaultProbeTimeout}
}
