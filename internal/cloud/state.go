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

// Package cloud provides components for interacting with Google Cloud services.
// This file defines ServiceClients, the container for every Google Cloud
// client the server uses. Clients are created once at startup and only for
// the features that are configured: no bucket means no storage client, no
// dataset means no BigQuery client, and so on. Handlers that need a missing
// client report a configuration error at call time.
//
// Structs:
//   - ServiceClients: Holds the initialized clients and agent models.
//
// Functions:
//   - NewCloudServiceClients: Creates the clients for a Config.
//   - Close: Releases every client that was created.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// ServiceClients holds the Google Cloud clients. Any field may be nil when the
// matching feature is not configured.
type ServiceClients struct {
	StorageClient  *storage.Client                         // Client for Google Cloud Storage (GCS).
	PubsubClient   *pubsub.Client                          // Client for Google Cloud Pub/Sub.
	GenAIClient    *genai.Client                           // Client for Google's Generative AI services (Vertex AI).
	BigQueryClient *bigquery.Client                        // Client for Google Cloud BigQuery.
	IAMClient      *credentials.IamCredentialsClient       // Client for IAM to sign GCS URLs.
	Publisher      *PubSubPublisher                        // Publisher for generation events.
	AgentModels    map[string]*QuotaAwareGenerativeAIModel // Configured genai agent models, keyed by a logical name.
}

// Close releases every created client.
func (c *ServiceClients) Close() {
	if c.Publisher != nil {
		c.Publisher.Stop()
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients creates the clients needed by config.
//
// Inputs:
//   - ctx: The startup context.
//   - config: The application configuration.
//   - creds: Resolves the project id.
//
// Outputs:
//   - *ServiceClients: The created clients. Never nil when err is nil.
//   - error: The first client creation failure.
func NewCloudServiceClients(ctx context.Context, config *Config, creds *Credentials) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{AgentModels: make(map[string]*QuotaAwareGenerativeAIModel)}

	if config.Storage.OutputBucket != "" {
		var opts []option.ClientOption
		if config.Storage.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(config.Storage.Endpoint), option.WithoutAuthentication())
		}
		if cloud.StorageClient, err = storage.NewClient(ctx, opts...); err != nil {
			cloud.Close()
			return nil, err
		}
		if config.Application.SignerServiceAccountEmail != "" {
			if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
				cloud.Close()
				return nil, err
			}
		}
	}

	projectID, perr := creds.ProjectID()
	if perr != nil {
		slog.Warn("no project id configured, Google Cloud clients that need one are disabled")
		return cloud, nil
	}

	if config.Events.Topic != "" {
		if cloud.PubsubClient, err = pubsub.NewClient(ctx, projectID); err != nil {
			cloud.Close()
			return nil, err
		}
		cloud.Publisher = NewPubSubPublisher(cloud.PubsubClient, config.Events.Topic)
	}

	if config.BigQueryDataSource.DatasetName != "" {
		if cloud.BigQueryClient, err = bigquery.NewClient(ctx, projectID); err != nil {
			cloud.Close()
			return nil, err
		}
	}

	if len(config.AgentModels) > 0 && config.Suggestion.Provider == SuggestionProviderVertex {
		cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:  projectID,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			slog.Error("error creating genai client", "error", err)
			cloud.Close()
			return nil, err
		}
		for key, values := range config.AgentModels {
			cloud.AgentModels[key] = NewQuotaAwareModel(NewAgentModelConfig(values), values.Model, cloud.GenAIClient.Models, values.RateLimit)
			slog.Debug("agent model configured", "key", key, "model", values.Model)
		}
	}
	return cloud, nil
}
