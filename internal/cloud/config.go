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

// Package cloud provides components for interacting with Google Cloud and
// the external generative providers. This file defines the structure of the
// application configuration. The structs map one to one onto the TOML files
// in `configs/`, and are populated by LoadConfig.
//
// Structs:
//   - Config: The root configuration object.
//   - TextAnalysisModel: Settings for the chat completion text provider.
//   - VertexMediaModel: Settings for an image or video model on Vertex AI.
//   - VertexAiLLMModel: Settings for a genai agent model.
//   - RetryPolicy: Per adapter timeout and retry settings.
package cloud

import (
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
	"google.golang.org/genai"
)

// DefaultSafetySettings are applied to every genai agent model.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
}

// Names of the per adapter retry policies.
const (
	PolicyText        = "text"
	PolicyImage       = "image"
	PolicyVideoCreate = "video_create"
	PolicyVideoStatus = "video_status"
	PolicySuggestion  = "suggestion"
	PolicyStorage     = "storage"
)

// Suggestion providers.
const (
	SuggestionProviderChat   = "chat"
	SuggestionProviderVertex = "vertex"
)

type BigQueryDataSource struct {
	DatasetName   string `toml:"dataset"`        // The BigQuery dataset holding the archive. Empty disables archiving.
	AnalysisTable string `toml:"analysis_table"` // The table receiving one row per successful analysis.
}

type PromptTemplates struct {
	AnalysisPrompt   string `toml:"analysis"`   // Optional override for the analysis prompt template.
	SuggestionPrompt string `toml:"suggestion"` // Optional override for the suggestion prompt template.
}

// TextAnalysisModel configures the chat completion endpoint used for analysis.
type TextAnalysisModel struct {
	BaseURL            string  `toml:"base_url"`            // Base URL of the chat completion API. Empty uses the client default.
	Model              string  `toml:"model"`               // Model name sent on each request.
	APIKeyEnv          string  `toml:"api_key_env"`         // Environment variable holding the API key.
	MaxTokens          int64   `toml:"max_tokens"`          // Upper bound on generated tokens.
	Temperature        float64 `toml:"temperature"`         // Sampling temperature. Kept low for extraction.
	SystemInstructions string  `toml:"system_instructions"` // System message sent ahead of the prompt.
}

// VertexMediaModel configures an image or video model addressed by
// {project, location, model} on the Vertex AI REST surface.
type VertexMediaModel struct {
	Model            string `toml:"model"`             // Publisher model name.
	Location         string `toml:"location"`          // Region, or "global". Empty uses the application location.
	EndpointOverride string `toml:"endpoint_override"` // Replaces scheme and host. Used by tests and emulators.
	DurationSeconds  int    `toml:"duration_seconds"`  // Video only.
	SampleCount      int    `toml:"sample_count"`      // Video only.
}

type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// RetryPolicy bounds the latency and the retries of one adapter.
type RetryPolicy struct {
	TimeoutSeconds   int  `toml:"timeout_seconds"`    // Per attempt timeout.
	MaxRetries       *int `toml:"max_retries"`        // Retries after the first attempt. Unset keeps the default.
	InitialBackoffMs int  `toml:"initial_backoff_ms"` // First backoff interval.
	MaxBackoffMs     int  `toml:"max_backoff_ms"`     // Cap on a single backoff interval.
}

type Storage struct {
	OutputBucket     string `toml:"output_bucket"`      // Bucket receiving generated media. Empty returns inline data.
	ImagePrefix      string `toml:"image_prefix"`       // Object prefix for generated images.
	VideoPrefix      string `toml:"video_prefix"`       // Object prefix the video provider writes to.
	SignedURLMinutes int    `toml:"signed_url_minutes"` // Lifetime of signed media URLs.
	Endpoint         string `toml:"endpoint"`           // Optional storage endpoint, for emulators.
}

type Events struct {
	Topic string `toml:"topic"` // Pub/Sub topic for generation events. Empty disables publishing.
}

type Telemetry struct {
	Enabled   bool   `toml:"enabled"`    // Exports traces and metrics to Google Cloud when true.
	LogFormat string `toml:"log_format"` // "json" (Cloud Logging) or "text".
	LogLevel  string `toml:"log_level"`  // debug, info, warn or error.
}

type Analysis struct {
	StrictSchema bool `toml:"strict_schema"` // Fails the request with SCHEMA_MISMATCH instead of returning schemaWarnings. Off by default.
}

type Suggestion struct {
	Provider   string `toml:"provider"`    // "chat" uses TextAnalysis, "vertex" uses an agent model.
	AgentModel string `toml:"agent_model"` // Key into AgentModels when Provider is "vertex".
}

type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string   `toml:"name"`                         // The name of the application.
		GoogleProjectId           string   `toml:"google_project_id"`            // The Google Cloud project ID. GOOGLE_CLOUD_PROJECT overrides it at call time.
		GoogleLocation            string   `toml:"location"`                     // The Google Cloud location.
		SignerServiceAccountEmail string   `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
		ListenAddress             string   `toml:"listen_address"`               // HTTP listen address of the server.
		MaxBodyBytes              int64    `toml:"max_body_bytes"`               // Upper bound on a request body.
		SecretsFile               string   `toml:"secrets_file"`                 // Optional dotenv file loaded into the environment.
		AllowedOrigins            []string `toml:"allowed_origins"`              // CORS origins. Empty allows all.
	} `toml:"application"`
	Telemetry          Telemetry                   `toml:"telemetry"`
	TextAnalysis       TextAnalysisModel           `toml:"text_analysis"`
	ImageModel         VertexMediaModel            `toml:"image_model"`
	VideoModel         VertexMediaModel            `toml:"video_model"`
	Suggestion         Suggestion                  `toml:"suggestion"`
	Analysis           Analysis                    `toml:"analysis"`
	Storage            Storage                     `toml:"storage"`
	BigQueryDataSource BigQueryDataSource          `toml:"big_query_data_source"`
	Events             Events                      `toml:"events"`
	Limits             sanitize.Limits             `toml:"limits"`
	PromptTemplates    PromptTemplates             `toml:"prompt_templates"`
	Retry              map[string]RetryPolicy      `toml:"retry"`
	AgentModels        map[string]VertexAiLLMModel `toml:"agent_models"` // Keyed by a logical name (e.g., "suggestion-flash").
}

// NewConfig creates a Config with initialized maps and safe defaults. Values
// from the TOML files overwrite these.
func NewConfig() *Config {
	c := &Config{
		Retry:       make(map[string]RetryPolicy),
		AgentModels: make(map[string]VertexAiLLMModel),
	}
	c.Application.Name = "persona-research"
	c.Application.GoogleLocation = "us-central1"
	c.Application.ListenAddress = ":8080"
	c.Application.MaxBodyBytes = 1 << 20
	c.Telemetry.LogFormat = "json"
	c.Telemetry.LogLevel = "info"
	c.TextAnalysis.APIKeyEnv = "OPENAI_API_KEY"
	c.TextAnalysis.Model = "gpt-4o-mini"
	c.TextAnalysis.MaxTokens = 2000
	c.TextAnalysis.Temperature = 0.3
	c.ImageModel.Model = "gemini-2.5-flash-image"
	c.VideoModel.Model = "veo-3.0-generate-001"
	c.VideoModel.DurationSeconds = 8
	c.VideoModel.SampleCount = 1
	c.Suggestion.Provider = SuggestionProviderChat
	c.Storage.ImagePrefix = "images/"
	c.Storage.VideoPrefix = "videos/"
	c.Storage.SignedURLMinutes = 15
	c.Limits = sanitize.DefaultLimits()
	return c
}

// Policy returns the named retry policy, falling back to the built-in default.
func (c *Config) Policy(name string) CallPolicy {
	def := DefaultPolicy(name)
	p, ok := c.Retry[name]
	if !ok {
		return def
	}
	return p.toCallPolicy(def)
}
