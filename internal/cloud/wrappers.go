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
// This file implements a wrapper around the genai model handle. The wrapper
// is a decorator that adds client side rate limiting, and GenAITextGenerator
// runs it under a CallPolicy so the genai path gets the same timeout and
// retry treatment as the REST adapters.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: Wraps a genai model with a rate limiter.
//   - GenAITextGenerator: Turns a prompt into text through a wrapped model.
//
// Functions:
//   - NewQuotaAwareModel: Constructor for the wrapped model.
//   - GenerateContent: Waits for a rate limit token, then calls the model.
package cloud

import (
	"context"
	"errors"
	"strings"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of the genai model surface the wrapper needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             ContentGenerator
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel wraps a model handle. requestsPerSecond is both the
// refill rate and the burst; values below one are treated as one.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle ContentGenerator, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// GenerateContent blocks until the limiter admits the call or ctx is done.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// NewAgentModelConfig converts a TOML agent model into a genai config.
func NewAgentModelConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
	}
	if values.TopP > 0 {
		cfg.TopP = genai.Ptr[float32](values.TopP)
	}
	if values.TopK > 0 {
		cfg.TopK = genai.Ptr[float32](values.TopK)
	}
	if values.SystemInstructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	return cfg
}

// GenAITextGenerator produces text from a prompt with a wrapped genai model.
type GenAITextGenerator struct {
	Model        *QuotaAwareGenerativeAIModel
	Policy       CallPolicy
	ErrorCode    apperr.Code // Code used for provider failures.
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
}

// NewGenAITextGenerator creates a generator with token counters on the
// global meter provider.
func NewGenAITextGenerator(model *QuotaAwareGenerativeAIModel, policy CallPolicy, code apperr.Code) *GenAITextGenerator {
	meter := otel.Meter(MeterName)
	in, _ := meter.Int64Counter("genai.tokens.input")
	out, _ := meter.Int64Counter("genai.tokens.output")
	return &GenAITextGenerator{Model: model, Policy: policy, ErrorCode: code, inputTokens: in, outputTokens: out}
}

func (g *GenAITextGenerator) ModelName() string {
	return g.Model.ModelName
}

// GenerateText sends prompt as a single user turn and concatenates the text
// parts of every candidate.
func (g *GenAITextGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	var resp *genai.GenerateContentResponse
	err := g.Policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.Model.GenerateContent(ctx, genai.Text(prompt))
		return g.classify(callErr)
	})
	if err != nil {
		if _, ok := apperr.As(err); ok || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", apperr.Wrap(g.ErrorCode, "generative model request failed", err)
	}

	if resp.UsageMetadata != nil && g.inputTokens != nil {
		g.inputTokens.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		g.outputTokens.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && !part.Thought {
				b.WriteString(part.Text)
			}
		}
	}
	value := strings.TrimSpace(b.String())
	if value == "" {
		return "", apperr.New(apperr.EmptyResponse, "generative model returned no text")
	}
	return value, nil
}

func (g *GenAITextGenerator) classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperr.Upstream(g.ErrorCode, apiErr.Code, apiErr.Message)
	}
	return err
}

// MeterName is the instrumentation scope for application metrics.
const MeterName = "github.com/jaycherian/gcp-go-persona-research"
