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

package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// APIKeySource returns the text provider key. It is called on every request
// so a rotated key takes effect immediately. *cloud.Credentials implements it.
type APIKeySource interface {
	TextAPIKey() (string, error)
}

// TextClient calls a chat completion endpoint with a bounded token budget and
// a low temperature.
type TextClient struct {
	config       cloud.TextAnalysisModel
	keys         APIKeySource
	policy       cloud.CallPolicy
	code         apperr.Code
	options      []option.RequestOption
	tracer       trace.Tracer
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
}

// NewTextClient creates the adapter.
//
// Inputs:
//   - config: Model, token budget, temperature and base URL.
//   - keys: Resolves the API key at call time.
//   - policy: The timeout and retry policy.
//   - code: The error code for provider failures (TEXT_API_ERROR for analysis,
//     SUGGESTION_API_ERROR for suggestions).
//   - opts: Extra client options, e.g. option.WithHTTPClient in tests.
func NewTextClient(config cloud.TextAnalysisModel, keys APIKeySource, policy cloud.CallPolicy, code apperr.Code, opts ...option.RequestOption) *TextClient {
	meter := otel.Meter(cloud.MeterName)
	in, _ := meter.Int64Counter("text.tokens.input")
	out, _ := meter.Int64Counter("text.tokens.output")
	return &TextClient{
		config:       config,
		keys:         keys,
		policy:       policy,
		code:         code,
		options:      opts,
		tracer:       otel.Tracer("text-client"),
		inputTokens:  in,
		outputTokens: out,
	}
}

// ModelName returns the configured model.
func (c *TextClient) ModelName() string {
	return c.config.Model
}

// GenerateText sends prompt as the user message and returns the text of the
// first choice.
//
// Outputs:
//   - string: The trimmed answer.
//   - error: API_KEY_MISSING before any network call, the adapter code with
//     the upstream status on non-2xx, UPSTREAM_TIMEOUT, or EMPTY_RESPONSE.
func (c *TextClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	key, err := c.keys.TextAPIKey()
	if err != nil {
		return "", err
	}

	opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if c.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.config.BaseURL))
	}
	client := openai.NewClient(append(opts, c.options...)...)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if c.config.SystemInstructions != "" {
		messages = append(messages, openai.SystemMessage(c.config.SystemInstructions))
	}
	messages = append(messages, openai.UserMessage(prompt))
	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(openai.ChatModel(c.config.Model)),
		MaxTokens:   openai.Int(c.config.MaxTokens),
		Temperature: openai.Float(c.config.Temperature),
	}

	ctx, span := c.tracer.Start(ctx, "chat.completions")
	defer span.End()
	span.SetAttributes(attribute.String("text.model", c.config.Model))

	var completion *openai.ChatCompletion
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		completion, callErr = client.Chat.Completions.New(ctx, params)
		return c.classify(callErr)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if _, ok := apperr.As(err); ok || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", apperr.Wrap(c.code, "text provider request failed", err)
	}

	c.inputTokens.Add(ctx, completion.Usage.PromptTokens)
	c.outputTokens.Add(ctx, completion.Usage.CompletionTokens)

	if len(completion.Choices) == 0 {
		return "", apperr.New(apperr.EmptyResponse, "Empty response from text analysis provider")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", apperr.New(apperr.EmptyResponse, "Empty response from text analysis provider")
	}
	span.SetStatus(codes.Ok, "ok")
	return content, nil
}

func (c *TextClient) classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apperr.Upstream(c.code, apiErr.StatusCode, apiErr.Error())
	}
	return err
}
