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
// This file implements the publisher for generation lifecycle events. Every
// message carries the JSON encoded event as its data and the event type as
// an attribute so subscribers can filter without decoding.
package cloud

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PubSubPublisher publishes generation events to one topic.
type PubSubPublisher struct {
	topic  *pubsub.Topic
	tracer trace.Tracer
}

// NewPubSubPublisher creates a publisher for topicID.
func NewPubSubPublisher(client *pubsub.Client, topicID string) *PubSubPublisher {
	return &PubSubPublisher{
		topic:  client.Topic(topicID),
		tracer: otel.Tracer("event-publisher"),
	}
}

// Publish sends evt and waits for the server acknowledgement.
func (p *PubSubPublisher) Publish(ctx context.Context, evt *model.GenerationEvent) error {
	ctx, span := p.tracer.Start(ctx, "publish-event")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", evt.Type), attribute.String("event.id", evt.Id))

	data, err := json.Marshal(evt)
	if err != nil {
		span.SetStatus(codes.Error, "marshal failed")
		return fmt.Errorf("failed to encode event %s: %w", evt.Id, err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": evt.Type},
	})
	if _, err := res.Get(ctx); err != nil {
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("failed to publish event %s: %w", evt.Id, err)
	}
	span.SetStatus(codes.Ok, "published")
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}
