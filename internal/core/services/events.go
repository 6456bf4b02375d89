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


package services

import (
	"context"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// eventTimeout bounds one best effort publish.
const eventTimeout = 10 * time.Second

// EventSink receives generation events. cloud.PubSubPublisher implements it.
type EventSink interface {
	Publish(ctx context.Context, evt *model.GenerationEvent) error
}

// NoopEvents drops every event.
type NoopEvents struct{}

func (NoopEvents) Publish(context.Context, *model.GenerationEvent) error { return nil }
