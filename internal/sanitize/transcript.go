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

package sanitize

import (
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// FilterTranscript converts raw decoded turns into conversation turns.
// A turn is kept only when it is an object with a recognized speaker and a
// string message that is non-empty after sanitization. Everything else is
// dropped without error. An optional RFC 3339 timestamp is kept when valid.
func FilterTranscript(raw []any, messageLimit int) []model.ConversationTurn {
	out := make([]model.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		speakerText, ok := obj["speaker"].(string)
		if !ok {
			continue
		}
		speaker := model.Speaker(speakerText)
		if !speaker.Valid() {
			continue
		}
		if !IsString(obj["message"]) {
			continue
		}
		msg := SanitizeString(obj["message"], messageLimit)
		if msg == "" {
			continue
		}
		turn := model.ConversationTurn{Speaker: speaker, Message: msg}
		if ts, ok := obj["timestamp"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				turn.Timestamp = &parsed
			}
		}
		out = append(out, turn)
	}
	return out
}
