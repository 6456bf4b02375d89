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

// Limits holds the per-field character caps applied to inbound text.
// Zero values are replaced by the defaults in WithDefaults.
type Limits struct {
	PersonaName       int `toml:"persona_name"`
	PersonaType       int `toml:"persona_type"`
	PersonaBackground int `toml:"persona_background"`
	ScenarioName      int `toml:"scenario_name"`
	TurnMessage       int `toml:"turn_message"`
	MediaPrompt       int `toml:"media_prompt"`
	SuggestInput      int `toml:"suggest_input"`
	Prompt            int `toml:"prompt"`
}

// DefaultLimits returns the built-in caps.
func DefaultLimits() Limits {
	return Limits{
		PersonaName:       100,
		PersonaType:       100,
		PersonaBackground: 2000,
		ScenarioName:      200,
		TurnMessage:       5000,
		MediaPrompt:       5000,
		SuggestInput:      2000,
		Prompt:            50000,
	}
}

// WithDefaults fills every unset cap from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	pick := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	return Limits{
		PersonaName:       pick(l.PersonaName, d.PersonaName),
		PersonaType:       pick(l.PersonaType, d.PersonaType),
		PersonaBackground: pick(l.PersonaBackground, d.PersonaBackground),
		ScenarioName:      pick(l.ScenarioName, d.ScenarioName),
		TurnMessage:       pick(l.TurnMessage, d.TurnMessage),
		MediaPrompt:       pick(l.MediaPrompt, d.MediaPrompt),
		SuggestInput:      pick(l.SuggestInput, d.SuggestInput),
		Prompt:            pick(l.Prompt, d.Prompt),
	}
}
