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

// Package sanitize bounds and cleans untrusted inbound payloads. Everything
// here is a pure function over decoded JSON values (map[string]any, []any,
// string) so it can run before any typed decoding takes place.
//
// Functions:
//   - ValidateRequired: Reports every required key that is missing.
//   - SanitizeString: Strips control characters and markup, then truncates.
//   - IsArray / IsObject / IsString: Structural predicates without coercion.
//   - FilterTranscript: Drops malformed conversation turns.
package sanitize

import (
	"strings"
	"unicode"
)

// Result is the outcome of ValidateRequired.
type Result struct {
	IsValid bool
	Missing []string
}

// ValidateRequired checks that each field is present in object. A key that is
// absent or holds JSON null counts as missing. The types of present values are
// not checked. Missing keys are reported in the order they were requested.
func ValidateRequired(object map[string]any, fields []string) Result {
	missing := make([]string, 0)
	for _, f := range fields {
		v, ok := object[f]
		if !ok || v == nil {
			missing = append(missing, f)
		}
	}
	return Result{IsValid: len(missing) == 0, Missing: missing}
}

// SanitizeString cleans input and truncates it to maxLength characters.
// Non string input yields "". A maxLength of zero or less disables the cap.
// The result is always a prefix of the cleaned input.
func SanitizeString(input any, maxLength int) string {
	s, ok := input.(string)
	if !ok || s == "" {
		return ""
	}
	cleaned := strings.TrimSpace(clean(s))
	if maxLength <= 0 {
		return cleaned
	}
	return TruncateRunes(cleaned, maxLength)
}

func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '<' || r == '>':
		case unicode.IsControl(r):
		case r == '\u200b' || r == '\ufeff':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SingleLine joins a multi-line value into one line. When s holds a CR, LF
// or tab, every whitespace run becomes a single space and the ends are
// trimmed. Other strings are returned unchanged.
func SingleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n\t") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes returns the longest prefix of s holding at most max runes.
// max <= 0 returns s unchanged.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// IsArray reports whether v is a decoded JSON array.
func IsArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

// IsObject reports whether v is a decoded JSON object.
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// IsString reports whether v is a decoded JSON string.
func IsString(v any) bool {
	_, ok := v.(string)
	return ok
}
