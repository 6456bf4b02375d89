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

package apperr

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// MaxBodyPreview bounds how much of an upstream body is kept on an error.
const MaxBodyPreview = 2048

// RedactedSecret replaces credential-like tokens in upstream bodies.
const RedactedSecret = "[REDACTED]"

var secretPattern = regexp.MustCompile(`sk-[A-Za-z0-9_*\-]{4,}|AIza[0-9A-Za-z_\-]{10,}|(?i:bearer)\s+[A-Za-z0-9._~+/=\-]+|ya29\.[0-9A-Za-z_\-.]+`)

// AppError is the domain error raised by every orchestration step.
type AppError struct {
	Message    string         // Human readable message, safe to return to callers.
	HTTPStatus int            // Status written on the response.
	Code       Code           // Machine readable code.
	Context    map[string]any // Optional diagnostic details, returned as "details".
	Err        error          // Optional underlying cause. Never serialized.
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds a diagnostic key to the error and returns it.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an AppError with the default status for the code.
func New(code Code, message string) *AppError {
	return &AppError{Message: message, HTTPStatus: StatusOf(code), Code: code}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError that keeps err as its cause.
func Wrap(code Code, message string, err error) *AppError {
	ae := New(code, message)
	ae.Err = err
	return ae
}

// Upstream creates an error for a non-2xx provider response. The provider
// status is kept as the HTTP status and the raw body is captured, truncated
// to MaxBodyPreview bytes with credential-like tokens redacted.
func Upstream(code Code, status int, body string) *AppError {
	ae := New(code, fmt.Sprintf("provider returned HTTP %d", status))
	if status >= 400 && status <= 599 {
		ae.HTTPStatus = status
	}
	return ae.
		WithContext("upstreamStatus", status).
		WithContext("upstreamBody", BodyPreview(body))
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// BodyPreview redacts API keys and bearer tokens from an upstream body and
// truncates it to MaxBodyPreview bytes.
func BodyPreview(body string) string {
	return Truncate(secretPattern.ReplaceAllString(body, RedactedSecret), MaxBodyPreview)
}

// Truncate cuts s to at most max bytes without splitting a rune.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
