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
	"net/http"
)

// DefaultFallbackMessage is used when no fallback message is supplied.
const DefaultFallbackMessage = "An unexpected error occurred"

// ErrorEnvelope is the JSON body written for every failed request.
type ErrorEnvelope struct {
	Error      string         `json:"error"`
	Code       Code           `json:"code"`
	StatusCode int            `json:"statusCode"`
	Details    map[string]any `json:"details,omitempty"`
}

// CreateErrorResponse converts any value into an ErrorEnvelope.
//
// Inputs:
//   - err: the failure. An *AppError anywhere in an error chain is copied
//     through verbatim. Any other error becomes a 500 INTERNAL_ERROR that keeps
//     the message. Every other value (nil, strings, typed nil pointers) uses
//     the fallback.
//   - fallbackMessage: message for non-error values.
//   - fallbackCode: optional code for non-error values, UNKNOWN_ERROR by default.
//
// Outputs:
//   - A well formed envelope. The function never panics.
func CreateErrorResponse(err any, fallbackMessage string, fallbackCode ...Code) (env ErrorEnvelope) {
	if fallbackMessage == "" {
		fallbackMessage = DefaultFallbackMessage
	}
	code := UnknownError
	if len(fallbackCode) > 0 && fallbackCode[0] != "" {
		code = fallbackCode[0]
	}
	fallback := ErrorEnvelope{Error: fallbackMessage, Code: code, StatusCode: http.StatusInternalServerError}

	defer func() {
		if r := recover(); r != nil {
			env = fallback
		}
	}()

	switch v := err.(type) {
	case *AppError:
		if v == nil {
			return fallback
		}
		return fromAppError(v)
	case error:
		if ae, ok := As(v); ok {
			return fromAppError(ae)
		}
		msg := v.Error()
		if msg == "" {
			msg = fallbackMessage
		}
		return ErrorEnvelope{Error: msg, Code: InternalError, StatusCode: http.StatusInternalServerError}
	default:
		return fallback
	}
}

func fromAppError(ae *AppError) ErrorEnvelope {
	status := ae.HTTPStatus
	if status < 400 || status > 599 {
		status = StatusOf(ae.Code)
	}
	code := ae.Code
	if code == "" {
		code = InternalError
	}
	env := ErrorEnvelope{Error: ae.Message, Code: code, StatusCode: status}
	if len(ae.Context) > 0 {
		env.Details = make(map[string]any, len(ae.Context))
		for k, v := range ae.Context {
			env.Details[k] = v
		}
	}
	return env
}
