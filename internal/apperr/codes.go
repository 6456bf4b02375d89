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

// Package apperr defines the application error taxonomy used by every
// orchestration handler. All failures are expressed as an *AppError carrying
// an HTTP status and a machine readable Code, and are converted into a single
// JSON envelope shape by CreateErrorResponse before they leave the process.
//
// Structs:
//   - AppError: The domain error (message, status, code, context).
//   - ErrorEnvelope: The only error body ever written to a caller.
//
// Functions:
//   - New / Newf / Wrap / Upstream: Constructors for AppError.
//   - CreateErrorResponse: Total conversion of any value into an ErrorEnvelope.
//   - StatusOf / KindOf / AllCodes: Lookups against the code table.
package apperr

import "net/http"

// Code is a machine readable error identifier. The set is closed: every
// value is declared here and registered in statusTable.
type Code string

// Kind groups codes by the layer that produced them.
type Kind string

const (
	KindConfig   Kind = "config"
	KindInput    Kind = "input"
	KindUpstream Kind = "upstream"
	KindResponse Kind = "response"
	KindInternal Kind = "internal"
)

const (
	// Input errors (caller fixable).
	InvalidJSON           Code = "INVALID_JSON"
	MissingRequiredFields Code = "MISSING_REQUIRED_FIELDS"
	InvalidConversation   Code = "INVALID_CONVERSATION"
	MissingPrompt         Code = "MISSING_PROMPT"
	InvalidAspectRatio    Code = "INVALID_ASPECT_RATIO"
	MissingOperationName  Code = "MISSING_OPERATION_NAME"
	InvalidMediaURI       Code = "INVALID_MEDIA_URI"
	PayloadTooLarge       Code = "PAYLOAD_TOO_LARGE"

	// Configuration errors. Deterministic and never retried.
	APIKeyMissing        Code = "API_KEY_MISSING"
	MissingProjectID     Code = "MISSING_PROJECT_ID"
	StorageNotConfigured Code = "STORAGE_NOT_CONFIGURED"
	AuthTokenError       Code = "AUTH_TOKEN_ERROR"

	// Upstream provider errors. The provider status is passed through.
	TextAPIError       Code = "TEXT_API_ERROR"
	NanoBananaAPIError Code = "NANO_BANANA_API_ERROR"
	Veo3APIError       Code = "VEO3_API_ERROR"
	Veo3StatusError    Code = "VEO3_STATUS_ERROR"
	SuggestionAPIError Code = "SUGGESTION_API_ERROR"
	UpstreamTimeout    Code = "UPSTREAM_TIMEOUT"
	StorageError       Code = "STORAGE_ERROR"

	// Response shape errors. The provider answered but the answer is unusable.
	EmptyResponse          Code = "EMPTY_RESPONSE"
	ParseError             Code = "PARSE_ERROR"
	JSONParseError         Code = "JSON_PARSE_ERROR"
	SchemaMismatch         Code = "SCHEMA_MISMATCH"
	NoImageGenerated       Code = "NO_IMAGE_GENERATED"
	MissingOperationHandle Code = "MISSING_OPERATION_HANDLE"

	// Internal errors.
	InternalError Code = "INTERNAL_ERROR"
	UnknownError  Code = "UNKNOWN_ERROR"
)

type codeInfo struct {
	status int
	kind   Kind
}

var statusTable = map[Code]codeInfo{
	InvalidJSON:           {http.StatusBadRequest, KindInput},
	MissingRequiredFields: {http.StatusBadRequest, KindInput},
	InvalidConversation:   {http.StatusBadRequest, KindInput},
	MissingPrompt:         {http.StatusBadRequest, KindInput},
	InvalidAspectRatio:    {http.StatusBadRequest, KindInput},
	MissingOperationName:  {http.StatusBadRequest, KindInput},
	InvalidMediaURI:       {http.StatusBadRequest, KindInput},
	PayloadTooLarge:       {http.StatusRequestEntityTooLarge, KindInput},

	APIKeyMissing:        {http.StatusInternalServerError, KindConfig},
	MissingProjectID:     {http.StatusInternalServerError, KindConfig},
	StorageNotConfigured: {http.StatusInternalServerError, KindConfig},
	AuthTokenError:       {http.StatusInternalServerError, KindConfig},

	TextAPIError:       {http.StatusBadGateway, KindUpstream},
	NanoBananaAPIError: {http.StatusBadGateway, KindUpstream},
	Veo3APIError:       {http.StatusBadGateway, KindUpstream},
	Veo3StatusError:    {http.StatusBadGateway, KindUpstream},
	SuggestionAPIError: {http.StatusBadGateway, KindUpstream},
	UpstreamTimeout:    {http.StatusGatewayTimeout, KindUpstream},
	StorageError:       {http.StatusBadGateway, KindUpstream},

	EmptyResponse:          {http.StatusInternalServerError, KindResponse},
	ParseError:             {http.StatusInternalServerError, KindResponse},
	JSONParseError:         {http.StatusInternalServerError, KindResponse},
	SchemaMismatch:         {http.StatusInternalServerError, KindResponse},
	NoImageGenerated:       {http.StatusInternalServerError, KindResponse},
	MissingOperationHandle: {http.StatusInternalServerError, KindResponse},

	InternalError: {http.StatusInternalServerError, KindInternal},
	UnknownError:  {http.StatusInternalServerError, KindInternal},
}

// AllCodes returns every declared code in declaration order.
func AllCodes() []Code {
	return []Code{
		InvalidJSON, MissingRequiredFields, InvalidConversation, MissingPrompt,
		InvalidAspectRatio, MissingOperationName, InvalidMediaURI, PayloadTooLarge,
		APIKeyMissing, MissingProjectID, StorageNotConfigured, AuthTokenError,
		TextAPIError, NanoBananaAPIError, Veo3APIError, Veo3StatusError,
		SuggestionAPIError, UpstreamTimeout, StorageError,
		EmptyResponse, ParseError, JSONParseError, SchemaMismatch,
		NoImageGenerated, MissingOperationHandle,
		InternalError, UnknownError,
	}
}

// StatusOf returns the default HTTP status for a code. Unknown codes map to 500.
func StatusOf(code Code) int {
	if info, ok := statusTable[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind for a code. Unknown codes are internal.
func KindOf(code Code) Kind {
	if info, ok := statusTable[code]; ok {
		return info.kind
	}
	return KindInternal
}

// Known reports whether the code is registered.
func (c Code) Known() bool {
	_, ok := statusTable[c]
	return ok
}
