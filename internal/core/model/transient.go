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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains the request scoped structures that flow
// through a single orchestration call: the interview transcript and its
// context, the analysis answer, and the media generation results. None of
// these are owned by the service; they are read from the caller or from a
// provider and handed back.
package model

import "time"

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerModerator Speaker = "moderator"
	SpeakerPersona   Speaker = "persona"
)

// Valid reports whether s is a recognized speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerModerator || s == SpeakerPersona
}

// ConversationTurn is one message in an interview transcript.
type ConversationTurn struct {
	Speaker   Speaker    `json:"speaker"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// PersonaProfile is the synthetic interviewee.
type PersonaProfile struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Background string `json:"background"`
}

// Scenario is the interview scenario the transcript was recorded under.
type Scenario struct {
	Name string `json:"name"`
}

// AnalysisRequest is a sanitized, filtered analysis call.
type AnalysisRequest struct {
	Conversation []ConversationTurn `json:"conversation"`
	Persona      PersonaProfile     `json:"persona"`
	Scenario     Scenario           `json:"scenario"`
}

// Sentiment is the overall emotional read of the persona.
type Sentiment struct {
	Overall    string   `json:"overall" validate:"required"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	Reasoning  string   `json:"reasoning"`
}

// AnalysisResult is the structured insight extracted from a transcript.
// Arrays are required to be present but may be empty.
type AnalysisResult struct {
	KeyInsights       []string   `json:"keyInsights" validate:"required"`
	Sentiment         *Sentiment `json:"sentiment" validate:"required"`
	AuthenticityScore *float64   `json:"authenticityScore" validate:"required,gte=0,lte=1"`
	PainPoints        []string   `json:"painPoints" validate:"required"`
	Opportunities     []string   `json:"opportunities" validate:"required"`
	Quotes            []string   `json:"quotes" validate:"required"`
	Recommendations   []string   `json:"recommendations" validate:"required"`
}

// AspectRatio is the frame shape requested for generated media.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// ImageAspectRatios are the ratios accepted for image generation.
var ImageAspectRatios = []AspectRatio{AspectSquare, AspectLandscape, AspectPortrait}

// VideoAspectRatios are the ratios accepted for video generation.
var VideoAspectRatios = []AspectRatio{AspectLandscape, AspectPortrait}

// ImageGenerationRequest asks for one synthesized image.
type ImageGenerationRequest struct {
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspectRatio"`
}

// GeneratedImage holds the bytes returned by the image provider.
type GeneratedImage struct {
	MIMEType string
	Data     []byte // Raw bytes when returned inline.
	URI      string // Set instead of Data when the provider stored the file.
}

// ImageResult is the success body of the image generation endpoint. Exactly
// one of ImageURL or ImageData is set.
type ImageResult struct {
	Success     bool        `json:"success"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	ImageData   string      `json:"imageData,omitempty"`
	Provider    string      `json:"provider"`
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspectRatio"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// VideoGenerationRequest asks for one synthesized video.
type VideoGenerationRequest struct {
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspectRatio"`
}

// VideoState is the caller visible state of a long running video job.
type VideoState string

const (
	VideoGenerating VideoState = "generating"
	VideoCompleted  VideoState = "completed"
	VideoFailed     VideoState = "failed"
)

// Terminal reports whether no further transition can happen.
func (s VideoState) Terminal() bool {
	return s == VideoCompleted || s == VideoFailed
}

// VideoKind tags a VideoDescriptor.
type VideoKind string

const (
	VideoKindGCS    VideoKind = "gcs"
	VideoKindBase64 VideoKind = "base64"
)

// VideoDescriptor is a tagged union. Kind "gcs" carries URI, kind "base64"
// carries Data.
type VideoDescriptor struct {
	Kind     VideoKind `json:"kind"`
	URI      string    `json:"uri,omitempty"`
	Data     string    `json:"data,omitempty"`
	MIMEType string    `json:"mimeType"`
}

// VideoOperation is the classified view of one provider poll.
type VideoOperation struct {
	OperationName string            `json:"operationName"`
	State         VideoState        `json:"status"`
	Videos        []VideoDescriptor `json:"videos,omitempty"`
	Error         any               `json:"error,omitempty"`
}

// VideoStatusResponse is the body of the video status endpoint.
type VideoStatusResponse struct {
	Success       bool              `json:"success"`
	Status        VideoState        `json:"status"`
	OperationName string            `json:"operationName"`
	Videos        []VideoDescriptor `json:"videos,omitempty"`
	VideoURL      string            `json:"videoUrl,omitempty"`
	Error         any               `json:"error,omitempty"`
}

// VideoStartResponse is the body of the video generation endpoint.
type VideoStartResponse struct {
	Success       bool       `json:"success"`
	OperationName string     `json:"operationName"`
	Status        VideoState `json:"status"`
}

// SuggestionRequest asks for the next interviewer question.
type SuggestionRequest struct {
	LastInterviewerMsg  string `json:"lastInterviewerMsg"`
	LastPersonaResponse string `json:"lastPersonaResponse"`
	PersonaName         string `json:"personaName,omitempty"`
}

// SuggestionResponse is the body of the suggest-question endpoint.
type SuggestionResponse struct {
	SuggestedQuestion string `json:"suggestedQuestion"`
	Success           bool   `json:"success"`
}

// SignedURLResponse is the body of the signed media URL endpoint.
type SignedURLResponse struct {
	Success   bool      `json:"success"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AnalysisResponse is the body of the analysis endpoint.
type AnalysisResponse struct {
	Analysis       map[string]any `json:"analysis"`
	Success        bool           `json:"success"`
	SchemaWarnings []string       `json:"schemaWarnings,omitempty"`
}
