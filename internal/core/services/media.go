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


// Package services contains the business logic behind the HTTP handlers.
// This file, `media.go`, defines the MediaService, which validates media
// generation requests, calls the image and video providers, and decides how
// generated media is handed back: as a storage URL, as inline data, or as a
// time-limited signed URL.
package services

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/extract"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/providers"
	"github.com/jaycherian/gcp-go-persona-research/internal/sanitize"
)

// ImageGenerator synthesizes one image.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, aspect model.AspectRatio) (*model.GeneratedImage, error)
}

// VideoGenerator starts and polls long running video jobs.
type VideoGenerator interface {
	Start(ctx context.Context, prompt string, aspect model.AspectRatio, storageURI string) (string, error)
	Fetch(ctx context.Context, operationName string) (map[string]any, error)
}

// MediaStore writes and signs objects in Cloud Storage.
type MediaStore interface {
	Upload(ctx context.Context, obj cloud.GCSObject, data []byte) error
	SignedURL(ctx context.Context, obj cloud.GCSObject, expires time.Duration) (string, error)
}

// ProjectResolver returns the Google Cloud project id.
type ProjectResolver interface {
	ProjectID() (string, error)
}

// MediaService is a struct that holds the providers and the storage settings
// for media generation. Store may be nil, in which case images are returned
// inline and signed URLs are unavailable.
type MediaService struct {
	Images       ImageGenerator
	Videos       VideoGenerator
	Store        MediaStore
	Events       EventSink
	Project      ProjectResolver
	Limits       sanitize.Limits
	Bucket       string        // Output bucket. Empty disables uploads.
	ImagePrefix  string        // Object prefix for uploaded images.
	VideoPrefix  string        // Object prefix the video provider writes to.
	SignedURLTTL time.Duration // Lifetime of signed URLs.
	Now          func() time.Time
	NewID        func() string
}

// NewMediaService creates a MediaService from the application configuration.
// store and events may be nil.
func NewMediaService(config *cloud.Config, project ProjectResolver, images ImageGenerator, videos VideoGenerator, store MediaStore, events EventSink) *MediaService {
	if events == nil {
		events = NoopEvents{}
	}
	return &MediaService{
		Images:       images,
		Videos:       videos,
		Store:        store,
		Events:       events,
		Project:      project,
		Limits:       config.Limits.WithDefaults(),
		Bucket:       config.Storage.OutputBucket,
		ImagePrefix:  config.Storage.ImagePrefix,
		VideoPrefix:  config.Storage.VideoPrefix,
		SignedURLTTL: time.Duration(config.Storage.SignedURLMinutes) * time.Minute,
		Now:          time.Now,
		NewID:        uuid.NewString,
	}
}

// RequireProject fails with MISSING_PROJECT_ID before a request is decoded.
func (s *MediaService) RequireProject() error {
	_, err := s.Project.ProjectID()
	return err
}

// GenerateImage validates req, generates the image and returns it either as
// a storage URL or as a data URI.
//
// Inputs:
//   - ctx: The request context.
//   - req: The decoded request. An empty aspect ratio selects 1:1.
//
// Outputs:
//   - *model.ImageResult: The success body.
//   - error: An *apperr.AppError.
func (s *MediaService) GenerateImage(ctx context.Context, req model.ImageGenerationRequest) (*model.ImageResult, error) {
	prompt, aspect, err := s.mediaInput(req.Prompt, req.AspectRatio, model.ImageAspectRatios, model.AspectSquare)
	if err != nil {
		return nil, err
	}

	img, err := s.Images.Generate(ctx, prompt, aspect)
	if err != nil {
		return nil, err
	}

	out := &model.ImageResult{
		Success:     true,
		Provider:    providers.ImageProviderName,
		Prompt:      prompt,
		AspectRatio: aspect,
		GeneratedAt: s.Now().UTC(),
	}
	switch {
	case img.URI != "":
		out.ImageURL = img.URI
		if obj, err := cloud.ParseGCSURI(img.URI); err == nil {
			out.ImageURL = cloud.PublicURL(obj)
		}
	case s.Store != nil && s.Bucket != "":
		obj := cloud.GCSObject{
			Bucket:   s.Bucket,
			Name:     s.ImagePrefix + s.NewID() + imageExtension(img.MIMEType),
			MIMEType: img.MIMEType,
		}
		if err := s.Store.Upload(ctx, obj, img.Data); err != nil {
			return nil, err
		}
		out.ImageURL = cloud.PublicURL(obj)
	default:
		out.ImageData = "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}

	s.publish(ctx, model.EventImageGenerated, map[string]string{"aspectRatio": string(aspect), "provider": out.Provider})
	return out, nil
}

// StartVideo validates req and starts a video job. The job output is written
// under VideoPrefix when a bucket is configured.
func (s *MediaService) StartVideo(ctx context.Context, req model.VideoGenerationRequest) (*model.VideoStartResponse, error) {
	prompt, aspect, err := s.mediaInput(req.Prompt, req.AspectRatio, model.VideoAspectRatios, model.AspectLandscape)
	if err != nil {
		return nil, err
	}

	storageURI := ""
	if s.Bucket != "" {
		storageURI = cloud.GCSScheme + s.Bucket + "/" + s.VideoPrefix
	}
	name, err := s.Videos.Start(ctx, prompt, aspect, storageURI)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, model.EventVideoStarted, map[string]string{"operationName": name, "aspectRatio": string(aspect)})
	return &model.VideoStartResponse{Success: true, OperationName: name, Status: model.VideoGenerating}, nil
}

// VideoStatus performs exactly one provider fetch and classifies it. Nothing
// is cached between calls.
func (s *MediaService) VideoStatus(ctx context.Context, operationName string) (*model.VideoStatusResponse, error) {
	operationName = strings.TrimSpace(operationName)
	if operationName == "" {
		return nil, apperr.New(apperr.MissingOperationName, "operationName query parameter is required")
	}
	raw, err := s.Videos.Fetch(ctx, operationName)
	if err != nil {
		return nil, err
	}
	out := extract.StatusResponse(extract.ClassifyOperation(operationName, raw))
	return &out, nil
}

// SignedURL signs a gs:// URI or a storage URL for reading.
func (s *MediaService) SignedURL(ctx context.Context, uri string) (*model.SignedURLResponse, error) {
	obj, err := cloud.ParseMediaURI(strings.TrimSpace(uri))
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidMediaURI, "uri must be a gs://bucket/object reference", err)
	}
	if s.Store == nil {
		return nil, apperr.New(apperr.StorageNotConfigured, "Cloud Storage is not configured")
	}
	ttl := s.SignedURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expiresAt := s.Now().Add(ttl).UTC()
	url, err := s.Store.SignedURL(ctx, obj, ttl)
	if err != nil {
		return nil, err
	}
	return &model.SignedURLResponse{Success: true, URL: url, ExpiresAt: expiresAt}, nil
}

func (s *MediaService) mediaInput(rawPrompt string, rawAspect model.AspectRatio, allowed []model.AspectRatio, def model.AspectRatio) (string, model.AspectRatio, error) {
	prompt := sanitize.SanitizeString(rawPrompt, s.Limits.WithDefaults().MediaPrompt)
	if prompt == "" {
		return "", "", apperr.New(apperr.MissingPrompt, "Prompt is required")
	}
	aspect, err := resolveAspect(rawAspect, allowed, def)
	if err != nil {
		return "", "", err
	}
	return prompt, aspect, nil
}

func resolveAspect(aspect model.AspectRatio, allowed []model.AspectRatio, def model.AspectRatio) (model.AspectRatio, error) {
	aspect = model.AspectRatio(strings.TrimSpace(string(aspect)))
	if aspect == "" {
		return def, nil
	}
	for _, a := range allowed {
		if a == aspect {
			return aspect, nil
		}
	}
	return "", apperr.Newf(apperr.InvalidAspectRatio, "Unsupported aspect ratio %q", aspect).
		WithContext("allowed", allowed)
}

func imageExtension(mimeType string) string {
	ext := strings.TrimPrefix(mimeType, "image/")
	if ext == "" || ext == mimeType {
		return ".png"
	}
	return "." + ext
}

func (s *MediaService) publish(ctx context.Context, eventType string, attrs map[string]string) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := s.Events.Publish(ctx, model.NewGenerationEvent(eventType, s.Now(), attrs)); err != nil {
		slog.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
