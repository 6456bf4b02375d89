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

package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// ImageProviderName is reported as the provider of generated images.
const ImageProviderName = "nano-banana"

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

type imageGenerationConfig struct {
	ResponseModalities []string    `json:"responseModalities"`
	ImageConfig        imageConfig `json:"imageConfig"`
}

type generateContentRequest struct {
	Contents         []content             `json:"contents"`
	GenerationConfig imageGenerationConfig `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// ImageClient generates images with a Gemini image model.
type ImageClient struct {
	vertex   *VertexClient
	model    cloud.VertexMediaModel
	location string
	policy   cloud.CallPolicy
}

// NewImageClient creates the adapter. location is used when the model has
// no location of its own.
func NewImageClient(vertex *VertexClient, m cloud.VertexMediaModel, location string, policy cloud.CallPolicy) *ImageClient {
	return &ImageClient{vertex: vertex, model: m, location: locationOf(m, location), policy: policy}
}

func (c *ImageClient) target() Target {
	return Target{Location: c.location, Model: c.model.Model, Method: "generateContent", EndpointOverride: c.model.EndpointOverride}
}

// Generate asks for one image.
//
// Inputs:
//   - ctx: The request context.
//   - prompt: The sanitized prompt.
//   - aspect: A validated aspect ratio.
//
// Outputs:
//   - *model.GeneratedImage: The first image part, inline or by URI.
//   - error: NANO_BANANA_API_ERROR with the upstream status, or
//     NO_IMAGE_GENERATED when the answer holds no usable image part.
func (c *ImageClient) Generate(ctx context.Context, prompt string, aspect model.AspectRatio) (*model.GeneratedImage, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: imageGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        imageConfig{AspectRatio: string(aspect)},
		},
	}
	body, err := c.vertex.Invoke(ctx, c.target(), req, apperr.NanoBananaAPIError, c.policy)
	if err != nil {
		return nil, err
	}

	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.Wrap(apperr.NoImageGenerated, "Image provider returned an unreadable response", err)
	}
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if img, ok := toImage(p); ok {
				return img, nil
			}
		}
	}
	return nil, apperr.New(apperr.NoImageGenerated, "No image was generated")
}

func toImage(p part) (*model.GeneratedImage, bool) {
	if p.InlineData != nil && p.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil || len(data) == 0 {
			return nil, false
		}
		return &model.GeneratedImage{MIMEType: imageMIMEType(p.InlineData.MimeType, data), Data: data}, true
	}
	if p.FileData != nil && p.FileData.FileURI != "" {
		return &model.GeneratedImage{MIMEType: p.FileData.MimeType, URI: p.FileData.FileURI}, true
	}
	return nil, false
}

// imageMIMEType prefers the type sniffed from the bytes over the declared one.
func imageMIMEType(declared string, data []byte) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown && strings.HasPrefix(kind.MIME.Value, "image/") {
		return kind.MIME.Value
	}
	if declared != "" {
		return declared
	}
	return "image/png"
}
