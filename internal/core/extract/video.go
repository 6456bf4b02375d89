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

package extract

import (
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// DefaultVideoMIMEType is used when a video entry carries no mimeType.
const DefaultVideoMIMEType = "video/mp4"

// ClassifyOperation maps one raw status poll to a VideoOperation. The rules
// are applied in order:
//  1. a non-null "error" means failed, with the payload passed through as is;
//  2. "done" other than true means generating;
//  3. otherwise completed, with the videos of "response".
//
// The function holds no state, so the same raw input always gives the same
// output.
func ClassifyOperation(operationName string, raw map[string]any) model.VideoOperation {
	op := model.VideoOperation{OperationName: operationName}
	if errPayload, ok := raw["error"]; ok && errPayload != nil {
		op.State = model.VideoFailed
		op.Error = errPayload
		return op
	}
	if done, _ := raw["done"].(bool); !done {
		op.State = model.VideoGenerating
		return op
	}
	op.State = model.VideoCompleted
	op.Videos = ExtractVideos(raw["response"])
	return op
}

// ExtractVideos reads response.videos, or response.generatedSamples[].video
// when videos is absent. Entries with neither a gcsUri nor inline bytes are
// dropped. The result is never nil.
func ExtractVideos(response any) []model.VideoDescriptor {
	out := make([]model.VideoDescriptor, 0)
	resp, ok := response.(map[string]any)
	if !ok {
		return out
	}

	var entries []any
	if videos, ok := resp["videos"].([]any); ok {
		entries = videos
	} else if samples, ok := resp["generatedSamples"].([]any); ok {
		for _, s := range samples {
			if sample, ok := s.(map[string]any); ok {
				entries = append(entries, sample["video"])
			}
		}
	}

	for _, e := range entries {
		if d, ok := toDescriptor(e); ok {
			out = append(out, d)
		}
	}
	return out
}

func toDescriptor(entry any) (model.VideoDescriptor, bool) {
	video, ok := entry.(map[string]any)
	if !ok {
		return model.VideoDescriptor{}, false
	}
	mime, _ := video["mimeType"].(string)
	if mime == "" {
		mime = DefaultVideoMIMEType
	}
	if uri, _ := video["gcsUri"].(string); uri != "" {
		return model.VideoDescriptor{Kind: model.VideoKindGCS, URI: uri, MIMEType: mime}, true
	}
	if data, _ := video["bytesBase64Encoded"].(string); data != "" {
		return model.VideoDescriptor{Kind: model.VideoKindBase64, Data: data, MIMEType: mime}, true
	}
	return model.VideoDescriptor{}, false
}

// VideoURL maps a descriptor to a loadable URL: the public storage URL for a
// gcs video and a data URI for inline bytes. A gcs URI that does not parse is
// returned unchanged.
func VideoURL(d model.VideoDescriptor) string {
	switch d.Kind {
	case model.VideoKindGCS:
		obj, err := cloud.ParseGCSURI(d.URI)
		if err != nil {
			return d.URI
		}
		return cloud.PublicURL(obj)
	case model.VideoKindBase64:
		return "data:" + d.MIMEType + ";base64," + d.Data
	}
	return ""
}

// StatusResponse builds the status endpoint body for op. VideoURL points at
// the first video. Success reports that the poll itself succeeded; a failed
// job is reported through Status and Error.
func StatusResponse(op model.VideoOperation) model.VideoStatusResponse {
	out := model.VideoStatusResponse{
		Success:       true,
		Status:        op.State,
		OperationName: op.OperationName,
		Videos:        op.Videos,
		Error:         op.Error,
	}
	if len(op.Videos) > 0 {
		out.VideoURL = VideoURL(op.Videos[0])
	}
	return out
}
