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


package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/prompt"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

type project struct{ err error }

func (p project) ProjectID() (string, error) { return "test-project", p.err }

type images struct {
	img    *model.GeneratedImage
	err    error
	prompt string
	aspect model.AspectRatio
}

func (i *images) Generate(_ context.Context, prompt string, aspect model.AspectRatio) (*model.GeneratedImage, error) {
	i.prompt, i.aspect = prompt, aspect
	return i.img, i.err
}

type videos struct {
	raw        map[string]any
	name       string
	storageURI string
	aspect     model.AspectRatio
	fetches    int
}

func (v *videos) Start(_ context.Context, _ string, aspect model.AspectRatio, storageURI string) (string, error) {
	v.aspect, v.storageURI = aspect, storageURI
	return v.name, nil
}

func (v *videos) Fetch(context.Context, string) (map[string]any, error) {
	v.fetches++
	return v.raw, nil
}

type store struct {
	uploaded []cloud.GCSObject
	data     [][]byte
}

func (s *store) Upload(_ context.Context, obj cloud.GCSObject, data []byte) error {
	s.uploaded = append(s.uploaded, obj)
	s.data = append(s.data, data)
	return nil
}

func (s *store) SignedURL(_ context.Context, obj cloud.GCSObject, expires time.Duration) (string, error) {
	return "https://signed.example/" + obj.Name + "?ttl=" + expires.String(), nil
}

type events struct{ types []string }

func (e *events) Publish(_ context.Context, evt *model.GenerationEvent) error {
	e.types = append(e.types, evt.Type)
	return errors.New("topic unavailable")
}

func newMedia(img *images, vid *videos, st services.MediaStore, ev services.EventSink, bucket string) *services.MediaService {
	config := cloud.NewConfig()
	config.Storage.OutputBucket = bucket
	svc := services.NewMediaService(config, project{}, img, vid, st, ev)
	svc.Now = func() time.Time { return fixedNow }
	svc.NewID = func() string { return "fixed-id" }
	return svc
}

func codeOf(t *testing.T, err error) apperr.Code {
	t.Helper()
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return ae.Code
}

func TestGenerateImageInline(t *testing.T) {
	img := &images{img: &model.GeneratedImage{MIMEType: "image/png", Data: []byte{1, 2, 3}}}
	ev := &events{}
	out, err := newMedia(img, nil, nil, ev, "").GenerateImage(context.Background(),
		model.ImageGenerationRequest{Prompt: "  a <b>calm</b> office  "})
	require.NoError(t, err)

	assert.Equal(t, "a bcalm/b office", img.prompt)
	assert.Equal(t, model.AspectSquare, out.AspectRatio)
	assert.Equal(t, "data:image/png;base64,AQID", out.ImageData)
	assert.Empty(t, out.ImageURL)
	assert.Equal(t, "nano-banana", out.Provider)
	assert.Equal(t, fixedNow, out.GeneratedAt)
	assert.Equal(t, []string{model.EventImageGenerated}, ev.types)
}

func TestGenerateImageUploadsWhenBucketConfigured(t *testing.T) {
	img := &images{img: &model.GeneratedImage{MIMEType: "image/jpeg", Data: []byte("jpg")}}
	st := &store{}
	out, err := newMedia(img, nil, st, nil, "media-out").GenerateImage(context.Background(),
		model.ImageGenerationRequest{Prompt: "p", AspectRatio: model.AspectPortrait})
	require.NoError(t, err)

	require.Len(t, st.uploaded, 1)
	assert.Equal(t, cloud.GCSObject{Bucket: "media-out", Name: "images/fixed-id.jpeg", MIMEType: "image/jpeg"}, st.uploaded[0])
	assert.Equal(t, "https://storage.googleapis.com/media-out/images/fixed-id.jpeg", out.ImageURL)
	assert.Empty(t, out.ImageData)
	assert.Equal(t, model.AspectPortrait, img.aspect)
}

func TestGenerateImageFileData(t *testing.T) {
	img := &images{img: &model.GeneratedImage{MIMEType: "image/png", URI: "gs://provider/out.png"}}
	out, err := newMedia(img, nil, &store{}, nil, "media-out").GenerateImage(context.Background(), model.ImageGenerationRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/provider/out.png", out.ImageURL)
}

func TestMediaInputErrors(t *testing.T) {
	svc := newMedia(&images{}, &videos{}, nil, nil, "")
	ctx := context.Background()

	_, err := svc.GenerateImage(ctx, model.ImageGenerationRequest{Prompt: " <> "})
	assert.Equal(t, apperr.MissingPrompt, codeOf(t, err))

	_, err = svc.GenerateImage(ctx, model.ImageGenerationRequest{Prompt: "p", AspectRatio: "4:3"})
	assert.Equal(t, apperr.InvalidAspectRatio, codeOf(t, err))

	_, err = svc.StartVideo(ctx, model.VideoGenerationRequest{Prompt: "p", AspectRatio: model.AspectSquare})
	assert.Equal(t, apperr.InvalidAspectRatio, codeOf(t, err))

	_, err = svc.VideoStatus(ctx, "   ")
	assert.Equal(t, apperr.MissingOperationName, codeOf(t, err))

	assert.NoError(t, svc.RequireProject())
	svc.Project = project{err: apperr.New(apperr.MissingProjectID, "no project")}
	assert.Equal(t, apperr.MissingProjectID, codeOf(t, svc.RequireProject()))
}

func TestStartVideo(t *testing.T) {
	vid := &videos{name: "projects/p/locations/us-central1/publishers/google/models/veo/operations/op-1"}
	ev := &events{}
	out, err := newMedia(nil, vid, nil, ev, "media-out").StartVideo(context.Background(), model.VideoGenerationRequest{Prompt: "p"})
	require.NoError(t, err)

	assert.Equal(t, &model.VideoStartResponse{Success: true, OperationName: vid.name, Status: model.VideoGenerating}, out)
	assert.Equal(t, "gs://media-out/videos/", vid.storageURI)
	assert.Equal(t, model.AspectLandscape, vid.aspect)
	assert.Equal(t, []string{model.EventVideoStarted}, ev.types)
}

func TestVideoStatusIsStatelessAndDeterministic(t *testing.T) {
	vid := &videos{raw: map[string]any{
		"done": true,
		"response": map[string]any{"videos": []any{
			map[string]any{"gcsUri": "gs://media-out/videos/v.mp4", "mimeType": "video/mp4"},
		}},
	}}
	svc := newMedia(nil, vid, nil, nil, "")

	first, err := svc.VideoStatus(context.Background(), "op-1")
	require.NoError(t, err)
	second, err := svc.VideoStatus(context.Background(), "op-1")
	require.NoError(t, err)

	assert.Equal(t, 2, vid.fetches)
	assert.Equal(t, model.VideoCompleted, first.Status)
	assert.Equal(t, "https://storage.googleapis.com/media-out/videos/v.mp4", first.VideoURL)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
}

func TestSignedURL(t *testing.T) {
	svc := newMedia(nil, nil, nil, nil, "")
	ctx := context.Background()

	_, err := svc.SignedURL(ctx, "https://example.com/x")
	assert.Equal(t, apperr.InvalidMediaURI, codeOf(t, err))

	_, err = svc.SignedURL(ctx, "gs://bucket/videos/v.mp4")
	assert.Equal(t, apperr.StorageNotConfigured, codeOf(t, err))

	svc.Store = &store{}
	out, err := svc.SignedURL(ctx, "https://storage.googleapis.com/bucket/videos/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/videos/v.mp4?ttl=15m0s", out.URL)
	assert.Equal(t, fixedNow.Add(15*time.Minute), out.ExpiresAt)
}

type keys struct{ err error }

func (k keys) TextAPIKey() (string, error) { return "sk", k.err }

type generator struct {
	answer string
	prompt string
}

func (g *generator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.answer, nil
}

func (g *generator) ModelName() string { return "test" }

func newSuggestion(t *testing.T, gen *generator, k keys) *services.SuggestionService {
	t.Helper()
	builder, err := prompt.NewSuggestionBuilder("", 0)
	require.NoError(t, err)
	return &services.SuggestionService{Keys: k, Generator: gen, Builder: builder}
}

func TestSuggest(t *testing.T) {
	gen := &generator{answer: "\n  \"What made you hesitate at checkout?\"\nSecond line"}
	out, err := newSuggestion(t, gen, keys{}).Suggest(context.Background(), map[string]any{
		"lastInterviewerMsg":  "How was checkout?",
		"lastPersonaResponse": "Confusing.",
		"personaName":         "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "What made you hesitate at checkout?", out.SuggestedQuestion)
	assert.True(t, out.Success)
	assert.Contains(t, gen.prompt, "Confusing.")
	assert.Contains(t, gen.prompt, "Ana")
}

func TestSuggestErrors(t *testing.T) {
	ctx := context.Background()
	valid := map[string]any{"lastInterviewerMsg": "q", "lastPersonaResponse": "a"}

	_, err := newSuggestion(t, &generator{answer: "x"}, keys{}).Suggest(ctx, map[string]any{"lastInterviewerMsg": "q"})
	require.Equal(t, apperr.MissingRequiredFields, codeOf(t, err))
	ae, _ := apperr.As(err)
	assert.Equal(t, []string{"lastPersonaResponse"}, ae.Context["missing"])

	_, err = newSuggestion(t, &generator{answer: "x"}, keys{}).Suggest(ctx, map[string]any{"lastInterviewerMsg": 3, "lastPersonaResponse": "a"})
	assert.Equal(t, apperr.MissingRequiredFields, codeOf(t, err))

	_, err = newSuggestion(t, &generator{answer: "x"}, keys{err: apperr.New(apperr.APIKeyMissing, "no key")}).Suggest(ctx, valid)
	assert.Equal(t, apperr.APIKeyMissing, codeOf(t, err))

	_, err = newSuggestion(t, &generator{answer: " \"\" "}, keys{}).Suggest(ctx, valid)
	assert.Equal(t, apperr.EmptyResponse, codeOf(t, err))
}

func TestHealthRacesEachProbe(t *testing.T) {
	h := &services.HealthService{
		Timeout: 20 * time.Millisecond,
		Probes: []services.Probe{
			{Name: "token", Check: func(context.Context) error { return nil }},
			{Name: "bigquery", Check: func(context.Context) error { time.Sleep(500 * time.Millisecond); return nil }},
			{Name: "api-key", Check: func(context.Context) error { return errors.New("missing") }},
		},
	}
	start := time.Now()
	report := h.Check(context.Background())

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, services.HealthDegraded, report.Status)
	assert.Equal(t, map[string]string{"token": "ok", "bigquery": "probe timed out", "api-key": "missing"}, report.Checks)
	assert.Equal(t, []string{"api-key", "bigquery", "token"}, h.Names())

	ok := (&services.HealthService{Probes: h.Probes[:1]}).Check(context.Background())
	assert.Equal(t, services.HealthOK, ok.Status)
}

func TestBigQueryArchiveStreamsRow(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		path, body = r.URL.Path, string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind":"bigquery#tableDataInsertAllResponse"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, "test-project", option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	req := &model.AnalysisRequest{Persona: model.PersonaProfile{Name: "Ana"}, Conversation: make([]model.ConversationTurn, 3)}
	row, err := model.NewArchivedAnalysis(req, map[string]any{"keyInsights": []any{}}, "m", true, fixedNow)
	require.NoError(t, err)

	archive := services.NewBigQueryArchive(client, "research", "analyses")
	require.NoError(t, archive.Archive(ctx, row))
	assert.True(t, strings.HasSuffix(path, "/datasets/research/tables/analyses/insertAll"), path)
	assert.Contains(t, body, row.Id)
	assert.Contains(t, body, `"persona_name":"Ana"`)
	assert.Equal(t, "test-project.research.analyses", archive.GetFQN())
}
