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

// This file resolves the credentials used by the provider adapters. API keys
// and the project id are read from the environment on every call so that a
// rotated value takes effect on the next request. The bearer token source is
// created once and caches its token until shortly before expiry.
package cloud

import (
	"context"
	"strings"
	"sync"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// EnvProjectID overrides the configured project id when set.
const EnvProjectID = "GOOGLE_CLOUD_PROJECT"

// CloudPlatformScope is requested for Vertex AI bearer tokens.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Credentials gives adapters their API key, project id and bearer tokens.
type Credentials struct {
	config *Config
	getenv func(string) string

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
}

// NewCredentials creates credentials backed by the process environment.
func NewCredentials(config *Config, getenv func(string) string) *Credentials {
	return &Credentials{config: config, getenv: getenv}
}

// WithTokenSource installs a fixed token source. Tests use
// oauth2.StaticTokenSource here.
func (c *Credentials) WithTokenSource(ts oauth2.TokenSource) *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = ts
	return c
}

// TextAPIKey returns the key for the text analysis provider, or an
// API_KEY_MISSING error when the variable is unset.
func (c *Credentials) TextAPIKey() (string, error) {
	name := c.config.TextAnalysis.APIKeyEnv
	if name == "" {
		name = "OPENAI_API_KEY"
	}
	key := strings.TrimSpace(c.getenv(name))
	if key == "" {
		return "", apperr.Newf(apperr.APIKeyMissing, "Text analysis API key is not configured (%s)", name)
	}
	return key, nil
}

// ProjectID returns the Google Cloud project, preferring the environment.
func (c *Credentials) ProjectID() (string, error) {
	if p := strings.TrimSpace(c.getenv(EnvProjectID)); p != "" {
		return p, nil
	}
	if p := strings.TrimSpace(c.config.Application.GoogleProjectId); p != "" {
		return p, nil
	}
	return "", apperr.New(apperr.MissingProjectID, "Google Cloud project id is not configured")
}

// TokenSource returns the shared bearer token source, creating it from
// application default credentials on first use.
func (c *Credentials) TokenSource() (oauth2.TokenSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenSource != nil {
		return c.tokenSource, nil
	}
	// The token source outlives any single request, so it must not be bound
	// to a request context.
	ts, err := google.DefaultTokenSource(context.Background(), CloudPlatformScope)
	if err != nil {
		return nil, apperr.Wrap(apperr.AuthTokenError, "unable to load Google default credentials", err)
	}
	c.tokenSource = oauth2.ReuseTokenSource(nil, ts)
	return c.tokenSource, nil
}

// Token returns a valid access token. A cached token is reused until it is
// close to expiry.
func (c *Credentials) Token() (string, error) {
	ts, err := c.TokenSource()
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", apperr.Wrap(apperr.AuthTokenError, "unable to obtain an access token", err)
	}
	if tok.AccessToken == "" {
		return "", apperr.New(apperr.AuthTokenError, "access token is empty")
	}
	return tok.AccessToken, nil
}
