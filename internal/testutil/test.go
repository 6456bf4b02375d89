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


// Package testutil provides helpers and fixtures shared by the test suites.
// It loads the test configuration from the repository's `configs/` directory
// and supplies sample interview transcripts and provider answers.
package testutil

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// StateManager caches the test configuration so it is decoded once per run.
type StateManager struct {
	once   sync.Once
	config *cloud.Config
	err    error
}

var state = &StateManager{}

// HandleErr fails the test when err is not nil.
//
// Inputs:
//   - err: The error to check.
//   - t: The *testing.T object from the current test.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Logger returns a logger bridged to the OpenTelemetry log API.
//
// Inputs:
//   - name: The instrumentation scope, usually the test suite name.
//
// Outputs:
//   - *slog.Logger: The bridged logger.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

// InstallLogger makes the bridged logger the slog default so the code under
// test logs through OpenTelemetry, and returns it.
func InstallLogger(name string) *slog.Logger {
	logger := Logger(name)
	slog.SetDefault(logger)
	return logger
}

// RepoRoot walks up from the working directory to the directory holding go.mod.
func RepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above the working directory")
		}
		dir = parent
	}
}

// SetupOS points the configuration loader at `<repo>/configs` and selects the
// "test" runtime, so LoadConfig reads `.env.toml` and `.env.test.toml`.
func SetupOS() error {
	root, err := RepoRoot()
	if err != nil {
		return err
	}
	if err := os.Setenv(cloud.EnvConfigFilePrefix, filepath.Join(root, "configs")); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig returns the cached test configuration, loading it on first use.
func GetConfig() (*cloud.Config, error) {
	state.once.Do(func() {
		if state.err = SetupOS(); state.err != nil {
			return
		}
		config := cloud.NewConfig()
		if state.err = cloud.LoadConfig(config); state.err != nil {
			return
		}
		state.config = config
	})
	return state.config, state.err
}

// GetTestAnalysisRequest returns a body for POST /api/v1/analyze with two
// valid turns, one turn with an unknown speaker and one empty message.
func GetTestAnalysisRequest() string {
	return `{
  "conversation": [
    {"speaker": "moderator", "message": "Walk me through the last time you booked a trip."},
    {"speaker": "persona", "message": "I compared three sites and gave up on the one that hid the fees."},
    {"speaker": "narrator", "message": "ignored"},
    {"speaker": "persona", "message": "   "}
  ],
  "persona": {"name": "Maya", "type": "frequent traveler", "background": "Product manager, travels monthly."},
  "scenario": {"name": "Booking flow"}
}`
}

// GetTestAnalysisAnswer returns a provider answer wrapping a complete
// analysis object in a markdown fence.
func GetTestAnalysisAnswer() string {
	return "Here is the analysis:\n```json\n" + `{
  "keyInsights": ["Hidden fees break trust"],
  "sentiment": {"overall": "negative", "confidence": 0.8, "reasoning": "Abandoned a site over fees."},
  "authenticityScore": 0.9,
  "painPoints": ["Fees shown late"],
  "opportunities": ["Show the total price up front"],
  "quotes": ["gave up on the one that hid the fees"],
  "recommendations": ["Display fees on the search results page"]
}` + "\n```"
}
