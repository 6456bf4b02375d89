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

// Package cloud provides components for interacting with Google Cloud services.
// This file contains the configuration loader.
//
// Configuration is layered: a base file (`.env.toml`) is decoded first and an
// environment specific file (`.env.<runtime>.toml`) is decoded on top of it,
// so any key in the second file overrides the first. The directory and the
// runtime are taken from GCP_CONFIG_PREFIX and GCP_RUNTIME. An optional
// dotenv secrets file is loaded into the process environment afterwards.
//
// Functions:
//   - LoadConfig: Decodes the layered TOML files into a config struct.
//   - LoadSecrets: Loads a dotenv file without overriding existing variables.
package cloud

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/subosito/gotenv"
)

const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
	DefaultRuntime      = "test"              // Runtime used when GCP_RUNTIME is unset.
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFiles returns the base and the runtime specific file names that
// LoadConfig reads, in order.
func ConfigFiles() (base string, env string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}
	runtime := os.Getenv(EnvConfigRuntime)
	if runtime == "" {
		runtime = DefaultRuntime
	}
	base = prefix + ConfigFileBaseName + ConfigFileExtension
	env = prefix + ConfigFileBaseName + ConfigSeparator + runtime + ConfigFileExtension
	return base, env
}

// LoadConfig decodes the base and the runtime specific TOML files into
// baseConfig. Missing files are skipped; malformed files are an error.
//
// Inputs:
//   - baseConfig: A pointer to the struct to populate, typically from NewConfig.
//
// Outputs:
//   - error: A decode error naming the file that failed.
func LoadConfig(baseConfig interface{}) error {
	base, env := ConfigFiles()
	for _, name := range []string{base, env} {
		if !fileExists(name) {
			slog.Debug("configuration file not found, skipping", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Debug("configuration file loaded", "file", name)
	}
	return nil
}

// LoadSecrets loads a dotenv file into the process environment. Variables
// that are already set keep their value. A missing file is not an error.
func LoadSecrets(path string) error {
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		if prefix := os.Getenv(EnvConfigFilePrefix); prefix != "" {
			path = filepath.Join(prefix, path)
		}
	}
	if !fileExists(path) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load secrets file %s: %w", path, err)
	}
	return nil
}
