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
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// SchemaResult is the outcome of ValidateAnalysis. Reasons is empty when
// Valid is true.
type SchemaResult struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
}

// Err returns a SCHEMA_MISMATCH error listing the reasons, or nil when valid.
func (r SchemaResult) Err() error {
	if r.Valid {
		return nil
	}
	return apperr.New(apperr.SchemaMismatch, "Analysis response does not match the expected schema").
		WithContext("reasons", r.Reasons)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateAnalysis checks a decoded analysis against model.AnalysisResult.
// Every array must be present, sentiment.overall must be set, and both
// sentiment.confidence and authenticityScore must lie in [0, 1].
func ValidateAnalysis(raw map[string]any) SchemaResult {
	data, err := json.Marshal(raw)
	if err != nil {
		return SchemaResult{Reasons: []string{fmt.Sprintf("analysis is not encodable: %v", err)}}
	}

	var reasons []string
	seen := make(map[string]bool)
	add := func(field, reason string) {
		if seen[field] {
			return
		}
		seen[field] = true
		reasons = append(reasons, field+": "+reason)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			add(typeErr.Field, fmt.Sprintf("has type %s, want %s", typeErr.Value, typeErr.Type))
		} else {
			add("analysis", err.Error())
		}
	}

	if err := validate.Struct(&result); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				add(fieldPath(fe.Namespace()), describe(fe))
			}
		} else {
			add("analysis", err.Error())
		}
	}

	if len(reasons) == 0 {
		return SchemaResult{Valid: true}
	}
	return SchemaResult{Reasons: reasons}
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
