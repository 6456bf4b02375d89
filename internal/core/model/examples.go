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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides factory functions for creating hardcoded, example
// instances of the data models.
//
// The example analysis is rendered into the analysis prompt as the required
// output contract, so the model sees the exact field names and types.
package model

// GetExampleAnalysis creates a sample AnalysisResult used as the few-shot
// example of the expected JSON answer.
//
// Outputs:
//   - *AnalysisResult: A pointer to a hardcoded, schema valid AnalysisResult.
func GetExampleAnalysis() *AnalysisResult {
	confidence := 0.8
	authenticity := 0.9
	return &AnalysisResult{
		KeyInsights: []string{
			"The persona abandons checkout when shipping costs appear late",
			"Trust in the brand depends on visible return policies",
		},
		Sentiment: &Sentiment{
			Overall:    "mixed",
			Confidence: &confidence,
			Reasoning:  "Positive about product quality, frustrated by the purchase flow",
		},
		AuthenticityScore: &authenticity,
		PainPoints:        []string{"Hidden fees at the last step"},
		Opportunities:     []string{"Show total cost on the product page"},
		Quotes:            []string{"I just want to know what I'm paying before I start."},
		Recommendations:   []string{"Test an upfront shipping estimate"},
	}
}
