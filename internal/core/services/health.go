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
// This file defines the HealthService. Every dependency probe runs in its own
// goroutine and races a timer, so one hung dependency cannot stall the check.
package services

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Health statuses.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 3 * time.Second

var errProbeTimeout = errors.New("probe timed out")

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthService runs the configured probes.
type HealthService struct {
	Probes  []Probe
	Timeout time.Duration
}

type probeResult struct {
	name string
	err  error
}

// Check runs every probe concurrently. A probe that errors or loses the race
// against Timeout marks the report degraded.
func (h *HealthService) Check(ctx context.Context) HealthReport {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	results := make(chan probeResult, len(h.Probes))
	for _, p := range h.Probes {
		go func(p Probe) {
			results <- probeResult{name: p.Name, err: race(ctx, p, timeout)}
		}(p)
	}

	report := HealthReport{Status: HealthOK, Checks: make(map[string]string, len(h.Probes))}
	for range h.Probes {
		r := <-results
		if r.err != nil {
			report.Status = HealthDegraded
			report.Checks[r.name] = r.err.Error()
			continue
		}
		report.Checks[r.name] = HealthOK
	}
	return report
}

// Names returns the probe names in sorted order.
func (h *HealthService) Names() []string {
	names := make([]string, 0, len(h.Probes))
	for _, p := range h.Probes {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func race(ctx context.Context, p Probe, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Check(ctx) }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errProbeTimeout
	}
}
