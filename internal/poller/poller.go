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


// Package poller drives a long running video job from the client side. The
// server keeps no state between status requests, so whoever wants to wait for
// a job calls Poll with a fetch function that performs one status request.
//
// Giving up, either because MaxWait elapsed or because ctx was cancelled,
// only stops the polling. The provider job keeps running and can be polled
// again later with the same operation name.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/core/model"
)

// Defaults for Options.
const (
	DefaultInterval = 10 * time.Second
	DefaultMaxWait  = 10 * time.Minute
)

// ErrMaxWait is returned when no terminal state was seen within MaxWait.
var ErrMaxWait = errors.New("video operation did not finish within the wait limit")

// FetchFunc performs one status request.
type FetchFunc func(ctx context.Context) (*model.VideoStatusResponse, error)

// Options control the polling loop.
type Options struct {
	Interval time.Duration                                        // Delay between polls.
	MaxWait  time.Duration                                        // Total time budget.
	OnPoll   func(attempt int, status *model.VideoStatusResponse) // Optional progress callback.
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	return o
}

// Poll calls fetch immediately and then once per Interval until the status is
// terminal.
//
// Inputs:
//   - ctx: Cancelling it stops the loop.
//   - fetch: One status request.
//   - opts: Interval and budget. Zero values use the defaults.
//
// Outputs:
//   - *model.VideoStatusResponse: The last status seen, nil if none.
//   - error: The fetch error, ErrMaxWait, or the context error. A terminal
//     "failed" status is not an error here; callers inspect Status.
func Poll(ctx context.Context, fetch FetchFunc, opts Options) (*model.VideoStatusResponse, error) {
	opts = opts.withDefaults()
	deadline := time.NewTimer(opts.MaxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var last *model.VideoStatusResponse
	for attempt := 1; ; attempt++ {
		status, err := fetch(ctx)
		if err != nil {
			return last, err
		}
		last = status
		if opts.OnPoll != nil {
			opts.OnPoll(attempt, status)
		}
		if status.Status.Terminal() {
			return status, nil
		}
		slog.Debug("video operation still running", "operationName", status.OperationName, "attempt", attempt)

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, ErrMaxWait
		case <-ticker.C:
		}
	}
}
