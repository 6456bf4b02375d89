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

// This file implements the timeout and bounded retry policy wrapped around
// every outbound provider call.
package cloud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"google.golang.org/api/googleapi"
)

// CallPolicy bounds one outbound call: each attempt gets its own deadline and
// transient failures are retried with exponential backoff.
type CallPolicy struct {
	Name           string
	Timeout        time.Duration // Per attempt. Zero disables the attempt deadline.
	MaxRetries     int           // Retries after the first attempt.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy returns the built-in policy for an adapter. Video creation is
// not idempotent and is never retried.
func DefaultPolicy(name string) CallPolicy {
	p := CallPolicy{
		Name:           name,
		Timeout:        60 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
	switch name {
	case PolicyImage:
		p.Timeout = 120 * time.Second
	case PolicyVideoCreate:
		p.MaxRetries = 0
	case PolicyVideoStatus, PolicySuggestion, PolicyStorage:
		p.Timeout = 30 * time.Second
	}
	return p
}

func (r RetryPolicy) toCallPolicy(def CallPolicy) CallPolicy {
	if r.TimeoutSeconds > 0 {
		def.Timeout = time.Duration(r.TimeoutSeconds) * time.Second
	}
	if r.MaxRetries != nil && *r.MaxRetries >= 0 {
		def.MaxRetries = *r.MaxRetries
	}
	if r.InitialBackoffMs > 0 {
		def.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		def.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	return def
}

// Do runs op under the policy.
//
// Inputs:
//   - ctx: The caller context. Its cancellation stops retries immediately.
//   - op: The call. It receives a per attempt context.
//
// Outputs:
//   - error: nil on success. An attempt that hits its own deadline yields an
//     UPSTREAM_TIMEOUT AppError. Non transient errors are returned as is after
//     the first failure.
func (p CallPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	b.MaxElapsedTime = 0
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := p.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		if attempt <= retries {
			slog.Warn("retrying provider call", "policy", p.Name, "attempt", attempt, "error", err)
		}
		return err
	}, bo)
}

func (p CallPolicy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	err := op(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		if _, isApp := apperr.As(err); !isApp || errors.Is(err, context.DeadlineExceeded) {
			return apperr.Wrap(apperr.UpstreamTimeout, "provider call timed out", err).
				WithContext("timeoutSeconds", p.Timeout.Seconds())
		}
	}
	return err
}

// IsTransient reports whether err is worth retrying: timeouts, network class
// failures and 5xx provider responses. 4xx responses and configuration
// errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if ae, ok := apperr.As(err); ok {
		if ae.Code == apperr.UpstreamTimeout {
			return true
		}
		if apperr.KindOf(ae.Code) != apperr.KindUpstream {
			return false
		}
		return ae.HTTPStatus >= http.StatusInternalServerError
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
