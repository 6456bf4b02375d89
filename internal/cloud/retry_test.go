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

package cloud_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
	"github.com/jaycherian/gcp-go-persona-research/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func fastPolicy(retries int) cloud.CallPolicy {
	return cloud.CallPolicy{
		Name:           "test",
		Timeout:        time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestPolicyRetriesServerErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperr.Upstream(apperr.TextAPIError, http.StatusServiceUnavailable, "busy")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicyStopsAfterMaxRetries(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperr.Upstream(apperr.Veo3StatusError, http.StatusBadGateway, "bad gateway")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, apperr.HasCode(err, apperr.Veo3StatusError))
}

func TestPolicyNeverRetriesClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests} {
		calls := 0
		err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
			calls++
			return apperr.Upstream(apperr.NanoBananaAPIError, status, "nope")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "status %d", status)
		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, status, ae.HTTPStatus)
	}
}

func TestPolicyNeverRetriesConfigErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperr.New(apperr.APIKeyMissing, "no key")
	})
	assert.True(t, apperr.HasCode(err, apperr.APIKeyMissing))
	assert.Equal(t, 1, calls)
}

func TestPolicyAttemptTimeoutBecomesUpstreamTimeout(t *testing.T) {
	p := fastPolicy(1)
	p.Timeout = 5 * time.Millisecond
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return fmt.Errorf("request aborted: %w", ctx.Err())
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, apperr.HasCode(err, apperr.UpstreamTimeout))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.CreateErrorResponse(err, "").StatusCode)
}

func TestPolicyStopsOnCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(5).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return apperr.Upstream(apperr.TextAPIError, http.StatusInternalServerError, "")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, cloud.IsTransient(nil))
	assert.False(t, cloud.IsTransient(context.Canceled))
	assert.True(t, cloud.IsTransient(context.DeadlineExceeded))
	assert.True(t, cloud.IsTransient(&googleapi.Error{Code: 503}))
	assert.False(t, cloud.IsTransient(&googleapi.Error{Code: 403}))
	assert.False(t, cloud.IsTransient(errors.New("decode failure")))
	assert.False(t, cloud.IsTransient(apperr.New(apperr.ParseError, "x")))
}

func TestConfigPolicyOverrides(t *testing.T) {
	config := cloud.NewConfig()
	zero := 0
	config.Retry[cloud.PolicyText] = cloud.RetryPolicy{TimeoutSeconds: 5, MaxRetries: &zero}
	config.Retry[cloud.PolicyImage] = cloud.RetryPolicy{InitialBackoffMs: 10}

	text := config.Policy(cloud.PolicyText)
	assert.Equal(t, 5*time.Second, text.Timeout)
	assert.Equal(t, 0, text.MaxRetries)

	image := config.Policy(cloud.PolicyImage)
	assert.Equal(t, 2, image.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, image.InitialBackoff)

	assert.Equal(t, 0, config.Policy(cloud.PolicyVideoCreate).MaxRetries)
}
