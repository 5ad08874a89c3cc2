// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return nil
	}, 3, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return expectedErr
	}, 3, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the last error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, 10, time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts, "should stop when context is canceled")
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			return nil
		}, n, time.Millisecond)

		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Zero(t, attempts)
	}
}

func TestRetryingEmbedder(t *testing.T) {
	t.Run("single attempt is not wrapped", func(t *testing.T) {
		base := EmbedFunc(func(context.Context, string, map[string]any) ([]float32, error) {
			return []float32{1}, nil
		})
		_, wrapped := NewRetryingEmbedder(base, 1, time.Millisecond).(*RetryingEmbedder)
		assert.False(t, wrapped)
	})

	t.Run("retries failures and empty vectors", func(t *testing.T) {
		calls := 0
		base := EmbedFunc(func(_ context.Context, text string, _ map[string]any) ([]float32, error) {
			calls++
			switch calls {
			case 1:
				return nil, errors.New("connection reset")
			case 2:
				return []float32{}, nil
			default:
				return []float32{0.5, 0.5}, nil
			}
		})

		e := NewRetryingEmbedder(base, 3, time.Millisecond)
		vector, err := e.Embed(context.Background(), "hello", nil)

		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.5}, vector)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		base := EmbedFunc(func(context.Context, string, map[string]any) ([]float32, error) {
			calls++
			return nil, errors.New("model unavailable")
		})

		e := NewRetryingEmbedder(base, 2, time.Millisecond)
		vector, err := e.Embed(context.Background(), "hello", nil)

		require.Error(t, err)
		assert.Nil(t, vector)
		assert.Equal(t, 2, calls)
	})
}
