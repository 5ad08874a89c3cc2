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
	"log/slog"
	"time"
)

// RetryWithBackoff retries an operation with exponential backoff.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries (doubles on each retry)
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "err", lastErr)

		if attempt == maxAttempts {
			break
		}

		// baseDelay * 2^(attempt-1)
		delay := baseDelay << (attempt - 1)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// RetryingEmbedder re-issues failed embedding calls with exponential backoff.
// The ingestion core never retries on its own; hosts opt in by wrapping their
// embedder. All attempts share the caller's context, so the task timeout
// bounds the whole sequence.
type RetryingEmbedder struct {
	next        Embedder
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetryingEmbedder wraps next with up to maxAttempts attempts per call.
// maxAttempts <= 1 returns next unchanged.
func NewRetryingEmbedder(next Embedder, maxAttempts int, baseDelay time.Duration) Embedder {
	if maxAttempts <= 1 {
		return next
	}
	return &RetryingEmbedder{
		next:        next,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Embed delegates to the wrapped embedder, retrying on error.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
	var vector []float32
	err := RetryWithBackoff(ctx, func() error {
		v, err := r.next.Embed(ctx, text, metadata)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return ErrEmptyEmbedding
		}
		vector = v
		return nil
	}, r.maxAttempts, r.baseDelay)
	if err != nil {
		return nil, err
	}
	return vector, nil
}
