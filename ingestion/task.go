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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/brainvault/ai"
	"github.com/poiesic/brainvault/core"
)

type embedReply struct {
	vector []float32
	err    error
}

// RunTask embeds one segment, calling embedder exactly once.
//
// The call runs in its own goroutine under a context carrying the deadline.
// RunTask returns as soon as the call answers or the deadline passes; an
// embedder that ignores its context keeps running in the background and its
// answer is discarded. timeout <= 0 disables the deadline.
//
// Failures are *SegmentError values wrapping ErrTimeout or ErrEmbeddingFailed.
func RunTask(ctx context.Context, segment core.Segment, embedder ai.Embedder, timeout time.Duration) (*core.EmbeddingResult, error) {
	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan embedReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- embedReply{err: fmt.Errorf("embedder panic: %v", r)}
			}
		}()
		vector, err := embedder.Embed(taskCtx, segment.Content, segment.Metadata)
		done <- embedReply{vector: vector, err: err}
	}()

	select {
	case reply := <-done:
		if reply.err != nil {
			return nil, segmentFailure(ctx, taskCtx, segment.Ordinal, reply.err)
		}
		if err := core.ValidateVector(reply.vector); err != nil {
			return nil, &SegmentError{Ordinal: segment.Ordinal, Err: fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)}
		}
		return &core.EmbeddingResult{
			Ordinal:  segment.Ordinal,
			Vector:   reply.vector,
			Metadata: segment.Metadata,
		}, nil
	case <-taskCtx.Done():
		return nil, segmentFailure(ctx, taskCtx, segment.Ordinal, taskCtx.Err())
	}
}

// segmentFailure classifies err: the task's own deadline is a timeout,
// anything else (including cancellation of the parent) is an embedding failure.
func segmentFailure(parent, task context.Context, ordinal int, err error) error {
	if parent.Err() == nil && errors.Is(task.Err(), context.DeadlineExceeded) {
		return &SegmentError{Ordinal: ordinal, Err: ErrTimeout}
	}
	return &SegmentError{Ordinal: ordinal, Err: fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)}
}
