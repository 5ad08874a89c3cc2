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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/brainvault/ai"
	"github.com/poiesic/brainvault/core"
)

const (
	// DefaultConcurrency is the default cap on simultaneous embedding calls per document.
	DefaultConcurrency = 5

	// DefaultTaskTimeout is the default deadline for one embedding call.
	DefaultTaskTimeout = 10 * time.Second
)

// TaskOutcome is the result of one embedding task.
// Exactly one of Result and Err is set.
type TaskOutcome struct {
	Segment core.Segment
	Result  *core.EmbeddingResult
	Err     error
}

// OK reports whether the task produced a vector.
func (o TaskOutcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// Scheduler runs the embedding tasks of one document with at most K in flight.
// A Scheduler holds no per-call state and may be shared by concurrent documents;
// each Schedule call gets its own admission gate.
type Scheduler struct {
	embedder    ai.Embedder
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithSchedulerConcurrency sets the admission cap K.
func WithSchedulerConcurrency(k int) SchedulerOption {
	return func(s *Scheduler) error {
		if k < 1 {
			return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, k)
		}
		s.concurrency = k
		return nil
	}
}

// WithSchedulerTimeout sets the per-task deadline. Zero or negative disables it.
func WithSchedulerTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) error {
		s.timeout = d
		return nil
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScheduler creates a Scheduler that embeds through embedder.
func NewScheduler(embedder ai.Embedder, opts ...SchedulerOption) (*Scheduler, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	s := &Scheduler{
		embedder:    embedder,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTaskTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "scheduler")
	return s, nil
}

// Concurrency returns the admission cap K.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Schedule runs one embedding task per segment and returns the outcomes in
// input order, whatever order they complete in.
//
// Admission is gated by an ants pool of size K: submission blocks while K
// tasks hold a slot, and a task holds its slot until its call answers or its
// deadline passes. Failures are logged and recorded; they never cancel
// siblings and are not retried. Once ctx is done, segments not yet started
// fail without calling the embedder.
func (s *Scheduler) Schedule(ctx context.Context, segments []core.Segment) []TaskOutcome {
	outcomes := make([]TaskOutcome, len(segments))
	for i, seg := range segments {
		outcomes[i].Segment = seg
	}
	if len(segments) == 0 {
		return outcomes
	}

	total := len(segments)
	pool, err := ants.NewPool(s.concurrency,
		ants.WithLogger(antsLogger{s.logger}),
		ants.WithPanicHandler(func(r any) {
			s.logger.Error("embedding worker panic", "panic", r)
		}),
	)
	if err != nil {
		for i := range outcomes {
			outcomes[i].Err = &SegmentError{Ordinal: segments[i].Ordinal, Err: fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)}
		}
		return outcomes
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		completed atomic.Int64
	)
	for i := range segments {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = s.run(ctx, segments[i])
			s.logOutcome(outcomes[i], int(completed.Add(1)), total)
		})
		if submitErr != nil {
			wg.Done()
			outcomes[i].Err = &SegmentError{Ordinal: segments[i].Ordinal, Err: fmt.Errorf("%w: %w", ErrEmbeddingFailed, submitErr)}
			s.logOutcome(outcomes[i], int(completed.Add(1)), total)
		}
	}
	wg.Wait()

	return outcomes
}

func (s *Scheduler) run(ctx context.Context, segment core.Segment) TaskOutcome {
	if err := ctx.Err(); err != nil {
		return TaskOutcome{
			Segment: segment,
			Err:     &SegmentError{Ordinal: segment.Ordinal, Err: fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)},
		}
	}
	result, err := RunTask(ctx, segment, s.embedder, s.timeout)
	return TaskOutcome{Segment: segment, Result: result, Err: err}
}

func (s *Scheduler) logOutcome(o TaskOutcome, completed, total int) {
	if o.Err != nil {
		s.logger.Warn("embedding task failed", "segment", o.Segment.Ordinal, "kind", o.Segment.Kind, "completed", completed, "total", total, "err", o.Err)
		return
	}
	s.logger.Debug("embedded segment", "segment", o.Segment.Ordinal, "kind", o.Segment.Kind, "completed", completed, "total", total)
}

// Results returns the successful results of outcomes in input order.
func Results(outcomes []TaskOutcome) []*core.EmbeddingResult {
	results := make([]*core.EmbeddingResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			results = append(results, o.Result)
		}
	}
	return results
}

// antsLogger routes ants pool diagnostics through slog.
type antsLogger struct {
	logger *slog.Logger
}

var _ ants.Logger = antsLogger{}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
