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
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// BatchReport summarizes one Run over many documents.
type BatchReport struct {
	RunID     string
	Documents []*DocumentResult // in the order the paths were yielded
	Indexed   int
	Partial   int
	Skipped   int
	Failed    int
	Records   int
	// Errors holds every document-level failure, including paths the
	// scanner could not visit.
	Errors   []error
	Duration time.Duration
}

// Succeeded returns the number of documents that ended with records stored.
func (r *BatchReport) Succeeded() int {
	return r.Indexed + r.Partial + r.Skipped
}

// Err joins the persistence failures of the batch. Soft failures such as
// unreadable or empty documents are left out; they are reported in Errors.
func (r *BatchReport) Err() error {
	var errs []error
	for _, err := range r.Errors {
		if !IsSoftFailure(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *BatchReport) add(res *DocumentResult) {
	r.Documents = append(r.Documents, res)
	switch res.Status {
	case StatusIndexed:
		r.Indexed++
	case StatusPartial:
		r.Partial++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
		r.Errors = append(r.Errors, res.Err)
	}
	if res.Status != StatusFailed {
		r.Records += res.Records
	}
}

// Run processes every path yielded by paths and reports the outcome of each.
// One document's failure never stops the others. Paths yielded with an error
// are recorded as read failures. Up to the configured number of workers
// process documents at once; each document keeps its own admission cap.
// Run returns once every started document has finished; when ctx is
// cancelled no further paths are taken.
func (p *Pipeline) Run(ctx context.Context, paths iter.Seq2[string, error]) *BatchReport {
	start := time.Now()
	report := &BatchReport{RunID: uuid.NewString()}
	logger := p.logger.With("run", report.RunID)
	logger.Info("starting ingestion run", "workers", p.workers, "concurrency", p.concurrency)

	var progress *ProgressTracker
	if p.progress != nil {
		progress = NewProgressTracker(p.progress, 0, 1)
		progress.Start()
	}

	pool, err := ants.NewPool(p.workers,
		ants.WithLogger(antsLogger{logger}),
		ants.WithPanicHandler(func(r any) {
			logger.Error("document worker panic", "panic", r)
		}),
	)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("creating worker pool: %w", err))
		report.Duration = time.Since(start)
		return report
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*DocumentResult
	)
	slot := func() int {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, nil)
		return len(results) - 1
	}
	store := func(i int, res *DocumentResult) {
		mu.Lock()
		results[i] = res
		mu.Unlock()
		if progress != nil {
			progress.Record(res.Status == StatusFailed)
		}
	}

	for path, walkErr := range paths {
		if ctx.Err() != nil {
			break
		}
		i := slot()
		if walkErr != nil {
			store(i, &DocumentResult{
				Path:   path,
				Status: StatusFailed,
				Err:    &DocumentError{Path: path, Err: fmt.Errorf("%w: %w", ErrReadFailed, walkErr)},
			})
			logger.Warn("skipping unreadable path", "path", path, "err", walkErr)
			continue
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			res, err := p.processRecovered(ctx, path)
			p.logResult(logger, res, err)
			store(i, res)
		})
		if submitErr != nil {
			wg.Done()
			store(i, &DocumentResult{
				Path:       path,
				DocumentID: p.documentID(path),
				Status:     StatusFailed,
				Err:        &DocumentError{Path: path, DocumentID: p.documentID(path), Err: submitErr},
			})
		}
	}
	wg.Wait()

	for _, res := range results {
		if res == nil {
			res = &DocumentResult{Status: StatusFailed, Err: &DocumentError{Err: ErrDocumentPanic}}
		}
		report.add(res)
	}
	if progress != nil {
		progress.Finish()
	}
	report.Duration = time.Since(start)

	logger.Info("ingestion run complete",
		"indexed", report.Indexed,
		"partial", report.Partial,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"records", report.Records,
		"duration", report.Duration)
	return report
}

// processRecovered runs Process and turns a panic into a failed result.
func (p *Pipeline) processRecovered(ctx context.Context, path string) (res *DocumentResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			docID := p.documentID(path)
			res = &DocumentResult{
				Path:       path,
				DocumentID: docID,
				Status:     StatusFailed,
				Err:        &DocumentError{Path: path, DocumentID: docID, Err: fmt.Errorf("%w: %v", ErrDocumentPanic, r)},
				Duration:   time.Since(start),
			}
			err = res.Err
		}
	}()
	return p.Process(ctx, path)
}

func (p *Pipeline) logResult(logger *slog.Logger, res *DocumentResult, err error) {
	switch {
	case err != nil && IsSoftFailure(err):
		logger.Warn("skipping document", "path", res.Path, "err", err)
	case err != nil:
		logger.Error("error ingesting document", "path", res.Path, "err", err)
	case res.Status == StatusPartial:
		logger.Warn("document partially indexed", "path", res.Path, "records", res.Records, "failed", len(res.Failed))
	case res.Status == StatusSkipped:
		logger.Debug("document unchanged", "path", res.Path)
	default:
		logger.Info("indexed document", "path", res.Path, "records", res.Records, "duration", res.Duration)
	}
}
