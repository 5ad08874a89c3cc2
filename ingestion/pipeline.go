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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/brainvault/ai"
	"github.com/poiesic/brainvault/core"
	"github.com/poiesic/brainvault/splitter"
	"github.com/poiesic/brainvault/storage"
)

// MetadataExtractor supplies the structured metadata of a document.
// Implementations never fail the pipeline: files without metadata, or whose
// metadata cannot be parsed, yield an empty or nil mapping.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) core.Metadata
}

// MetadataExtractorFunc adapts a function to MetadataExtractor.
type MetadataExtractorFunc func(ctx context.Context, path string) core.Metadata

// Extract calls f(ctx, path).
func (f MetadataExtractorFunc) Extract(ctx context.Context, path string) core.Metadata {
	return f(ctx, path)
}

// Status is the outcome class of one document.
type Status string

const (
	// StatusIndexed means every segment was embedded and persisted.
	StatusIndexed Status = "indexed"
	// StatusPartial means some segments failed; the rest were persisted.
	StatusPartial Status = "partial"
	// StatusSkipped means the content was unchanged since the last ingestion.
	StatusSkipped Status = "skipped"
	// StatusFailed means nothing was persisted for the document.
	StatusFailed Status = "failed"
)

// DocumentResult reports what happened to one document.
type DocumentResult struct {
	Path       string
	DocumentID string
	Status     Status
	Records    int     // records persisted (or already present, when skipped)
	Segments   int     // segments produced by the splitter
	Failed     []error // per-segment failures, each a *SegmentError
	Err        error   // set when Status is StatusFailed
	Duration   time.Duration
}

// OK reports whether the document ended with records in the store.
func (r *DocumentResult) OK() bool {
	return r.Status != StatusFailed
}

// Pipeline turns documents on disk into embedding records in a vector store.
type Pipeline struct {
	store       storage.VectorStore
	embedder    ai.Embedder
	states      storage.StateRepository
	extractor   MetadataExtractor
	splitter    *splitter.Splitter
	scheduler   *Scheduler
	concurrency int
	taskTimeout time.Duration
	documentID  func(path string) string
	workers     int
	force       bool
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithSplitter sets the splitter.
func WithSplitter(s *splitter.Splitter) Option {
	return func(p *Pipeline) error {
		if s != nil {
			p.splitter = s
		}
		return nil
	}
}

// WithChunkSize builds the splitter from a window size and overlap.
// Invalid values fail construction with a *splitter.InvalidParametersError.
func WithChunkSize(maxSize, overlap int) Option {
	return func(p *Pipeline) error {
		s, err := splitter.New(splitter.WithMaxSize(maxSize), splitter.WithOverlap(overlap))
		if err != nil {
			return err
		}
		p.splitter = s
		return nil
	}
}

// WithConcurrency sets K, the cap on simultaneous embedding calls per document.
func WithConcurrency(k int) Option {
	return func(p *Pipeline) error {
		if k < 1 {
			return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, k)
		}
		p.concurrency = k
		return nil
	}
}

// WithTaskTimeout sets the deadline of each embedding call.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.taskTimeout = d
		return nil
	}
}

// WithMetadataExtractor sets the metadata source. Without one, documents
// carry empty metadata.
func WithMetadataExtractor(e MetadataExtractor) Option {
	return func(p *Pipeline) error {
		p.extractor = e
		return nil
	}
}

// WithStateRepository enables change detection: documents whose content hash
// matches the saved state are skipped, and a changed document's old records
// are removed before the new ones are written.
func WithStateRepository(r storage.StateRepository) Option {
	return func(p *Pipeline) error {
		p.states = r
		return nil
	}
}

// WithDocumentIDFunc sets how a path maps to its document ID.
func WithDocumentIDFunc(fn func(path string) string) Option {
	return func(p *Pipeline) error {
		if fn != nil {
			p.documentID = fn
		}
		return nil
	}
}

// WithRoot derives document IDs from paths relative to root.
func WithRoot(root string) Option {
	return WithDocumentIDFunc(func(path string) string {
		return core.DocumentID(root, path)
	})
}

// WithWorkers sets how many documents Run processes at once.
// Each document still gets its own admission cap.
func WithWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.workers = n
		return nil
	}
}

// WithForce re-embeds documents even when their content is unchanged.
func WithForce(force bool) Option {
	return func(p *Pipeline) error {
		p.force = force
		return nil
	}
}

// WithProgress prints batch progress to w during Run.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline that embeds with embedder and persists to store.
func NewPipeline(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		concurrency: DefaultConcurrency,
		taskTimeout: DefaultTaskTimeout,
		documentID:  func(path string) string { return core.DocumentID("", path) },
		workers:     1,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.splitter == nil {
		s, err := splitter.New()
		if err != nil {
			return nil, err
		}
		p.splitter = s
	}

	scheduler, err := NewScheduler(embedder,
		WithSchedulerConcurrency(p.concurrency),
		WithSchedulerTimeout(p.taskTimeout),
		WithSchedulerLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}
	p.scheduler = scheduler
	p.logger = p.logger.With("component", "pipeline")

	return p, nil
}

// DocumentID returns the document ID the pipeline uses for path.
func (p *Pipeline) DocumentID(path string) string {
	return p.documentID(path)
}

// Process ingests one document: read, extract metadata, split, embed with
// at most K calls in flight, and upsert the successful segments as one batch.
//
// The returned result is never nil. The error is a *DocumentError wrapping
// ErrReadFailed, core.ErrEmptyContent, or ErrNoEmbeddings for soft failures,
// and ErrPersistFailed when the store rejected the records.
func (p *Pipeline) Process(ctx context.Context, path string) (*DocumentResult, error) {
	start := time.Now()
	docID := p.documentID(path)
	res := &DocumentResult{Path: path, DocumentID: docID}
	logger := p.logger.With("path", path)

	fail := func(err error) (*DocumentResult, error) {
		res.Status = StatusFailed
		res.Err = &DocumentError{Path: path, DocumentID: docID, Err: err}
		res.Duration = time.Since(start)
		return res, res.Err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrReadFailed, err))
	}
	if !utf8.Valid(data) {
		return fail(fmt.Errorf("%w: content is not valid UTF-8", ErrReadFailed))
	}
	hash := core.HashContent(data)

	var prev *core.DocumentState
	if p.states != nil {
		prev, err = p.states.LoadState(ctx, docID)
		if err != nil {
			logger.Warn("error loading document state", "err", err)
			prev = nil
		}
		if prev != nil && prev.Complete && prev.Hash == hash && !p.force {
			logger.Debug("document unchanged, skipping")
			res.Status = StatusSkipped
			res.Records = prev.Records
			res.Duration = time.Since(start)
			return res, nil
		}
	}

	var metadata core.Metadata
	if p.extractor != nil {
		metadata = p.extractor.Extract(ctx, path)
	}

	segments, err := p.splitter.Split(string(data), metadata)
	if err != nil {
		return fail(err)
	}
	res.Segments = len(segments)
	if len(segments) == 0 {
		return fail(fmt.Errorf("%w: document has no content to embed", ErrNoEmbeddings))
	}

	logger.Debug("scheduling embedding tasks", "total", len(segments))
	outcomes := p.scheduler.Schedule(ctx, segments)

	records := make([]*core.Record, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.OK() {
			res.Failed = append(res.Failed, o.Err)
			continue
		}
		records = append(records, &core.Record{
			ID:         core.RecordKey(docID, o.Result.Ordinal),
			DocumentID: docID,
			Ordinal:    o.Result.Ordinal,
			Vector:     o.Result.Vector,
			Metadata:   o.Result.Metadata,
			Content:    o.Segment.Content,
		})
	}
	if len(records) == 0 {
		return fail(fmt.Errorf("%w: all %d segments failed", ErrNoEmbeddings, len(segments)))
	}

	// Ordinals past the new segment count would otherwise survive the upsert.
	removed, err := p.store.DeleteDocument(ctx, docID)
	if err != nil {
		return fail(fmt.Errorf("%w: removing previous records: %w", ErrPersistFailed, err))
	}
	if removed > 0 {
		logger.Debug("removed previous records", "records", removed)
	}

	if err := p.store.Upsert(ctx, records...); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrPersistFailed, err))
	}
	res.Records = len(records)

	res.Status = StatusIndexed
	if len(res.Failed) > 0 {
		res.Status = StatusPartial
	}
	p.saveState(ctx, logger, res, hash)

	res.Duration = time.Since(start)
	return res, nil
}

// saveState remembers a stored document by its absolute path. Partially
// indexed documents are saved as incomplete so the next run retries them
// while prune can still find their records.
func (p *Pipeline) saveState(ctx context.Context, logger *slog.Logger, res *DocumentResult, hash string) {
	if p.states == nil {
		return
	}
	path := res.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	err := p.states.SaveState(ctx, &core.DocumentState{
		DocumentID: res.DocumentID,
		Path:       path,
		Hash:       hash,
		Records:    res.Records,
		Complete:   res.Status == StatusIndexed,
	})
	if err != nil {
		logger.Warn("error saving document state", "err", err)
	}
}

// Forget removes the records and saved state of the document at path.
func (p *Pipeline) Forget(ctx context.Context, path string) (int, error) {
	return p.ForgetDocument(ctx, p.documentID(path))
}

// ForgetDocument removes the records and saved state of documentID.
func (p *Pipeline) ForgetDocument(ctx context.Context, documentID string) (int, error) {
	removed, err := p.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	if p.states != nil {
		if err := p.states.DeleteState(ctx, documentID); err != nil {
			return removed, fmt.Errorf("%w: %w", ErrPersistFailed, err)
		}
	}
	p.logger.Debug("forgot document", "document", documentID, "records", removed)
	return removed, nil
}

// ForgetTree removes every document whose saved path lies beneath dir and
// reports how many records were removed. Documents are found through the
// state repository, so without one nothing is removed.
func (p *Pipeline) ForgetTree(ctx context.Context, dir string) (int, error) {
	if p.states == nil {
		return 0, nil
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	prefix := dir + string(filepath.Separator)

	states, err := p.states.ListStates(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: listing document states: %w", ErrPersistFailed, err)
	}
	removed := 0
	for _, state := range states {
		if !strings.HasPrefix(state.Path, prefix) {
			continue
		}
		n, err := p.ForgetDocument(ctx, state.DocumentID)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}
