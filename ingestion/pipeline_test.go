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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/brainvault/ai/mock"
	"github.com/poiesic/brainvault/core"
	"github.com/poiesic/brainvault/splitter"
	"github.com/poiesic/brainvault/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// failingStore rejects every write.
type failingStore struct {
	*badger.VectorRepository
	err error
}

func (f *failingStore) Upsert(ctx context.Context, records ...*core.Record) error {
	return f.err
}

func TestNewPipeline(t *testing.T) {
	store := newTestStore(t)

	t.Run("requires store", func(t *testing.T) {
		_, err := NewPipeline(nil, mock.NewMockEmbedder())
		assert.ErrorIs(t, err, ErrVectorStoreRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewPipeline(store.Vectors, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		_, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(), WithConcurrency(0))
		assert.ErrorIs(t, err, ErrInvalidConcurrency)
	})

	t.Run("invalid chunk size", func(t *testing.T) {
		_, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(), WithChunkSize(10, 10))
		assert.ErrorIs(t, err, splitter.ErrInvalidParameters)
	})
}

func TestProcess_IndexesDocument(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()
	path := writeFile(t, dir, "notes/go.md", "intro\n```go\nfmt.Println(1)\n```\nend")

	p, err := NewPipeline(store.Vectors, embedder, WithRoot(dir), WithChunkSize(100, 0))
	require.NoError(t, err)

	res, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, res.Status)
	assert.Equal(t, "notes/go.md", res.DocumentID)
	assert.Equal(t, 3, res.Segments)
	assert.Equal(t, 3, res.Records)
	assert.Empty(t, res.Failed)

	records, err := store.Vectors.DocumentRecords(context.Background(), "notes/go.md")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, core.RecordKey("notes/go.md", i), r.ID)
		assert.Equal(t, i, r.Ordinal)
	}
	assert.Equal(t, "code", records[1].Metadata[core.MetadataChunkType])
	assert.Equal(t, "```go\nfmt.Println(1)\n```", records[1].Content)
}

func TestProcess_TimedOutSegmentIsDropped(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	// Three windows of 4 characters; the middle one hangs.
	path := writeFile(t, dir, "doc.txt", "aaaabbbbcccc")
	embedder := mock.NewMockEmbedder().WithEmbedFunc(func(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
		if text == "bbbb" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return mock.GenerateDeterministicVector(text, 16), nil
	})

	p, err := NewPipeline(store.Vectors, embedder,
		WithRoot(dir),
		WithChunkSize(4, 0),
		WithConcurrency(2),
		WithTaskTimeout(30*time.Millisecond),
	)
	require.NoError(t, err)

	res, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 2, res.Records)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0], ErrTimeout)

	count, err := store.Vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = store.Vectors.Get(context.Background(), core.RecordKey("doc.txt", 1))
	assert.Error(t, err)
	for _, ordinal := range []int{0, 2} {
		_, err := store.Vectors.Get(context.Background(), core.RecordKey("doc.txt", ordinal))
		assert.NoError(t, err)
	}
}

func TestProcess_Idempotent(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	path := writeFile(t, dir, "a.md", strings.Repeat("word ", 50))

	p, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(), WithRoot(dir), WithChunkSize(40, 10))
	require.NoError(t, err)

	first, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	firstCount, err := store.Vectors.Count(context.Background())
	require.NoError(t, err)

	second, err := p.Process(context.Background(), path)
	require.NoError(t, err)
	secondCount, err := store.Vectors.Count(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, firstCount, secondCount)
}

func TestProcess_SoftFailures(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)

	tests := []struct {
		name    string
		path    func() string
		wantErr error
	}{
		{"missing file", func() string { return filepath.Join(dir, "missing.md") }, ErrReadFailed},
		{"invalid utf-8", func() string { return writeFile(t, dir, "bin.txt", "\xff\xfe\x00abc") }, ErrReadFailed},
		{"empty file", func() string { return writeFile(t, dir, "empty.md", "") }, core.ErrEmptyContent},
		{"whitespace only", func() string { return writeFile(t, dir, "blank.md", "  \n\n\t ") }, ErrNoEmbeddings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			p, err := NewPipeline(store.Vectors, embedder, WithRoot(dir))
			require.NoError(t, err)

			res, err := p.Process(context.Background(), tt.path())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsSoftFailure(err))
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, 0, embedder.CallCount())

			var docErr *DocumentError
			assert.True(t, errors.As(err, &docErr))
		})
	}
}

func TestProcess_AllSegmentsFail(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	path := writeFile(t, dir, "doc.md", "some text to embed")
	embedder := mock.NewMockEmbedder().WithEmbedFunc(func(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
		return nil, errors.New("offline")
	})

	p, err := NewPipeline(store.Vectors, embedder, WithRoot(dir))
	require.NoError(t, err)

	res, err := p.Process(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoEmbeddings)
	assert.True(t, IsSoftFailure(err))
	assert.Equal(t, StatusFailed, res.Status)

	count, err := store.Vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestProcess_PersistFailure(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	path := writeFile(t, dir, "doc.md", "content")
	diskFull := errors.New("disk full")

	p, err := NewPipeline(&failingStore{VectorRepository: store.Vectors, err: diskFull}, mock.NewMockEmbedder())
	require.NoError(t, err)

	res, err := p.Process(context.Background(), path)
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.ErrorIs(t, err, diskFull)
	assert.False(t, IsSoftFailure(err))
	assert.Equal(t, StatusFailed, res.Status)
}

func TestProcess_MetadataExtractor(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	path := writeFile(t, dir, "doc.md", "body text")

	var seen map[string]any
	embedder := mock.NewMockEmbedder().WithEmbedFunc(func(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
		seen = metadata
		return []float32{1, 0}, nil
	})
	extractor := MetadataExtractorFunc(func(ctx context.Context, p string) core.Metadata {
		return core.Metadata{"title": "Doc", "tags": []string{"a", "b"}}
	})

	p, err := NewPipeline(store.Vectors, embedder, WithRoot(dir), WithMetadataExtractor(extractor))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Doc", seen["title"])
	record, err := store.Vectors.Get(context.Background(), core.RecordKey("doc.md", 0))
	require.NoError(t, err)
	assert.Equal(t, "Doc", record.Metadata["title"])
	assert.Equal(t, []string{"a", "b"}, record.Metadata["tags"])
	assert.Equal(t, "text", record.Metadata[core.MetadataChunkType])
}

func TestProcess_ChangeDetection(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	ctx := context.Background()
	embedder := mock.NewMockEmbedder()
	path := writeFile(t, dir, "doc.md", "aaaabbbbccccdddd")

	p, err := NewPipeline(store.Vectors, embedder,
		WithRoot(dir),
		WithChunkSize(4, 0),
		WithStateRepository(store.States),
	)
	require.NoError(t, err)

	res, err := p.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, res.Status)
	assert.Equal(t, 4, embedder.CallCount())

	state, err := store.States.LoadState(ctx, "doc.md")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, core.HashContent([]byte("aaaabbbbccccdddd")), state.Hash)
	assert.Equal(t, 4, state.Records)

	t.Run("unchanged is skipped", func(t *testing.T) {
		res, err := p.Process(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, StatusSkipped, res.Status)
		assert.Equal(t, 4, res.Records)
		assert.Equal(t, 4, embedder.CallCount())
	})

	t.Run("shrunk document drops stale records", func(t *testing.T) {
		writeFile(t, dir, "doc.md", "aaaabbbb")
		res, err := p.Process(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, StatusIndexed, res.Status)

		records, err := store.Vectors.DocumentRecords(ctx, "doc.md")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("force re-embeds unchanged", func(t *testing.T) {
		forced, err := NewPipeline(store.Vectors, embedder,
			WithRoot(dir),
			WithChunkSize(4, 0),
			WithStateRepository(store.States),
			WithForce(true),
		)
		require.NoError(t, err)

		before := embedder.CallCount()
		res, err := forced.Process(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, StatusIndexed, res.Status)
		assert.Equal(t, before+2, embedder.CallCount())
	})
}

func TestProcess_PartialIsRetried(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	ctx := context.Background()
	path := writeFile(t, dir, "doc.md", "aaaabbbb")

	fail := true
	embedder := mock.NewMockEmbedder().WithEmbedFunc(func(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
		if fail && text == "bbbb" {
			return nil, errors.New("transient")
		}
		return []float32{1}, nil
	})

	p, err := NewPipeline(store.Vectors, embedder,
		WithRoot(dir),
		WithChunkSize(4, 0),
		WithConcurrency(1),
		WithStateRepository(store.States),
	)
	require.NoError(t, err)

	res, err := p.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)

	state, err := store.States.LoadState(ctx, "doc.md")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.False(t, state.Complete)
	assert.Equal(t, 1, state.Records)

	fail = false
	res, err = p.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, res.Status)
	assert.Equal(t, 2, res.Records)

	state, err = store.States.LoadState(ctx, "doc.md")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Complete)
}

func TestProcess_ShrinkAfterPartialDropsStaleRecords(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	ctx := context.Background()
	path := writeFile(t, dir, "doc.md", "aaaabbbbccccdddd")

	embedder := mock.NewMockEmbedder().WithEmbedFunc(func(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
		if text == "bbbb" {
			return nil, errors.New("rejected")
		}
		return mock.GenerateDeterministicVector(text, 8), nil
	})

	p, err := NewPipeline(store.Vectors, embedder,
		WithRoot(dir),
		WithChunkSize(4, 0),
		WithStateRepository(store.States),
	)
	require.NoError(t, err)

	res, err := p.Process(ctx, path)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 3, res.Records)

	writeFile(t, dir, "doc.md", "zzzz")
	res, err = p.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, res.Status)

	records, err := store.Vectors.DocumentRecords(ctx, "doc.md")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "zzzz", records[0].Content)
}

func TestProcess_ForceWithSmallerWindowCount(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	ctx := context.Background()
	path := writeFile(t, dir, "doc.md", "aaaabbbbccccdddd")

	small, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(),
		WithRoot(dir),
		WithChunkSize(4, 0),
		WithStateRepository(store.States),
	)
	require.NoError(t, err)
	_, err = small.Process(ctx, path)
	require.NoError(t, err)

	large, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(),
		WithRoot(dir),
		WithChunkSize(8, 0),
		WithStateRepository(store.States),
		WithForce(true),
	)
	require.NoError(t, err)
	res, err := large.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, res.Status)

	records, err := store.Vectors.DocumentRecords(ctx, "doc.md")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "aaaabbbb", records[0].Content)
	assert.Equal(t, "ccccdddd", records[1].Content)
}

func TestForget(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	ctx := context.Background()
	keep := writeFile(t, dir, "keep.md", "keep me")
	drop := writeFile(t, dir, "drop.md", "drop me")

	p, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(), WithRoot(dir), WithStateRepository(store.States))
	require.NoError(t, err)

	for _, path := range []string{keep, drop} {
		_, err := p.Process(ctx, path)
		require.NoError(t, err)
	}

	removed, err := p.Forget(ctx, drop)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := store.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	state, err := store.States.LoadState(ctx, "drop.md")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestForgetTree(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	ctx := context.Background()
	paths := []string{
		writeFile(t, dir, "notes/a.md", "alpha"),
		writeFile(t, dir, "notes/deep/b.md", "bravo"),
		writeFile(t, dir, "notes-old/c.md", "charlie"),
		writeFile(t, dir, "d.md", "delta"),
	}

	p, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(), WithRoot(dir), WithStateRepository(store.States))
	require.NoError(t, err)
	for _, path := range paths {
		_, err := p.Process(ctx, path)
		require.NoError(t, err)
	}

	removed, err := p.ForgetTree(ctx, filepath.Join(dir, "notes"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	states, err := store.States.ListStates(ctx)
	require.NoError(t, err)
	var ids []string
	for _, s := range states {
		ids = append(ids, s.DocumentID)
	}
	assert.Equal(t, []string{"d.md", "notes-old/c.md"}, ids)

	count, err := store.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRun_Batch(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	paths := []string{
		writeFile(t, dir, "a.md", "first document"),
		filepath.Join(dir, "missing.md"),
		writeFile(t, dir, "b.md", "second document"),
		writeFile(t, dir, "c.txt", "\xff\xfe"),
		writeFile(t, dir, "d.md", "third document"),
	}
	walkErr := errors.New("permission denied")

	seq := func(yield func(string, error) bool) {
		for _, p := range paths {
			if !yield(p, nil) {
				return
			}
		}
		yield(filepath.Join(dir, "locked"), walkErr)
	}

	var progress bytes.Buffer
	p, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(),
		WithRoot(dir),
		WithWorkers(3),
		WithProgress(&progress),
	)
	require.NoError(t, err)

	report := p.Run(context.Background(), seq)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Documents, 6)
	assert.Equal(t, 3, report.Indexed)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 3, report.Succeeded())
	assert.Equal(t, 3, report.Records)
	assert.Len(t, report.Errors, 3)
	assert.NoError(t, report.Err(), "read failures are soft")

	for i, path := range paths {
		assert.Equal(t, path, report.Documents[i].Path)
	}
	assert.ErrorIs(t, report.Documents[5].Err, walkErr)
	assert.Contains(t, progress.String(), "Progress: 6 documents (3 failed)")

	count, err := store.Vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRun_PersistFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	path := writeFile(t, dir, "a.md", "content")
	diskFull := errors.New("disk full")

	p, err := NewPipeline(&failingStore{VectorRepository: store.Vectors, err: diskFull}, mock.NewMockEmbedder())
	require.NoError(t, err)

	report := p.Run(context.Background(), func(yield func(string, error) bool) {
		yield(path, nil)
	})
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Err(), ErrPersistFailed)
}

func TestRun_DocumentPanicIsIsolated(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t)
	paths := []string{
		writeFile(t, dir, "a.md", "alpha"),
		writeFile(t, dir, "b.md", "bravo"),
		writeFile(t, dir, "c.md", "charlie"),
	}
	extractor := MetadataExtractorFunc(func(ctx context.Context, path string) core.Metadata {
		if filepath.Base(path) == "b.md" {
			panic("malformed front matter")
		}
		return nil
	})

	p, err := NewPipeline(store.Vectors, mock.NewMockEmbedder(),
		WithRoot(dir),
		WithWorkers(2),
		WithMetadataExtractor(extractor),
	)
	require.NoError(t, err)

	report := p.Run(context.Background(), func(yield func(string, error) bool) {
		for _, path := range paths {
			if !yield(path, nil) {
				return
			}
		}
	})
	require.Len(t, report.Documents, 3)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.Failed)

	failed := report.Documents[1]
	assert.Equal(t, paths[1], failed.Path)
	assert.Equal(t, "b.md", failed.DocumentID)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.ErrorIs(t, failed.Err, ErrDocumentPanic)
	assert.ErrorIs(t, report.Err(), ErrDocumentPanic)

	count, err := store.Vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
