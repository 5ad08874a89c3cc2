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
	"errors"
	"fmt"

	"github.com/poiesic/brainvault/core"
)

var (
	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidConcurrency is returned for a concurrency cap below 1.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrTimeout indicates an embedding call did not return before the task deadline.
	ErrTimeout = errors.New("embedding timed out")

	// ErrEmbeddingFailed indicates the embedder returned an error, panicked,
	// or produced an unusable vector.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrReadFailed indicates a document could not be read as UTF-8 text.
	ErrReadFailed = errors.New("read failed")

	// ErrNoEmbeddings indicates none of a document's segments produced a vector.
	ErrNoEmbeddings = errors.New("no embeddings produced")

	// ErrPersistFailed indicates the vector store rejected a document's records.
	ErrPersistFailed = errors.New("persist failed")

	// ErrDocumentPanic indicates processing a document panicked. The rest of
	// the run continues.
	ErrDocumentPanic = errors.New("document processing panicked")
)

// SegmentError reports the failure of one embedding task.
// Err matches ErrTimeout or ErrEmbeddingFailed.
type SegmentError struct {
	Ordinal int
	Err     error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Ordinal, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// DocumentError reports the failure of one document.
type DocumentError struct {
	Path       string
	DocumentID string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// IsSoftFailure reports whether err is a processing-level failure that
// skips the document (unreadable, empty, or nothing embedded) as opposed to
// a persistence failure, where the document's work was lost.
func IsSoftFailure(err error) bool {
	return errors.Is(err, ErrReadFailed) ||
		errors.Is(err, ErrNoEmbeddings) ||
		errors.Is(err, core.ErrEmptyContent)
}
