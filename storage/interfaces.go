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

package storage

import (
	"context"

	"github.com/poiesic/brainvault/core"
)

// VectorStore persists embedding records and answers similarity queries.
// Implementations must be safe for concurrent use; the pipeline calls them
// from several document workers at once without locking.
type VectorStore interface {
	// Upsert inserts or replaces records by Record.ID as one batch.
	// Either every record is written or none is.
	// Records failing core.ValidateRecord are rejected with ErrInvalidRecord.
	Upsert(ctx context.Context, records ...*core.Record) error

	// Query returns up to topK records ranked by cosine similarity to vector,
	// highest first, ties broken by ID. Returns ErrInvalidQuery for topK <= 0
	// or an empty vector.
	Query(ctx context.Context, vector []float32, topK int) ([]core.Match, error)

	// DeleteDocument removes every record belonging to documentID and
	// reports how many were removed. Unknown documents remove nothing.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// StateRepository remembers, per document, what was last ingested so
// unchanged documents can be skipped.
type StateRepository interface {
	// LoadState returns the saved state for documentID,
	// or nil with no error when none exists.
	LoadState(ctx context.Context, documentID string) (*core.DocumentState, error)

	// SaveState stores state, stamping UpdatedAt.
	SaveState(ctx context.Context, state *core.DocumentState) error

	// DeleteState removes the state for documentID. Missing state is not an error.
	DeleteState(ctx context.Context, documentID string) error

	// ListStates returns every saved state ordered by document ID.
	ListStates(ctx context.Context) ([]*core.DocumentState, error)
}
