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

package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/brainvault/core"
	"github.com/poiesic/brainvault/storage"
)

// VectorRepository stores embedding records in Badger and answers
// similarity queries by scanning them.
//
// Each record lives under "vrec:{id}". A per-document index under
// "vdoc:{document_id}\x00{id}" lets a document's records be removed without
// a full scan.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorRepository)(nil)

// NewVectorRepository creates a vector repository on backend.
func NewVectorRepository(backend *Backend) *VectorRepository {
	return &VectorRepository{backend: backend}
}

// Close closes the underlying backend.
func (r *VectorRepository) Close() error {
	return r.backend.Close()
}

// Upsert writes records in a single transaction, replacing any record with
// the same ID. UpdatedAt is stamped on records that do not carry one.
func (r *VectorRepository) Upsert(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrInvalidRecord, err)
		}
	}

	now := time.Now().UTC()
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if record.UpdatedAt.IsZero() {
				record.UpdatedAt = now
			}
			value, err := storage.MarshalRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecordKey(record.ID), value); err != nil {
				return err
			}
			if err := tx.Set(makeDocIndexKey(record.DocumentID, record.ID), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Query ranks every stored record by cosine similarity to vector.
// Records whose dimensionality differs from vector are ignored.
func (r *VectorRepository) Query(ctx context.Context, vector []float32, topK int) ([]core.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	if err := core.ValidateVector(vector); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}

	queryNorm := norm(vector)
	var matches []core.Match
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(vectorRecordPrefix), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := storage.UnmarshalRecord(val)
			if err != nil {
				return err
			}
			if len(record.Vector) != len(vector) {
				return nil
			}
			matches = append(matches, core.Match{
				ID:       record.ID,
				Score:    cosine(vector, queryNorm, record.Vector),
				Metadata: record.Metadata,
				Content:  record.Content,
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b core.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteDocument removes all records of documentID.
func (r *VectorRepository) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range scanKeys(tx, makePartialDocIndexKey(documentID)) {
			recordID := recordIDFromDocIndexKey(key, documentID)
			if err := tx.Delete(makeRecordKey(recordID)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Get retrieves a single record by ID.
// Returns storage.ErrNotFound if the record doesn't exist.
func (r *VectorRepository) Get(ctx context.Context, id string) (*core.Record, error) {
	var record *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRecordKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalRecord(val)
			return unmarshalErr
		})
	}, false)
	return record, err
}

// DocumentRecords returns the records of documentID ordered by ordinal.
func (r *VectorRepository) DocumentRecords(ctx context.Context, documentID string) ([]*core.Record, error) {
	var records []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range scanKeys(tx, makePartialDocIndexKey(documentID)) {
			item, err := tx.Get(makeRecordKey(recordIDFromDocIndexKey(key, documentID)))
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				record, err := storage.UnmarshalRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b *core.Record) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return records, nil
}

// Count returns the number of stored records.
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		count = len(scanKeys(tx, []byte(vectorRecordPrefix)))
		return nil
	}, false)
	return count, err
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity of a and b given a's norm.
// A zero vector scores 0.
func cosine(a []float32, aNorm float64, b []float32) float32 {
	bNorm := norm(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (aNorm * bNorm))
}
