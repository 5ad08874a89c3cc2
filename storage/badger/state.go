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
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/brainvault/core"
	"github.com/poiesic/brainvault/storage"
)

// StateRepository keeps one core.DocumentState per document under
// "dstate:{document_id}".
type StateRepository struct {
	backend *Backend
}

var _ storage.StateRepository = (*StateRepository)(nil)

// NewStateRepository creates a state repository on backend.
func NewStateRepository(backend *Backend) *StateRepository {
	return &StateRepository{
		backend: backend,
	}
}

// SaveState stores state, replacing any previous state for the document.
func (r *StateRepository) SaveState(ctx context.Context, state *core.DocumentState) error {
	if state == nil || state.DocumentID == "" {
		return core.ErrEmptyDocumentID
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		state.UpdatedAt = time.Now().UTC()
		value, err := storage.MarshalState(state)
		if err != nil {
			return err
		}
		if err := tx.Set(makeStateKey(state.DocumentID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadState returns the saved state, or nil when the document is unknown.
func (r *StateRepository) LoadState(ctx context.Context, documentID string) (*core.DocumentState, error) {
	var state *core.DocumentState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeStateKey(documentID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			state, unmarshalErr = storage.UnmarshalState(val)
			return unmarshalErr
		})
	}, false)

	return state, err
}

// DeleteState removes the state for documentID.
func (r *StateRepository) DeleteState(ctx context.Context, documentID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeStateKey(documentID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListStates returns every saved state in document ID order.
func (r *StateRepository) ListStates(ctx context.Context) ([]*core.DocumentState, error) {
	var states []*core.DocumentState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(docStatePrefix), func(_, val []byte) error {
			state, err := storage.UnmarshalState(val)
			if err != nil {
				return err
			}
			states = append(states, state)
			return nil
		})
	}, false)
	return states, err
}
