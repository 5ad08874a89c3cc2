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

// Store bundles the repositories that share one Badger database.
type Store struct {
	*Backend
	Vectors *VectorRepository
	States  *StateRepository
}

// Open opens or creates the database directory at path.
func Open(path string) (*Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// NewStore creates the repositories on an open backend.
func NewStore(backend *Backend) *Store {
	return &Store{
		Backend: backend,
		Vectors: NewVectorRepository(backend),
		States:  NewStateRepository(backend),
	}
}
