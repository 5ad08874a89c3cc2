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

// Package storage provides the storage abstraction layer for brainvault.
//
// This package defines the contracts the ingestion pipeline persists through,
// decoupling it from any particular database:
//
//   - VectorStore: insert-or-replace embedding records and rank them by similarity
//   - StateRepository: per-document content hashes used to skip unchanged files
//
// The BadgerDB implementation lives in storage/badger.
//
// # Keys
//
// Records are keyed by "{document_id}_{ordinal}". Re-ingesting a document
// overwrites its records in place, so repeated runs never duplicate data.
//
// # Usage
//
//	store, err := badger.Open("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore()
//
// # Thread Safety
//
// All implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
