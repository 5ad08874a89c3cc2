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

package core

import "errors"

// Domain validation errors
var (
	// ErrEmptyContent indicates a document or segment has no content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyVector indicates a vector has no dimensions.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrEmptyDocumentID indicates a record or state has no document ID.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrKeyMismatch indicates a record ID does not match its document and ordinal.
	ErrKeyMismatch = errors.New("record id does not match document id and ordinal")
)
