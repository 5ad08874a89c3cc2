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

import (
	"fmt"
	"math"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - DocumentID must not be empty
//   - ID must equal RecordKey(DocumentID, Ordinal)
//   - Vector must not be empty and must not contain NaN or Inf
//
// NOT validated:
//   - Metadata (empty is valid for documents without front matter)
//   - Content (stored for display only)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyDocumentID)
	}

	if record.Ordinal < 0 {
		return fmt.Errorf("%w: negative ordinal %d", ErrInvalidRecord, record.Ordinal)
	}

	if record.ID != RecordKey(record.DocumentID, record.Ordinal) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRecord, ErrKeyMismatch, record.ID)
	}

	if err := ValidateVector(record.Vector); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return nil
}

// ValidateVector checks that a vector is non-empty and finite.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite value at dimension %d", i)
		}
	}
	return nil
}
