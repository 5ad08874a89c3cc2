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
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/poiesic/brainvault/core"
)

// codec keeps integers as int64 when decoding metadata into interface
// values and sorts map keys so encodings are stable.
var codec = sonic.Config{
	SortMapKeys: true,
	UseInt64:    true,
}.Froze()

type recordWire struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"doc"`
	Ordinal    int            `json:"ord"`
	Vector     []float32      `json:"vec"`
	Metadata   map[string]any `json:"md,omitempty"`
	Content    string         `json:"content,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type stateWire struct {
	DocumentID string    `json:"doc"`
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	Records    int       `json:"records"`
	Complete   bool      `json:"complete"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarshalRecord encodes a record for storage.
func MarshalRecord(record *core.Record) ([]byte, error) {
	data, err := codec.Marshal(recordWire{
		ID:         record.ID,
		DocumentID: record.DocumentID,
		Ordinal:    record.Ordinal,
		Vector:     record.Vector,
		Metadata:   record.Metadata,
		Content:    record.Content,
		UpdatedAt:  record.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: %w", ErrSerializationFailed, record.ID, err)
	}
	return data, nil
}

// UnmarshalRecord decodes a record written by MarshalRecord.
// Metadata lists decode back to []string.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	var w recordWire
	if err := codec.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.Record{
		ID:         w.ID,
		DocumentID: w.DocumentID,
		Ordinal:    w.Ordinal,
		Vector:     w.Vector,
		Metadata:   restoreMetadata(w.Metadata),
		Content:    w.Content,
		UpdatedAt:  w.UpdatedAt,
	}, nil
}

// MarshalState encodes a document state for storage.
func MarshalState(state *core.DocumentState) ([]byte, error) {
	data, err := codec.Marshal(stateWire(*state))
	if err != nil {
		return nil, fmt.Errorf("%w: state %s: %w", ErrSerializationFailed, state.DocumentID, err)
	}
	return data, nil
}

// UnmarshalState decodes a state written by MarshalState.
func UnmarshalState(data []byte) (*core.DocumentState, error) {
	var w stateWire
	if err := codec.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	state := core.DocumentState(w)
	return &state, nil
}

func restoreMetadata(in map[string]any) core.Metadata {
	out := make(core.Metadata, len(in))
	for k, v := range in {
		list, ok := v.([]any)
		if !ok {
			out[k] = v
			continue
		}
		strs := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				strs = append(strs, s)
			} else {
				strs = append(strs, fmt.Sprint(item))
			}
		}
		out[k] = strs
	}
	return out
}
