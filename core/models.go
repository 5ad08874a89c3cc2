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
	"encoding/hex"
	"maps"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// HashContent returns a stable hex digest of document content using BLAKE2b.
// Identical content always produces identical hashes, which lets the pipeline
// skip documents that have not changed since they were last ingested.
func HashContent(content []byte) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Metadata holds structured attributes attached to a document and inherited
// by each of its segments. Values are scalars (string, bool, int64, float64)
// or string slices.
type Metadata map[string]any

// MetadataChunkType is the metadata key carrying a segment's kind.
const MetadataChunkType = "chunk_type"

// Clone returns an independent copy of the metadata.
// A nil receiver yields an empty, non-nil map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	maps.Copy(out, m)
	for k, v := range out {
		if list, ok := v.([]string); ok {
			out[k] = append([]string(nil), list...)
		}
	}
	return out
}

// SegmentKind identifies how a segment was produced by the splitter.
type SegmentKind string

const (
	// KindText is a windowed piece of prose.
	KindText SegmentKind = "text"
	// KindCode is a whole fenced code region.
	KindCode SegmentKind = "code"
)

// Document is a single input file read for ingestion.
type Document struct {
	ID       string   // Stable key, see DocumentID
	Path     string   // Filesystem path the content was read from
	Content  string   // Raw UTF-8 content
	Metadata Metadata // Front-matter metadata, never nil after extraction
	Hash     string   // HashContent of Content
}

// Segment is the smallest unit of content sent to the embedder.
type Segment struct {
	Ordinal  int         // 0-based, sequential over the whole document
	Content  string      // Trimmed, never empty
	Kind     SegmentKind // text or code
	Offset   int         // Rune offset of the untrimmed region in the document
	Metadata Metadata    // Parent metadata plus chunk_type
}

// EmbeddingResult is the successful output of one embedding task.
type EmbeddingResult struct {
	Ordinal  int
	Vector   []float32
	Metadata Metadata
}

// Record is the unit persisted to the vector store.
type Record struct {
	ID         string // RecordKey(DocumentID, Ordinal)
	DocumentID string
	Ordinal    int
	Vector     []float32
	Metadata   Metadata
	Content    string
	UpdatedAt  time.Time
}

// RecordKey builds the idempotency key "{document_id}_{ordinal}".
func RecordKey(documentID string, ordinal int) string {
	return documentID + "_" + strconv.Itoa(ordinal)
}

// Match is a ranked result from a vector store query.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
	Content  string
}

// DocumentState remembers what was last ingested for a document.
// Complete is false when some segments failed to embed; such documents
// are re-ingested on the next run even if their content is unchanged.
type DocumentState struct {
	DocumentID string
	Path       string
	Hash       string
	Records    int
	Complete   bool
	UpdatedAt  time.Time
}
