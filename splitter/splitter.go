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

package splitter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/brainvault/core"
)

const (
	// DefaultMaxSize is the default window size in characters.
	DefaultMaxSize = 500

	// DefaultOverlap is the default number of characters shared by consecutive text windows.
	DefaultOverlap = 50
)

// fencePattern matches a triple-backtick fenced region, shortest first.
// Matches never overlap, so fences cannot nest, and a trailing fence
// without a partner is left to the text windows.
var fencePattern = regexp.MustCompile("(?s)```.*?```")

// Splitter segments document content while keeping fenced code intact.
// A Splitter is immutable and safe for concurrent use.
type Splitter struct {
	maxSize int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithMaxSize sets the text window size in characters.
func WithMaxSize(size int) Option {
	return func(s *Splitter) {
		s.maxSize = size
	}
}

// WithOverlap sets how many characters consecutive text windows share.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		s.overlap = overlap
	}
}

// New creates a Splitter and validates its parameters.
// Returns an *InvalidParametersError naming the violated constraint.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		maxSize: DefaultMaxSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := validate(s.maxSize, s.overlap); err != nil {
		return nil, err
	}
	return s, nil
}

func validate(maxSize, overlap int) error {
	var constraint Constraint
	switch {
	case maxSize <= 0:
		constraint = ConstraintMaxSize
	case overlap < 0:
		constraint = ConstraintOverlapNegative
	case overlap >= maxSize:
		constraint = ConstraintOverlapTooLarge
	default:
		return nil
	}
	return &InvalidParametersError{Constraint: constraint, MaxSize: maxSize, Overlap: overlap}
}

// MaxSize returns the text window size.
func (s *Splitter) MaxSize() int {
	return s.maxSize
}

// Overlap returns the text window overlap.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split is a convenience wrapper that validates the parameters and splits
// content in one call.
func Split(content string, metadata core.Metadata, maxSize, overlap int) ([]core.Segment, error) {
	s, err := New(WithMaxSize(maxSize), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return s.Split(content, metadata)
}

// Split breaks content into segments in document order.
//
// Each fenced code region becomes a single code segment, fences included.
// The text before, between, and after them is cut into windows of MaxSize
// characters advancing by MaxSize-Overlap; each window is trimmed and kept
// only if something remains. Every segment receives a clone of metadata with
// chunk_type set to its kind. Ordinals run across both kinds.
func (s *Splitter) Split(content string, metadata core.Metadata) ([]core.Segment, error) {
	if content == "" {
		return nil, core.ErrEmptyContent
	}

	var segments []core.Segment
	emit := func(text string, kind core.SegmentKind, offset int) {
		md := metadata.Clone()
		md[core.MetadataChunkType] = string(kind)
		segments = append(segments, core.Segment{
			Ordinal:  len(segments),
			Content:  text,
			Kind:     kind,
			Offset:   offset,
			Metadata: md,
		})
	}

	prevEnd := 0  // byte offset into content
	runeBase := 0 // rune offset of prevEnd
	for _, loc := range fencePattern.FindAllStringIndex(content, -1) {
		start, end := loc[0], loc[1]

		before := content[prevEnd:start]
		s.windows(before, runeBase, emit)
		runeBase += utf8.RuneCountInString(before)

		fence := content[start:end]
		emit(strings.TrimSpace(fence), core.KindCode, runeBase)
		runeBase += utf8.RuneCountInString(fence)

		prevEnd = end
	}
	s.windows(content[prevEnd:], runeBase, emit)

	return segments, nil
}

// windows emits the non-empty trimmed text windows of region.
func (s *Splitter) windows(region string, base int, emit func(string, core.SegmentKind, int)) {
	if region == "" {
		return
	}
	runes := []rune(region)
	step := s.maxSize - s.overlap
	for i := 0; i < len(runes); i += step {
		end := min(i+s.maxSize, len(runes))
		piece := strings.TrimSpace(string(runes[i:end]))
		if piece != "" {
			emit(piece, core.KindText, base+i)
		}
	}
}
