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
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/brainvault/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := New()
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxSize, s.MaxSize())
		assert.Equal(t, DefaultOverlap, s.Overlap())
	})

	t.Run("invalid parameters", func(t *testing.T) {
		tests := []struct {
			name       string
			maxSize    int
			overlap    int
			constraint Constraint
		}{
			{"zero max size", 0, 0, ConstraintMaxSize},
			{"negative max size", -5, 0, ConstraintMaxSize},
			{"negative overlap", 10, -1, ConstraintOverlapNegative},
			{"overlap equals max size", 10, 10, ConstraintOverlapTooLarge},
			{"overlap exceeds max size", 10, 11, ConstraintOverlapTooLarge},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s, err := New(WithMaxSize(tt.maxSize), WithOverlap(tt.overlap))
				require.Error(t, err)
				assert.Nil(t, s)
				assert.ErrorIs(t, err, ErrInvalidParameters)

				var paramErr *InvalidParametersError
				require.True(t, errors.As(err, &paramErr))
				assert.Equal(t, tt.constraint, paramErr.Constraint)
				assert.Equal(t, tt.maxSize, paramErr.MaxSize)
				assert.Equal(t, tt.overlap, paramErr.Overlap)
			})
		}
	})
}

func TestSplit_EmptyContent(t *testing.T) {
	segments, err := Split("", nil, 10, 0)
	assert.ErrorIs(t, err, core.ErrEmptyContent)
	assert.Nil(t, segments)
}

func TestSplit_InvalidParametersBeforeContent(t *testing.T) {
	_, err := Split("", nil, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestSplit_WhitespaceOnly(t *testing.T) {
	segments, err := Split("   \n\t  ", nil, 3, 1)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSplit_MixedContent(t *testing.T) {
	content := "intro\n```py\nprint(1)\n```\nend"

	segments, err := Split(content, nil, 100, 0)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, core.KindText, segments[0].Kind)
	assert.Equal(t, "intro", segments[0].Content)
	assert.Equal(t, 0, segments[0].Offset)

	assert.Equal(t, core.KindCode, segments[1].Kind)
	assert.Equal(t, "```py\nprint(1)\n```", segments[1].Content)
	assert.Equal(t, 6, segments[1].Offset)

	assert.Equal(t, core.KindText, segments[2].Kind)
	assert.Equal(t, "end", segments[2].Content)
	assert.Equal(t, 24, segments[2].Offset)

	for i, seg := range segments {
		assert.Equal(t, i, seg.Ordinal)
	}
}

func TestSplit_OnlyCodeFence(t *testing.T) {
	content := "```go\nfmt.Println(\"hi\")\n```"

	segments, err := Split(content, nil, 5, 2)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, core.KindCode, segments[0].Kind)
	assert.Equal(t, content, segments[0].Content)
}

func TestSplit_CodeNeverSplit(t *testing.T) {
	body := "```\n" + strings.Repeat("x = 1\n", 50) + "```"
	content := "lead\n" + body + "\ntail"

	segments, err := Split(content, nil, 10, 3)
	require.NoError(t, err)

	var code []core.Segment
	for _, seg := range segments {
		if seg.Kind == core.KindCode {
			code = append(code, seg)
		}
	}
	require.Len(t, code, 1)
	assert.Equal(t, body, code[0].Content)
}

func TestSplit_DocumentOrder(t *testing.T) {
	content := "a\n```x```\nb\n```y```\nc"

	segments, err := Split(content, nil, 100, 0)
	require.NoError(t, err)
	require.Len(t, segments, 5)

	expected := []struct {
		kind    core.SegmentKind
		content string
	}{
		{core.KindText, "a"},
		{core.KindCode, "```x```"},
		{core.KindText, "b"},
		{core.KindCode, "```y```"},
		{core.KindText, "c"},
	}
	for i, e := range expected {
		assert.Equal(t, i, segments[i].Ordinal)
		assert.Equal(t, e.kind, segments[i].Kind)
		assert.Equal(t, e.content, segments[i].Content)
		if i > 0 {
			assert.Greater(t, segments[i].Offset, segments[i-1].Offset)
		}
	}
}

func TestSplit_UnterminatedFenceIsText(t *testing.T) {
	content := "before\n```go\nx := 1"

	segments, err := Split(content, nil, 100, 0)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, core.KindText, segments[0].Kind)
	assert.Equal(t, content, segments[0].Content)
}

func TestSplit_OddFenceCount(t *testing.T) {
	content := "```a```\nmiddle ```dangling"

	segments, err := Split(content, nil, 100, 0)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, core.KindCode, segments[0].Kind)
	assert.Equal(t, "```a```", segments[0].Content)
	assert.Equal(t, core.KindText, segments[1].Kind)
	assert.Equal(t, "middle ```dangling", segments[1].Content)
}

func TestSplit_Windows(t *testing.T) {
	segments, err := Split("abcdefghij", nil, 4, 1)
	require.NoError(t, err)

	contents := make([]string, len(segments))
	offsets := make([]int, len(segments))
	for i, seg := range segments {
		contents[i] = seg.Content
		offsets[i] = seg.Offset
	}

	assert.Equal(t, []string{"abcd", "defg", "ghij", "j"}, contents)
	assert.Equal(t, []int{0, 3, 6, 9}, offsets)
}

func TestSplit_WindowProperties(t *testing.T) {
	content := strings.Repeat("abcdefghij", 7)
	length := len(content)

	params := []struct{ maxSize, overlap int }{
		{1, 0}, {7, 0}, {7, 3}, {7, 6}, {10, 5}, {70, 0}, {100, 99}, {13, 4},
	}

	for _, p := range params {
		segments, err := Split(content, nil, p.maxSize, p.overlap)
		require.NoError(t, err)

		step := p.maxSize - p.overlap
		expectedCount := (length + step - 1) / step
		require.Len(t, segments, expectedCount, "max=%d overlap=%d", p.maxSize, p.overlap)

		for i, seg := range segments {
			assert.Equal(t, i*step, seg.Offset)
			assert.LessOrEqual(t, len(seg.Content), p.maxSize)
			assert.Equal(t, content[seg.Offset:min(seg.Offset+p.maxSize, length)], seg.Content)
			if i > 0 && p.overlap > 0 && seg.Offset+p.overlap <= length {
				prev := segments[i-1].Content
				assert.Equal(t, prev[len(prev)-p.overlap:], seg.Content[:p.overlap])
			}
		}
	}
}

func TestSplit_ReconstructsWithoutOverlap(t *testing.T) {
	content := strings.Repeat("0123456789", 9) + "xyz"

	segments, err := Split(content, nil, 8, 0)
	require.NoError(t, err)

	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Content)
	}
	assert.Equal(t, content, b.String())
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	segments, err := Split("héllo wörld", nil, 5, 0)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, "héllo", segments[0].Content)
	assert.Equal(t, "wörl", segments[1].Content)
	assert.Equal(t, "d", segments[2].Content)
	assert.Equal(t, []int{0, 5, 10}, []int{segments[0].Offset, segments[1].Offset, segments[2].Offset})
}

func TestSplit_Metadata(t *testing.T) {
	metadata := core.Metadata{"title": "Notes", "tags": []string{"go"}}
	content := "text\n```sh\nls\n```"

	segments, err := Split(content, metadata, 100, 0)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, "text", segments[0].Metadata[core.MetadataChunkType])
	assert.Equal(t, "code", segments[1].Metadata[core.MetadataChunkType])
	assert.Equal(t, "Notes", segments[0].Metadata["title"])
	assert.Equal(t, []string{"go"}, segments[1].Metadata["tags"])

	// Parent metadata is never mutated and segments do not share maps.
	assert.NotContains(t, metadata, core.MetadataChunkType)
	segments[0].Metadata["title"] = "changed"
	assert.Equal(t, "Notes", segments[1].Metadata["title"])
}

func TestSplitter_Deterministic(t *testing.T) {
	s, err := New(WithMaxSize(16), WithOverlap(4))
	require.NoError(t, err)

	content := "Some prose here.\n```js\nconsole.log(1)\n```\nMore prose follows the code block."
	first, err := s.Split(content, nil)
	require.NoError(t, err)
	second, err := s.Split(content, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
