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

package ai

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ComposeInput builds the model input for a segment.
//
// With metadata it yields "Metadata: k1: v1, k2: v2. Content: text", keys in
// sorted order so identical inputs always produce identical prompts. Without
// metadata it yields "Content: text". String slices are joined with ", ".
func ComposeInput(text string, metadata map[string]any) string {
	if len(metadata) == 0 {
		return "Content: " + text
	}

	keys := slices.Sorted(maps.Keys(metadata))
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+": "+formatValue(metadata[k]))
	}

	var b strings.Builder
	b.WriteString("Metadata: ")
	b.WriteString(strings.Join(pairs, ", "))
	b.WriteString(". Content: ")
	b.WriteString(text)
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
