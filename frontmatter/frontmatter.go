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

package frontmatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/brainvault/core"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Parse reads the YAML front matter at the top of content.
//
// Front matter is present when the content, ignoring leading whitespace,
// starts with "---". The block runs to the next "---" (or to the end of the
// content when there is none). Nested mappings are flattened with dotted keys,
// sequences become string slices, and timestamps become RFC 3339 strings.
// Null values are dropped.
func Parse(content string) (core.Metadata, error) {
	if !strings.HasPrefix(strings.TrimSpace(content), delimiter) {
		return nil, ErrNoFrontMatter
	}

	parts := strings.SplitN(content, delimiter, 3)
	block := strings.TrimSpace(parts[1])
	if block == "" {
		return core.Metadata{}, nil
	}

	var raw any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}

	md := core.Metadata{}
	switch m := raw.(type) {
	case map[string]any:
		flatten(md, "", m)
	case map[any]any:
		flatten(md, "", stringKeys(m))
	case nil:
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, raw)
	}
	return md, nil
}

func flatten(dst core.Metadata, prefix string, src map[string]any) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
		case map[string]any:
			flatten(dst, key, val)
		case map[any]any:
			flatten(dst, key, stringKeys(val))
		case []any:
			list := make([]string, 0, len(val))
			for _, item := range val {
				if item != nil {
					list = append(list, scalarString(item))
				}
			}
			dst[key] = list
		default:
			dst[key] = scalar(val)
		}
	}
}

func stringKeys(m map[any]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = v
	}
	return out
}

// scalar narrows a decoded YAML scalar to the types Metadata allows.
func scalar(v any) any {
	switch val := v.(type) {
	case string, bool, float64, int64:
		return val
	case int:
		return int64(val)
	case uint64:
		// Past MaxInt64 the exact digits are kept as text.
		if val > math.MaxInt64 {
			return strconv.FormatUint(val, 10)
		}
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

func scalarString(v any) string {
	switch val := scalar(v).(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// Extractor reads front matter metadata from files on disk.
// It never fails: unreadable files and malformed front matter are logged and
// yield empty metadata.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger uses slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "frontmatter")}
}

// Extract returns the front matter of the file at path, or empty metadata.
func (e *Extractor) Extract(_ context.Context, path string) core.Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Error("error reading metadata", "path", path, "err", err)
		return core.Metadata{}
	}

	md, err := Parse(string(data))
	switch {
	case err == nil:
		return md
	case errors.Is(err, ErrNoFrontMatter):
		return core.Metadata{}
	default:
		e.logger.Error("error parsing front matter", "path", path, "err", err)
		return core.Metadata{}
	}
}
