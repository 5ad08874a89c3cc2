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
	"path/filepath"
	"strings"
)

// DocumentID derives the stable document key for a file.
// The key is the slash-separated path relative to root, or the cleaned path
// itself when the file lies outside root or root is empty. Bytes outside
// printable ASCII, and '%' itself, are percent-encoded so the key is ASCII.
func DocumentID(root, path string) string {
	rel := filepath.Clean(path)
	if root != "" {
		absRoot, rootErr := filepath.Abs(root)
		absPath, pathErr := filepath.Abs(path)
		if rootErr == nil && pathErr == nil {
			if r, err := filepath.Rel(absRoot, absPath); err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
				rel = r
			} else {
				rel = absPath
			}
		}
	}
	return escapeKey(filepath.ToSlash(rel))
}

const upperHex = "0123456789ABCDEF"

// escapeKey percent-encodes every byte that is not printable ASCII.
func escapeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x21 || c > 0x7e || c == '%' {
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
