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

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtensions are the file extensions scanned when none are configured.
var DefaultExtensions = []string{".txt", ".md"}

// DefaultIgnoreDirs are directory names never descended into.
var DefaultIgnoreDirs = []string{".git", ".hg", ".svn", "node_modules", ".brainvault"}

// ErrRootNotDirectory indicates the scan root exists but is not a directory.
var ErrRootNotDirectory = errors.New("scan root is not a directory")

// Scanner discovers eligible documents beneath a root directory.
// A Scanner holds no traversal state; it is safe for concurrent use.
type Scanner struct {
	root       string
	extensions []string
	ignoreDirs []string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions sets the allowed file extensions. Matching is
// case-insensitive and the leading dot is optional.
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		s.extensions = normalizeExtensions(exts)
	}
}

// WithIgnoreDirs sets the directory names (or glob patterns matched against
// names) that are skipped during traversal.
func WithIgnoreDirs(dirs ...string) Option {
	return func(s *Scanner) {
		s.ignoreDirs = slices.Clone(dirs)
	}
}

// New creates a Scanner rooted at root.
func New(root string, opts ...Option) *Scanner {
	s := &Scanner{
		root:       filepath.Clean(root),
		extensions: slices.Clone(DefaultExtensions),
		ignoreDirs: slices.Clone(DefaultIgnoreDirs),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the scan root.
func (s *Scanner) Root() string {
	return s.root
}

// Extensions returns the allowed extensions, lower-cased with leading dots.
func (s *Scanner) Extensions() []string {
	return slices.Clone(s.extensions)
}

// Scan returns a lazy sequence of eligible file paths.
//
// Every call performs a fresh traversal. Paths come out in lexical order,
// each exactly once; symbolic links are not followed. Errors reading a
// subdirectory are yielded with that directory's path and the walk
// continues past it. A missing root or a cancelled ctx yields one error and
// ends the sequence.
func (s *Scanner) Scan(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		info, err := os.Stat(s.root)
		if err != nil {
			yield(s.root, fmt.Errorf("scan %s: %w", s.root, err))
			return
		}
		if !info.IsDir() {
			yield(s.root, fmt.Errorf("%w: %s", ErrRootNotDirectory, s.root))
			return
		}

		stopped := errors.New("stopped")
		err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if walkErr != nil {
				if !yield(path, fmt.Errorf("scan %s: %w", path, walkErr)) {
					return stopped
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != s.root && s.ignored(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || !s.allowed(path) {
				return nil
			}
			if !yield(path, nil) {
				return stopped
			}
			return nil
		})
		if err != nil && !errors.Is(err, stopped) {
			yield("", err)
		}
	}
}

// Eligible reports whether path would be produced by Scan: it lies beneath
// the root, no directory on the way is ignored, and its extension is allowed.
// The file itself is not inspected.
func (s *Scanner) Eligible(path string) bool {
	if !s.allowed(path) {
		return false
	}
	rel, ok := s.relative(path)
	return ok && !s.ignoredPath(filepath.Dir(rel))
}

// Descends reports whether Scan would walk into the directory at path.
func (s *Scanner) Descends(path string) bool {
	rel, ok := s.relative(path)
	return ok && !s.ignoredPath(rel)
}

// relative returns path relative to the root, and false when it lies outside.
func (s *Scanner) relative(path string) (string, bool) {
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func (s *Scanner) ignoredPath(rel string) bool {
	for _, d := range strings.Split(filepath.ToSlash(rel), "/") {
		if d != "." && s.ignored(d) {
			return true
		}
	}
	return false
}

func (s *Scanner) allowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && slices.Contains(s.extensions, ext)
}

func (s *Scanner) ignored(name string) bool {
	for _, p := range s.ignoreDirs {
		if name == p {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}
