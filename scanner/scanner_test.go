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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+f), 0o644))
	}
}

func collect(t *testing.T, s *Scanner) []string {
	t.Helper()
	var out []string
	for path, err := range s.Scan(context.Background()) {
		require.NoError(t, err)
		rel, err := filepath.Rel(s.Root(), path)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"a.md",
		"b.txt",
		"c.go",
		"UPPER.MD",
		"sub/d.md",
		"sub/deeper/e.txt",
		".git/objects/f.md",
		"node_modules/pkg/readme.md",
	)

	s := New(root)
	assert.Equal(t, []string{"UPPER.MD", "a.md", "b.txt", "sub/d.md", "sub/deeper/e.txt"}, collect(t, s))
}

func TestScan_Restartable(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "one.md")

	s := New(root)
	assert.Equal(t, []string{"one.md"}, collect(t, s))

	writeTree(t, root, "two.md")
	assert.Equal(t, []string{"one.md", "two.md"}, collect(t, s))
}

func TestScan_Extensions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.md", "b.txt", "c.rst")

	tests := []struct {
		name     string
		exts     []string
		expected []string
	}{
		{"leading dot optional", []string{"rst"}, []string{"c.rst"}},
		{"case insensitive", []string{".TXT"}, []string{"b.txt"}},
		{"whitespace trimmed", []string{" .md ", ""}, []string{"a.md"}},
		{"none allowed", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(root, WithExtensions(tt.exts...))
			assert.Equal(t, tt.expected, collect(t, s))
		})
	}
}

func TestScan_IgnoreDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "keep/a.md", "drafts/b.md", "build-1/c.md")

	s := New(root, WithIgnoreDirs("drafts", "build-*"))
	assert.Equal(t, []string{"keep/a.md"}, collect(t, s))
}

func TestScan_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "real.md")
	if err := os.Symlink(filepath.Join(root, "real.md"), filepath.Join(root, "link.md")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	assert.Equal(t, []string{"real.md"}, collect(t, New(root)))
}

func TestScan_MissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"))

	var errs []error
	for _, err := range s.Scan(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], os.ErrNotExist)
}

func TestScan_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "file.md")

	var errs []error
	for _, err := range New(filepath.Join(root, "file.md")).Scan(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrRootNotDirectory)
}

func TestScan_EarlyBreak(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.md", "b.md", "c.md")

	count := 0
	for range New(root).Scan(context.Background()) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestScan_ContextCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.md", "b.md")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var paths []string
	var lastErr error
	for path, err := range New(root).Scan(ctx) {
		if err != nil {
			lastErr = err
			continue
		}
		paths = append(paths, path)
	}
	assert.Empty(t, paths)
	assert.ErrorIs(t, lastErr, context.Canceled)
}

func TestEligible(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	tests := []struct {
		path     string
		expected bool
	}{
		{filepath.Join(root, "a.md"), true},
		{filepath.Join(root, "sub", "b.TXT"), true},
		{filepath.Join(root, "c.go"), false},
		{filepath.Join(root, ".git", "d.md"), false},
		{filepath.Join(root, "x", "node_modules", "e.md"), false},
		{filepath.Join(filepath.Dir(root), "outside.md"), false},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.expected, s.Eligible(tt.path))
		})
	}
}

func TestDescends(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"root", root, true},
		{"subdir", filepath.Join(root, "notes", "daily"), true},
		{"ignored", filepath.Join(root, ".git"), false},
		{"inside ignored", filepath.Join(root, "web", "node_modules", "pkg"), false},
		{"outside root", filepath.Dir(root), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.Descends(tt.path))
		})
	}
}
