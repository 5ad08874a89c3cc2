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

package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/brainvault/ai"
	"github.com/poiesic/brainvault/core"
	"github.com/poiesic/brainvault/storage"
)

// DefaultTopK is the number of matches returned when the caller asks for none.
const DefaultTopK = 5

// Searcher answers free-text queries against the vector store.
type Searcher struct {
	store    storage.VectorStore
	embedder ai.Embedder
	topK     int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithTopK sets the default number of matches.
func WithTopK(k int) Option {
	return func(s *Searcher) error {
		if k < 1 {
			return fmt.Errorf("%w: top_k must be at least 1, got %d", storage.ErrInvalidQuery, k)
		}
		s.topK = k
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// FindSimilar returns up to topK stored segments closest to query.
// topK <= 0 uses the searcher's default.
func (s *Searcher) FindSimilar(ctx context.Context, query string, topK int) ([]core.Match, error) {
	return s.FindSimilarWithMonitor(ctx, query, topK, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage.
// The query is embedded with empty metadata. Matches are ranked by the store.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]core.Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = s.topK
	}

	monitor.Start(query)

	embedding, err := s.embedder.Embed(ctx, query, nil)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(embedding))

	matches, err := s.store.Query(ctx, embedding, topK)
	if err != nil {
		s.logger.Error("error querying for similar records", "err", err)
		return nil, err
	}
	s.logger.Debug("search complete", "query", query, "matches", len(matches))

	monitor.Finish(matches)
	return matches, nil
}
