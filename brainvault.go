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

package brainvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/poiesic/brainvault/ai"
	"github.com/poiesic/brainvault/ai/openai"
	"github.com/poiesic/brainvault/config"
	"github.com/poiesic/brainvault/core"
	"github.com/poiesic/brainvault/frontmatter"
	"github.com/poiesic/brainvault/ingestion"
	"github.com/poiesic/brainvault/scanner"
	"github.com/poiesic/brainvault/search"
	"github.com/poiesic/brainvault/storage/badger"
	"github.com/poiesic/brainvault/watcher"
)

// Vault wires a document root to its vector store and embedding service.
type Vault struct {
	config   *config.Config
	store    *badger.Store
	provider ai.Provider
	scanner  *scanner.Scanner
	logger   *slog.Logger
}

// VaultOption configures Open.
type VaultOption func(*vaultOptions)

type vaultOptions struct {
	provider ai.Provider
	inMemory bool
	logger   *slog.Logger
}

// WithProvider uses provider instead of the OpenAI-compatible one built from
// the configuration.
func WithProvider(provider ai.Provider) VaultOption {
	return func(o *vaultOptions) {
		o.provider = provider
	}
}

// WithInMemoryStore keeps the vector store in memory instead of at DBPath.
func WithInMemoryStore() VaultOption {
	return func(o *vaultOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) VaultOption {
	return func(o *vaultOptions) {
		o.logger = logger
	}
}

// Open validates cfg, opens the store, and connects the embedding provider.
func Open(cfg *config.Config, opts ...VaultOption) (*Vault, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &vaultOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	var backend *badger.Backend
	var err error
	if options.inMemory {
		backend, err = badger.OpenBackend("", true)
	} else {
		backend, err = badger.OpenBackend(cfg.DBPath, false)
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	store := badger.NewStore(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.AI())
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &Vault{
		config:   cfg,
		store:    store,
		provider: provider,
		scanner: scanner.New(cfg.Root,
			scanner.WithExtensions(cfg.Extensions...),
		),
		logger: options.logger,
	}, nil
}

// Close releases the provider and the store.
func (v *Vault) Close() error {
	if err := v.provider.Close(); err != nil {
		v.logger.Error("error closing AI provider", "err", err)
	}
	if err := v.store.Close(); err != nil {
		v.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Config returns the vault's configuration.
func (v *Vault) Config() *config.Config {
	return v.config
}

// Store returns the underlying store.
func (v *Vault) Store() *badger.Store {
	return v.store
}

// Scanner returns the scanner over the document root.
func (v *Vault) Scanner() *scanner.Scanner {
	return v.scanner
}

// NewPipeline creates an ingestion pipeline configured from the vault.
// opts are applied after the configured ones and may override them.
func (v *Vault) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithChunkSize(v.config.ChunkSize, v.config.Overlap),
		ingestion.WithConcurrency(v.config.Concurrency),
		ingestion.WithTaskTimeout(v.config.TaskTimeout),
		ingestion.WithWorkers(v.config.Workers),
		ingestion.WithRoot(v.config.Root),
		ingestion.WithMetadataExtractor(frontmatter.NewExtractor(v.logger)),
		ingestion.WithStateRepository(v.store.States),
		ingestion.WithLogger(v.logger),
	}
	return ingestion.NewPipeline(v.store.Vectors, v.provider.Embedder(), append(base, opts...)...)
}

// NewSearcher creates a searcher over the vault's store.
func (v *Vault) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithTopK(v.config.TopK),
		search.WithLogger(v.logger),
	}
	return search.NewSearcher(v.store.Vectors, v.provider.Embedder(), append(base, opts...)...)
}

// NewWatcher creates a watcher that feeds changes under the root to pipeline.
func (v *Vault) NewWatcher(pipeline *ingestion.Pipeline, opts ...watcher.Option) (*watcher.Watcher, error) {
	return watcher.New(pipeline, v.scanner, append([]watcher.Option{watcher.WithLogger(v.logger)}, opts...)...)
}

// Ingest scans the root and ingests every eligible document, then prunes
// documents that disappeared since the last run. progress may be nil.
func (v *Vault) Ingest(ctx context.Context, force bool, progress io.Writer) (*ingestion.BatchReport, error) {
	info, err := os.Stat(v.config.Root)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", scanner.ErrRootNotDirectory, v.config.Root)
	}

	opts := []ingestion.Option{ingestion.WithForce(force)}
	if progress != nil {
		opts = append(opts, ingestion.WithProgress(progress))
	}
	pipeline, err := v.NewPipeline(opts...)
	if err != nil {
		return nil, err
	}

	report := pipeline.Run(ctx, v.scanner.Scan(ctx))
	if ctx.Err() != nil {
		return report, ctx.Err()
	}

	if _, err := v.Prune(ctx); err != nil {
		return report, err
	}
	return report, report.Err()
}

// Prune forgets every indexed document whose file is gone or no longer
// eligible. It returns the number of documents forgotten.
func (v *Vault) Prune(ctx context.Context) (int, error) {
	pipeline, err := v.NewPipeline()
	if err != nil {
		return 0, err
	}
	states, err := v.store.States.ListStates(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, state := range states {
		if v.present(state) {
			continue
		}
		removed, err := pipeline.ForgetDocument(ctx, state.DocumentID)
		if err != nil {
			return pruned, err
		}
		v.logger.Info("pruned document", "path", state.Path, "records", removed)
		pruned++
	}
	return pruned, nil
}

func (v *Vault) present(state *core.DocumentState) bool {
	if !v.scanner.Eligible(state.Path) {
		return false
	}
	_, err := os.Stat(state.Path)
	return !errors.Is(err, fs.ErrNotExist)
}

// Search returns the topK stored segments closest to query.
// topK <= 0 uses the configured default.
func (v *Vault) Search(ctx context.Context, query string, topK int) ([]core.Match, error) {
	searcher, err := v.NewSearcher()
	if err != nil {
		return nil, err
	}
	return searcher.FindSimilar(ctx, query, topK)
}

// Forget removes the records of the document at path.
func (v *Vault) Forget(ctx context.Context, path string) (int, error) {
	pipeline, err := v.NewPipeline()
	if err != nil {
		return 0, err
	}
	return pipeline.Forget(ctx, path)
}
