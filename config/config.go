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

package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/brainvault/ai"
	"github.com/poiesic/brainvault/scanner"
	"github.com/poiesic/brainvault/splitter"
)

// Config holds the settings of a brainvault installation.
type Config struct {
	// Root is the directory whose documents are ingested.
	Root string

	// DBPath is the Badger database directory.
	// Default: <Root>/.brainvault/db
	DBPath string

	// Extensions are the file extensions eligible for ingestion.
	Extensions []string

	// EmbeddingHost is the base URL of the OpenAI-compatible embedding API.
	EmbeddingHost string

	// EmbeddingModel is the embedding model identifier.
	EmbeddingModel string

	// Token is the API key for the embedding service.
	Token string

	// ChunkSize is the text window size in characters.
	ChunkSize int

	// Overlap is the number of characters consecutive text windows share.
	Overlap int

	// Concurrency caps simultaneous embedding calls per document.
	Concurrency int

	// TaskTimeout is the deadline of one embedding call.
	TaskTimeout time.Duration

	// Workers is the number of documents ingested at once.
	Workers int

	// RequestsPerSecond throttles embedding calls. 0 disables throttling.
	RequestsPerSecond float64

	// MaxAttempts is the number of attempts per embedding call. 1 means no retry.
	MaxAttempts int

	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFile, when set, receives log output instead of stderr.
	LogFile string

	// TopK is the default number of search matches.
	TopK int
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithRoot sets the document root.
func WithRoot(root string) Option {
	return func(c *Config) {
		c.Root = root
	}
}

// WithDBPath sets the database directory.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithExtensions sets the eligible file extensions.
func WithExtensions(exts ...string) Option {
	return func(c *Config) {
		c.Extensions = exts
	}
}

// WithEmbedding sets the embedding host and model.
func WithEmbedding(host, model string) Option {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.EmbeddingModel = model
	}
}

// WithChunking sets the text window size and overlap.
func WithChunking(size, overlap int) Option {
	return func(c *Config) {
		c.ChunkSize = size
		c.Overlap = overlap
	}
}

// WithConcurrency sets the per-document cap on embedding calls.
func WithConcurrency(k int) Option {
	return func(c *Config) {
		c.Concurrency = k
	}
}

// WithTaskTimeout sets the deadline of one embedding call.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.TaskTimeout = d
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// DefaultConfig returns a Config for a local Ollama server and the current directory.
func DefaultConfig() *Config {
	return &Config{
		Root:           ".",
		Extensions:     append([]string(nil), scanner.DefaultExtensions...),
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "embeddinggemma",
		Token:          "none",
		ChunkSize:      splitter.DefaultMaxSize,
		Overlap:        splitter.DefaultOverlap,
		Concurrency:    5,
		TaskTimeout:    10 * time.Second,
		Workers:        1,
		MaxAttempts:    1,
		RetryDelay:     500 * time.Millisecond,
		LogLevel:       "info",
		TopK:           5,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize fills derived defaults.
func (c *Config) Normalize() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.Root, ".brainvault", "db")
	}
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), scanner.DefaultExtensions...)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: ChunkSize must be positive", ErrInvalidConfig)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: Overlap must be in [0, ChunkSize)", ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: Concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("%w: TaskTimeout must not be negative", ErrInvalidConfig)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: TopK must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: LogLevel: %w", ErrInvalidConfig, err)
	}
	if err := c.AI().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// AI returns the embedding service settings.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.EmbeddingHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithToken(c.Token),
		ai.WithRateLimit(c.RequestsPerSecond, 1),
		ai.WithRetry(c.MaxAttempts, c.RetryDelay),
	)
}
