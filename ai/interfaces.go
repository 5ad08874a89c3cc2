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

import "context"

// Embedder turns a segment's text and metadata into a vector.
// Implementations must be safe for concurrent use: the ingestion scheduler
// calls Embed from up to K goroutines at once.
type Embedder interface {
	// Embed returns the embedding vector for text. The metadata is the
	// segment's metadata (including chunk_type) and may be folded into the
	// model input, see ComposeInput.
	// Implementations should honor ctx cancellation; a call that ignores it
	// is abandoned by the caller once its deadline passes.
	Embed(ctx context.Context, text string, metadata map[string]any) ([]float32, error)
}

// EmbedFunc adapts an ordinary function to the Embedder interface.
type EmbedFunc func(ctx context.Context, text string, metadata map[string]any) ([]float32, error)

// Embed calls f(ctx, text, metadata).
func (f EmbedFunc) Embed(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
	return f(ctx, text, metadata)
}

// Provider aggregates an Embedder with the resources behind it so hosts can
// initialize and release them together.
type Provider interface {
	// Embedder returns the embedding service. It is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider.
	// The embedder must not be used afterwards.
	Close() error
}
