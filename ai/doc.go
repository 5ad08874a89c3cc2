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

// Package ai provides the embedding abstraction used by brainvault.
//
// The ingestion pipeline depends only on the Embedder interface defined here;
// concrete services live in sub-packages:
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Model Input
//
// Embedders receive a segment's text together with its metadata.
// ComposeInput renders both into the single string sent to the model:
//
//	Metadata: chunk_type: text, title: Notes. Content: <segment text>
//
// # Host-level Policies
//
// The ingestion core never retries or throttles embedding calls. Hosts that
// want either wrap their embedder:
//
//	e = ai.NewRateLimitedEmbedder(e, 10, 2)
//	e = ai.NewRetryingEmbedder(e, 3, 500*time.Millisecond)
//
// or let Config.Wrap apply the configured policies.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().Embed(ctx, "Hello world", nil)
package ai
