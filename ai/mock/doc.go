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

// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	vector, err := embedder.Embed(ctx, "test", nil)
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder().
//	    WithDelay(50 * time.Millisecond).
//	    WithEmbedFunc(func(ctx context.Context, text string, md map[string]any) ([]float32, error) {
//	        return []float32{0.1, 0.2, 0.3}, nil
//	    })
//
//	// Assertions
//	count := embedder.CallCount()
//	peak := embedder.MaxInFlight()
//
// # Default Behavior
//
// MockEmbedder returns deterministic unit vectors derived from an FNV hash of
// the text, so identical text always embeds identically. It is safe for
// concurrent use and tracks how many calls run at once.
package mock
