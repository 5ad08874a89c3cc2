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

package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"
)

// DefaultDimensions is the vector size produced by the default behavior.
const DefaultDimensions = 384

// MockEmbedder is a test double for ai.Embedder.
// It is safe for concurrent use and records how it was called.
type MockEmbedder struct {
	mu        sync.Mutex
	embedFunc func(ctx context.Context, text string, metadata map[string]any) ([]float32, error)
	delay     time.Duration
	dims      int

	callCount   int
	inFlight    int
	maxInFlight int
	texts       []string
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dims: DefaultDimensions}
}

// WithEmbedFunc replaces the default behavior. The function runs after the
// configured delay and while the call is counted as in flight.
func (m *MockEmbedder) WithEmbedFunc(fn func(ctx context.Context, text string, metadata map[string]any) ([]float32, error)) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedFunc = fn
	return m
}

// WithDelay makes every call wait d before answering. The wait ends early,
// with ctx.Err(), if ctx is done first.
func (m *MockEmbedder) WithDelay(d time.Duration) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithDimensions sets the size of generated vectors.
func (m *MockEmbedder) WithDimensions(dims int) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dims = dims
	return m
}

// Embed generates a deterministic embedding based on the text hash.
func (m *MockEmbedder) Embed(ctx context.Context, text string, metadata map[string]any) ([]float32, error) {
	m.mu.Lock()
	m.callCount++
	m.inFlight++
	m.maxInFlight = max(m.maxInFlight, m.inFlight)
	m.texts = append(m.texts, text)
	fn, delay, dims := m.embedFunc, m.delay, m.dims
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if fn != nil {
		return fn(ctx, text, metadata)
	}
	return GenerateDeterministicVector(text, dims), nil
}

// CallCount returns the number of times Embed was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// InFlight returns the number of calls currently executing.
func (m *MockEmbedder) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// MaxInFlight returns the highest number of calls observed executing at once.
func (m *MockEmbedder) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Texts returns the texts received so far, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears recorded calls and custom behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.maxInFlight = 0
	m.texts = nil
	m.embedFunc = nil
	m.delay = 0
}

// GenerateDeterministicVector creates a unit-length embedding vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func GenerateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range dim {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 + 0.001
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}
