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

// Package splitter cuts document content into segments for embedding.
//
// Fenced code regions (delimited by triple backticks) are kept whole as
// single code segments. All other text is cut into fixed-size, overlapping
// character windows. Segments come out in the order they appear in the
// document and carry the document's metadata plus a chunk_type key.
//
//	s, err := splitter.New(splitter.WithMaxSize(500), splitter.WithOverlap(50))
//	if err != nil {
//	    return err // *InvalidParametersError
//	}
//	segments, err := s.Split(content, metadata)
package splitter
