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

// Package search answers free-text queries against ingested documents.
//
// A query is embedded with the same embedder used at ingestion time and the
// vector store returns the closest stored segments:
//
//	searcher, err := search.NewSearcher(store, embedder)
//	if err != nil {
//	    return err
//	}
//	matches, err := searcher.FindSimilar(ctx, "how do I configure retries", 5)
package search
