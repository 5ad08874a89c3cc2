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

// Package ingestion turns documents into embedding records.
//
// A Pipeline reads a document, extracts its metadata, splits it into
// segments, and embeds every segment through a Scheduler that keeps at most
// K embedding calls in flight. Each call runs under its own deadline; a call
// that fails or times out only drops its own segment. The surviving segments
// are written to the vector store as one batch keyed by document ID and
// ordinal, so re-ingesting a document overwrites its records in place.
//
// Basic usage:
//
//	pipeline, err := ingestion.NewPipeline(store, embedder,
//	    ingestion.WithConcurrency(5),
//	    ingestion.WithTaskTimeout(10*time.Second),
//	    ingestion.WithRoot(root),
//	)
//	if err != nil {
//	    return err
//	}
//
//	sc := scanner.New(root)
//	report := pipeline.Run(ctx, sc.Scan(ctx))
//	fmt.Printf("indexed %d documents, %d failed\n", report.Succeeded(), report.Failed)
//
// With a StateRepository the pipeline remembers the content hash of each
// indexed document, skips unchanged documents, and clears the stale records
// of a document whose content changed.
package ingestion
