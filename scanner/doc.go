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

// Package scanner walks a directory tree and yields the documents eligible
// for ingestion.
//
// Eligibility is decided by file extension against an allow-list, which is
// configuration rather than code. Version-control and dependency directories
// are skipped. The result is a lazy iter.Seq2 so large trees are never held
// in memory, and every call to Scan starts a fresh walk:
//
//	s := scanner.New("notes", scanner.WithExtensions(".md", ".txt"))
//	for path, err := range s.Scan(ctx) {
//	    if err != nil {
//	        log.Println(err)
//	        continue
//	    }
//	    fmt.Println(path)
//	}
package scanner
