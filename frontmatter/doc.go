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

// Package frontmatter extracts document metadata from YAML front matter.
//
// A document carries front matter when it opens with a "---" delimited YAML
// mapping:
//
//	---
//	title: Weekly notes
//	tags: [go, rag]
//	---
//	Body text...
//
// The block is parsed with gopkg.in/yaml.v3 and normalized into core.Metadata.
// The document body is left untouched; the splitter sees the full content.
package frontmatter
