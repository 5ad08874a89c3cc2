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

package frontmatter

import "errors"

var (
	// ErrNoFrontMatter indicates the content does not open with a "---" block.
	ErrNoFrontMatter = errors.New("no front matter")

	// ErrInvalidYAML indicates the front matter block is not valid YAML.
	ErrInvalidYAML = errors.New("invalid front matter yaml")

	// ErrNotMapping indicates the front matter parsed to something other than a mapping.
	ErrNotMapping = errors.New("front matter is not a mapping")
)
