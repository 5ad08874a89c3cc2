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

// Package config loads brainvault settings from defaults, an optional TOML
// file, a .env file, and the environment.
//
// Every environment variable carries the BRAINVAULT_ prefix, for example
// BRAINVAULT_CONCURRENCY=8 or BRAINVAULT_TASK_TIMEOUT=30s. The unprefixed
// names REPO_PATH, ALLOWED_EXTENSIONS, OLLAMA_URL, MODEL_NAME, and LOG_FILE
// are honored as well.
package config
