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

// Package watcher re-ingests documents as they change on disk.
//
// It watches a directory tree with fsnotify, debounces the bursts of events
// editors produce, and hands each settled path to the ingestion pipeline:
// created or modified files are processed again, removed or renamed files
// have their records deleted. New subdirectories are watched as they appear.
package watcher
