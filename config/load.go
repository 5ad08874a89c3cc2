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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BRAINVAULT_"

// fileConfig mirrors Config in the TOML file. Unset keys leave the
// corresponding Config field alone.
type fileConfig struct {
	Root              *string  `toml:"root"`
	DBPath            *string  `toml:"db_path"`
	Extensions        []string `toml:"extensions"`
	EmbeddingHost     *string  `toml:"embedding_host"`
	EmbeddingModel    *string  `toml:"embedding_model"`
	Token             *string  `toml:"token"`
	ChunkSize         *int     `toml:"chunk_size"`
	Overlap           *int     `toml:"overlap"`
	Concurrency       *int     `toml:"concurrency"`
	TaskTimeout       *string  `toml:"task_timeout"`
	Workers           *int     `toml:"workers"`
	RequestsPerSecond *float64 `toml:"requests_per_second"`
	MaxAttempts       *int     `toml:"max_attempts"`
	RetryDelay        *string  `toml:"retry_delay"`
	LogLevel          *string  `toml:"log_level"`
	LogFile           *string  `toml:"log_file"`
	TopK              *int     `toml:"top_k"`
}

// Load builds a Config from, in increasing precedence: the defaults, the TOML
// file at path, a .env file in the working directory, and the process
// environment. Missing files are skipped; path may be empty.
func Load(path string) (*Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, dotenvPath string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	dotenv, err := godotenv.Read(dotenvPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigFile, dotenvPath, err)
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFile, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigFile, path, err)
	}

	setString(&cfg.Root, fc.Root)
	setString(&cfg.DBPath, fc.DBPath)
	if fc.Extensions != nil {
		cfg.Extensions = fc.Extensions
	}
	setString(&cfg.EmbeddingHost, fc.EmbeddingHost)
	setString(&cfg.EmbeddingModel, fc.EmbeddingModel)
	setString(&cfg.Token, fc.Token)
	setInt(&cfg.ChunkSize, fc.ChunkSize)
	setInt(&cfg.Overlap, fc.Overlap)
	setInt(&cfg.Concurrency, fc.Concurrency)
	setInt(&cfg.Workers, fc.Workers)
	setInt(&cfg.MaxAttempts, fc.MaxAttempts)
	setInt(&cfg.TopK, fc.TopK)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *fc.RequestsPerSecond
	}
	if err := setDuration(&cfg.TaskTimeout, fc.TaskTimeout, "task_timeout"); err != nil {
		return err
	}
	return setDuration(&cfg.RetryDelay, fc.RetryDelay, "retry_delay")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, key string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigFile, key, err)
	}
	*dst = d
	return nil
}

// legacyEnv maps older variable names onto the prefixed ones. The prefixed
// variable wins when both are set.
var legacyEnv = map[string]string{
	"ROOT":            "REPO_PATH",
	"EXTENSIONS":      "ALLOWED_EXTENSIONS",
	"EMBEDDING_HOST":  "OLLAMA_URL",
	"EMBEDDING_MODEL": "MODEL_NAME",
	"LOG_FILE":        "LOG_FILE",
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			return v, true
		}
		if legacy, ok := legacyEnv[name]; ok {
			return lookup(legacy)
		}
		return "", false
	}

	strs := map[string]*string{
		"ROOT":            &cfg.Root,
		"DB_PATH":         &cfg.DBPath,
		"EMBEDDING_HOST":  &cfg.EmbeddingHost,
		"EMBEDDING_MODEL": &cfg.EmbeddingModel,
		"TOKEN":           &cfg.Token,
		"LOG_LEVEL":       &cfg.LogLevel,
		"LOG_FILE":        &cfg.LogFile,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CHUNK_SIZE":   &cfg.ChunkSize,
		"OVERLAP":      &cfg.Overlap,
		"CONCURRENCY":  &cfg.Concurrency,
		"WORKERS":      &cfg.Workers,
		"MAX_ATTEMPTS": &cfg.MaxAttempts,
		"TOP_K":        &cfg.TopK,
	}
	for name, dst := range ints {
		v, ok := get(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrInvalidEnv, EnvPrefix, name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"TASK_TIMEOUT": &cfg.TaskTimeout,
		"RETRY_DELAY":  &cfg.RetryDelay,
	}
	for name, dst := range durations {
		v, ok := get(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrInvalidEnv, EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := get("REQUESTS_PER_SECOND"); ok {
		rps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %sREQUESTS_PER_SECOND: %w", ErrInvalidEnv, EnvPrefix, err)
		}
		cfg.RequestsPerSecond = rps
	}

	if v, ok := get("EXTENSIONS"); ok {
		cfg.Extensions = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
