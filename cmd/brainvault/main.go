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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/brainvault"
	"github.com/poiesic/brainvault/config"
	"github.com/poiesic/brainvault/ingestion"
	"github.com/poiesic/brainvault/watcher"
	"github.com/urfave/cli/v2"
)

const (
	metaConfig  = "config"
	metaLogFile = "logFile"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "brainvault",
		Usage: "Embed a directory of notes into a searchable vector store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				Value:   "brainvault.toml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file instead of stderr",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory of documents to ingest",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (default <root>/.brainvault/db)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Embed every eligible document under the root",
				Action: ingestCommand,
				Flags:  ingestFlags(),
			},
			{
				Name:      "search",
				Usage:     "Find the stored segments closest to a query",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of matches to return",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Ingest the root, then re-ingest documents as they change",
				Action: watchCommand,
				Flags: append(ingestFlags(),
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a changed file is processed",
						Value: watcher.DefaultDebounce,
					},
				),
			},
			{
				Name:      "forget",
				Usage:     "Remove the records of the given documents",
				ArgsUsage: "PATH...",
				Action:    forgetCommand,
			},
			{
				Name:   "prune",
				Usage:  "Remove the records of documents that no longer exist",
				Action: pruneCommand,
			},
		},
	}
}

func ingestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Re-embed documents even when unchanged",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Maximum embedding calls in flight per document",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Deadline for one embedding call",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Documents processed at once",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Text window size in characters",
		},
		&cli.IntFlag{
			Name:  "overlap",
			Usage: "Characters shared by consecutive text windows",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Do not print progress",
		},
	}
}

// setup loads the configuration, applies flag overrides, and installs the logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.App.Metadata = map[string]any{metaConfig: cfg}
	return setupLogger(c, cfg)
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	strs := map[string]*string{
		"log-level":       &cfg.LogLevel,
		"log-file":        &cfg.LogFile,
		"root":            &cfg.Root,
		"db":              &cfg.DBPath,
		"embedding-host":  &cfg.EmbeddingHost,
		"embedding-model": &cfg.EmbeddingModel,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
}

// applyIngestFlags overrides the pipeline settings given on a subcommand.
func applyIngestFlags(c *cli.Context, cfg *config.Config) error {
	ints := map[string]*int{
		"concurrency": &cfg.Concurrency,
		"workers":     &cfg.Workers,
		"chunk-size":  &cfg.ChunkSize,
		"overlap":     &cfg.Overlap,
	}
	for name, dst := range ints {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	if c.IsSet("timeout") {
		cfg.TaskTimeout = c.Duration("timeout")
	}
	return cfg.Validate()
}

func setupLogger(c *cli.Context, cfg *config.Config) error {
	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.LogLevel)
	}

	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		c.App.Metadata[metaLogFile] = f
		w = f
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func teardown(c *cli.Context) error {
	if f, ok := c.App.Metadata[metaLogFile].(*os.File); ok {
		return f.Close()
	}
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata[metaConfig].(*config.Config)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}

func openVault(c *cli.Context) (*brainvault.Vault, error) {
	v, err := brainvault.Open(configFrom(c))
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	return v, nil
}

func ingestCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configFrom(c)
	if err := applyIngestFlags(c, cfg); err != nil {
		return err
	}

	v, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	return runIngest(ctx, c, v)
}

func runIngest(ctx context.Context, c *cli.Context, v *brainvault.Vault) error {
	cfg := v.Config()
	fmt.Fprintf(c.App.ErrWriter, "Root: %s\n", cfg.Root)
	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.DBPath)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s (%s)\n\n", cfg.EmbeddingModel, cfg.EmbeddingHost)

	var progress io.Writer
	if !c.Bool("quiet") {
		progress = c.App.ErrWriter
	}

	report, err := v.Ingest(ctx, c.Bool("force"), progress)
	if report != nil {
		printReport(c.App.Writer, report)
	}
	return err
}

func printReport(w io.Writer, report *ingestion.BatchReport) {
	fmt.Fprintf(w, "Indexed %d, partial %d, skipped %d, failed %d documents (%d records) in %s\n",
		report.Indexed, report.Partial, report.Skipped, report.Failed, report.Records,
		report.Duration.Round(time.Millisecond))
	for _, err := range report.Errors {
		fmt.Fprintf(w, "  %v\n", err)
	}
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	v, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	matches, err := v.Search(c.Context, query, c.Int("top-k"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(c.App.Writer, "%d: [%0.3f] %s\n", i, m.Score, m.ID)
		fmt.Fprintf(c.App.Writer, "   %s\n", preview(m.Content, 200))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configFrom(c)
	if err := applyIngestFlags(c, cfg); err != nil {
		return err
	}

	v, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	if err := runIngest(ctx, c, v); err != nil && ctx.Err() == nil {
		slog.Error("initial ingestion finished with errors", "err", err)
	}

	pipeline, err := v.NewPipeline()
	if err != nil {
		return err
	}
	w, err := v.NewWatcher(pipeline, watcher.WithDebounce(c.Duration("debounce")))
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func forgetCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one path is required")
	}

	v, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	for _, path := range c.Args().Slice() {
		removed, err := v.Forget(c.Context, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: removed %d records\n", path, removed)
	}
	return nil
}

func pruneCommand(c *cli.Context) error {
	v, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	pruned, err := v.Prune(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Pruned %d documents\n", pruned)
	return nil
}
