// Command sculptor structures a file of text records with an LLM according to
// a YAML-configured schema and writes the results as newline-delimited JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/lmittmann/tint"

	sculptor "github.com/vivaneiona/genkit-sculptor"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sculptor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", DefaultConfigPath, "path to the YAML config")
		inPath     = fs.String("in", "", "input records (csv, json or ndjson)")
		outPath    = fs.String("out", "", "output file (default stdout)")
		mode       = fs.String("mode", "", "override run mode: sync or async")
		workers    = fs.Int("workers", 0, "override worker count for sync mode")
		dryRun     = fs.Bool("dry-run", false, "build requests and print an estimate without calling the model")
		planFormat = fs.String("plan-format", "text", "dry-run report format: text or json")
		verbose    = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{Level: level}))
	slog.SetDefault(logger)

	if *inPath == "" {
		fmt.Fprintln(stderr, "sculptor: -in is required")
		return 2
	}
	cfg, err := Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		return 1
	}
	if *mode != "" {
		cfg.Run.Mode = *mode
	}
	if *workers > 0 {
		cfg.Run.Workers = *workers
	}
	if err := cfg.validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}

	records, err := LoadRecords(*inPath)
	if err != nil {
		logger.Error("Failed to load records", "path", *inPath, "error", err)
		return 1
	}
	logger.Info("Loaded records", "count", len(records), "path", *inPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pipeline, err := newPipeline(ctx, cfg, *dryRun, logger)
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		return 1
	}

	if *dryRun {
		stats, err := pipeline.DryRun(records, cfg.Run.Retries, sculptor.DefaultModelPricing())
		if err != nil {
			logger.Error("Dry run failed", "error", err)
			return 1
		}
		report, err := stats.Format(sculptor.FormatType(*planFormat))
		if err != nil {
			logger.Error("Failed to format plan", "error", err)
			return 1
		}
		fmt.Fprintln(stdout, strings.TrimRight(report, "\n"))
		return 0
	}

	progress := func(done, total int) {
		logger.Info("Processing items", "done", done, "total", total)
	}
	results, err := pipeline.SculptBatch(ctx, records, cfg.runOptions(progress)...)
	if err != nil {
		logger.Error("Batch failed", "error", err)
		return 1
	}

	out := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Error("Failed to create output", "path", *outPath, "error", err)
			return 1
		}
		defer f.Close()
		out = f
	}
	if err := writeResults(out, results); err != nil {
		logger.Error("Failed to write results", "error", err)
		return 1
	}
	return 0
}

// dryRunPipeline is what the command needs from either orchestrator.
type dryRunPipeline interface {
	sculptor.Pipeline
	DryRun(records []sculptor.Record, maxAttempts int, pricing map[string]sculptor.ModelPrice) (*sculptor.ExecutionStats, error)
}

// errDryRun is returned by the transport used for -dry-run, which never calls
// the model.
var errDryRun = errors.New("dry run: model calls are disabled")

func newPipeline(ctx context.Context, cfg Config, dryRun bool, logger *slog.Logger) (dryRunPipeline, error) {
	var transport sculptor.Transport = sculptor.TransportFunc(func(context.Context, *sculptor.Request) (*sculptor.Completion, error) {
		return nil, errDryRun
	})
	if !dryRun {
		var err error
		transport, err = newTransport(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	schema, err := sculptor.NewSchema(cfg.Schema...)
	if err != nil {
		return nil, err
	}
	opts := []func(*sculptor.Options){
		sculptor.WithModel(cfg.Model),
		sculptor.WithSystemPrompt(cfg.SystemPrompt),
		sculptor.WithInstructions(cfg.Instructions),
		sculptor.WithTemplate(cfg.Template),
		sculptor.WithInputKeys(cfg.InputKeys...),
		sculptor.WithLogger(logger),
	}
	if cfg.Run.Mode == "async" {
		return sculptor.NewAsync(transport, schema, opts...)
	}
	return sculptor.New(transport, schema, opts...)
}

func newTransport(ctx context.Context, cfg Config, logger *slog.Logger) (sculptor.Transport, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("environment variable %s is not set", cfg.APIKeyEnv)
	}
	switch cfg.Provider {
	case "gemini":
		return sculptor.NewGenAITransportFromKey(ctx, apiKey, cfg.BaseURL,
			sculptor.WithGenAIParameters(cfg.Parameters),
			sculptor.WithGenAILogger(logger),
		)
	default:
		return sculptor.NewOpenAITransport(sculptor.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: cfg.BaseURL,
			Logger:  logger,
		}), nil
	}
}
