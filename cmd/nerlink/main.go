// Command nerlink augments entity-linking benchmark datasets by querying
// a local Ollama server and writing augmented result files.
//
// Usage:
//
//	nerlink --model gemma3:4b --dataset KORE50 [--limit N] [--max-workers N]
//	nerlink --model gemma3:4b --all
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cognicore/nerlink/internal/llm"
	"github.com/cognicore/nerlink/pkg/nerlink"
	"github.com/cognicore/nerlink/pkg/nerlink/config"
	"github.com/cognicore/nerlink/pkg/nerlink/dataset"
	"github.com/cognicore/nerlink/pkg/nerlink/results"
	"github.com/cognicore/nerlink/pkg/nerlink/store"
	"github.com/cognicore/nerlink/pkg/nerlink/store/sqlite"
)

// Exit codes: 0 success, 1 configuration error, 2 one or more dataset
// runs failed.
const (
	exitOK     = 0
	exitConfig = 1
	exitFailed = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nerlink", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  = fs.String("config", "", "Optional YAML config file")
		model       = fs.String("model", "gemma3:4b", "Ollama model to use")
		datasetName = fs.String("dataset", "", "Specific dataset to process (e.g. KORE50, MSNBCt)")
		all         = fs.Bool("all", false, "Process all datasets in the jsons directory")
		jsonsDir    = fs.String("jsons-dir", "", "Directory containing JSON datasets")
		resultsDir  = fs.String("results-dir", "", "Directory where results are written")
		maxWorkers  = fs.Int("max-workers", 0, "Maximum number of concurrent workers")
		limit       = fs.Int("limit", 0, "Limit the number of samples per dataset (0 = all)")
		mode        = fs.String("mode", "", "Prompting mode: combined, separate or mention")
		window      = fs.Int("window", -1, "Context window bytes around a mention (mention mode, 0 = whole corpus)")
		dbPath      = fs.String("db", "", "Optional SQLite run-history database")
		pull        = fs.Bool("pull", false, "Pull the model before processing")
		timeout     = fs.Int("timeout", 0, "Per-call timeout in seconds")
	)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return exitConfig
		}
	}

	// Flags override the config file.
	if *jsonsDir != "" {
		cfg.Paths.JSONsDir = *jsonsDir
	}
	if *resultsDir != "" {
		cfg.Paths.ResultsDir = *resultsDir
	}
	if *dbPath != "" {
		cfg.Paths.DB = *dbPath
	}
	if *maxWorkers > 0 {
		cfg.Pipeline.MaxWorkers = *maxWorkers
	}
	if *mode != "" {
		cfg.Pipeline.Mode = *mode
	}
	if *window >= 0 {
		cfg.Pipeline.ContextWindow = *window
	}
	if *timeout > 0 {
		cfg.Ollama.TimeoutSeconds = *timeout
	}

	if *datasetName == "" && !*all {
		fmt.Fprintln(stderr, "Error: either --dataset or --all must be specified")
		return exitConfig
	}
	if *datasetName != "" && *all {
		fmt.Fprintln(stderr, "Error: --dataset and --all are mutually exclusive")
		return exitConfig
	}

	runMode, err := nerlink.ParseMode(cfg.Pipeline.Mode)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitConfig
	}

	if _, err := os.Stat(cfg.Paths.JSONsDir); err != nil {
		fmt.Fprintf(stderr, "Error: JSON directory not found: %s\n", cfg.Paths.JSONsDir)
		return exitConfig
	}

	// Resolve the dataset selection before touching the model service so
	// a typo never produces output files.
	var names []string
	if *all {
		names, err = dataset.Names(cfg.Paths.JSONsDir)
		if err != nil || len(names) == 0 {
			fmt.Fprintf(stderr, "Error: no datasets in %s\n", cfg.Paths.JSONsDir)
			return exitConfig
		}
	} else {
		if _, err := os.Stat(filepath.Join(cfg.Paths.JSONsDir, *datasetName+".json")); err != nil {
			available, _ := dataset.Names(cfg.Paths.JSONsDir)
			fmt.Fprintf(stderr, "Error: dataset not found: %s\n", *datasetName)
			fmt.Fprintf(stderr, "Available datasets: %s\n", strings.Join(available, ", "))
			return exitConfig
		}
		names = []string{*datasetName}
	}

	ctx := context.Background()

	fmt.Fprintf(stdout, "Initializing model: %s\n", *model)
	client := llm.New(cfg.Ollama.BaseURL, *model, cfg.Timeout())
	client.MaxRetries = cfg.Ollama.MaxRetries
	client.RetryDelay = cfg.RetryDelay()

	if err := client.Ping(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitFailed
	}
	if *pull {
		fmt.Fprintf(stdout, "Pulling model: %s\n", *model)
		if err := client.Pull(ctx); err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return exitFailed
		}
	}

	var history store.Store
	if cfg.Paths.DB != "" {
		history, err = sqlite.Open(ctx, cfg.Paths.DB)
		if err != nil {
			fmt.Fprintln(stderr, "Error: open run history:", err)
			return exitConfig
		}
		defer history.Close()
	}

	summary := make([]datasetOutcome, 0, len(names))
	for _, name := range names {
		summary = append(summary, processDataset(ctx, cfg, client, runMode, name, *model, *limit, history, stdout, stderr))
	}

	fmt.Fprintln(stdout, "\nProcessing Summary")
	failed := 0
	for _, out := range summary {
		if out.err != nil {
			fmt.Fprintf(stdout, "  %s: FAILED (%v)\n", out.name, out.err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "  %s: %d/%d successful -> %s\n", out.name, out.successful, out.total, out.path)
	}
	if failed > 0 {
		return exitFailed
	}
	return exitOK
}

type datasetOutcome struct {
	name       string
	total      int
	successful int
	path       string
	err        error
}

func processDataset(ctx context.Context, cfg config.Config, client *llm.Client, mode nerlink.Mode,
	name, model string, limit int, history store.Store, stdout, stderr io.Writer) datasetOutcome {

	ds, err := dataset.Open(cfg.Paths.JSONsDir, name)
	if err != nil {
		return datasetOutcome{name: name, err: err}
	}

	fmt.Fprintf(stdout, "\nProcessing dataset: %s (%d samples)\n", name, ds.Len())

	pipe := nerlink.New(nerlink.Options{
		Model:   client,
		Mode:    mode,
		Workers: cfg.Pipeline.MaxWorkers,
		Window:  cfg.Pipeline.ContextWindow,
		OnProgress: func(done, total int) {
			fmt.Fprintf(stderr, "\r  %s: %d/%d", name, done, total)
			if done == total {
				fmt.Fprintln(stderr)
			}
		},
	})

	started := time.Now().UTC()
	run, err := pipe.ProcessDataset(ctx, ds, model, limit)
	if err != nil {
		return datasetOutcome{name: name, err: err}
	}

	path, err := results.Write(cfg.Paths.ResultsDir, run)
	if err != nil {
		return datasetOutcome{name: name, err: err}
	}
	fmt.Fprintf(stdout, "Results saved to: %s\n", path)

	if history != nil {
		rec := store.Run{
			ID:         run.Metadata.RunID,
			Dataset:    run.Metadata.Dataset,
			Model:      run.Metadata.Model,
			Mode:       run.Metadata.Mode,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
			Total:      run.Metadata.TotalSamples,
			Successful: run.Metadata.Successful,
			Failed:     run.Metadata.Failed,
			OutputPath: path,
		}
		if err := history.RecordRun(ctx, rec); err != nil {
			// History is best effort; the result file already exists.
			fmt.Fprintln(stderr, "Warning: record run:", err)
		}
	}

	return datasetOutcome{
		name:       name,
		total:      run.Metadata.TotalSamples,
		successful: run.Metadata.Successful,
		path:       path,
	}
}
