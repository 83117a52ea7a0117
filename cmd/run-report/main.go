// Command run-report prints recorded pipeline runs from a run-history
// database, newest first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/cognicore/nerlink/pkg/nerlink/store/sqlite"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "Run-history database path (required)")
		datasetName = flag.String("dataset", "", "Only show runs for this dataset")
		limit       = flag.Int("limit", 20, "Maximum number of runs to show (0 = all)")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}

	ctx := context.Background()

	history, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer history.Close()

	runs, err := history.ListRuns(ctx, *datasetName, *limit)
	if err != nil {
		log.Fatal(err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	for _, r := range runs {
		fmt.Printf("%s  %s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  dataset: %s  model: %s  mode: %s\n", r.Dataset, r.Model, r.Mode)
		fmt.Printf("  samples: %d  successful: %d  failed: %d\n", r.Total, r.Successful, r.Failed)
		if r.OutputPath != "" {
			fmt.Printf("  output: %s\n", r.OutputPath)
		}
		fmt.Println()
	}
}
