package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/index"
)

var indexRecordsPath string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index parsed code records into the knowledge graph",
	Long: `Load a JSON-lines file of parsed code entities into the graph.
Indexing is idempotent: re-running over unchanged records updates
existing nodes instead of duplicating them.

Example:
  codescope index --records out/entities.jsonl`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexRecordsPath, "records", "r", "", "JSONL file of parsed code records (default: index.records_path from config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if indexRecordsPath == "" {
		indexRecordsPath = cfg.Index.RecordsPath
	}
	if indexRecordsPath == "" {
		return fmt.Errorf("no record file given: pass --records or set index.records_path")
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	source, err := index.OpenJSONL(indexRecordsPath)
	if err != nil {
		return err
	}
	defer source.Close()

	fmt.Printf("📦 Indexing %s\n", indexRecordsPath)

	jobID, started, err := a.jobs.Start(ctx, source)
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("an indexing job is already running (job %s)", jobID)
	}

	status, err := a.jobs.Wait(ctx, jobID)
	if err != nil {
		return err
	}

	if status.State == index.JobFailed {
		return fmt.Errorf("indexing failed: %s", status.Error)
	}

	r := status.Report
	fmt.Printf("\n✅ Indexing complete (job %s)\n", jobID)
	fmt.Printf("  Nodes: %d created, %d updated\n", r.NodesCreated, r.NodesUpdated)
	fmt.Printf("  Edges: %d created, %d updated, %d skipped\n", r.EdgesCreated, r.EdgesUpdated, r.EdgesSkipped)
	if r.ParseErrors > 0 {
		fmt.Printf("  ⚠️  %d record(s) could not be parsed\n", r.ParseErrors)
	}
	fmt.Printf("  Graph now holds %d nodes\n", status.NodeCount)
	fmt.Printf("  Duration: %.2fs\n", r.Duration.Seconds())

	return nil
}
