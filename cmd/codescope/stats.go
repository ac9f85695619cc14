package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/graph"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge graph statistics by entity and relation kind",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	stats, err := a.store.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("📊 Knowledge Graph Statistics\n")
	fmt.Printf("%s\n", strings.Repeat("═", 50))

	fmt.Printf("\nNodes (%d total):\n", stats.Nodes)
	for _, kind := range graph.EntityKinds() {
		if count := stats.NodesByKind[kind]; count > 0 {
			fmt.Printf("  %-12s %d\n", kind, count)
		}
	}

	fmt.Printf("\nEdges (%d total):\n", stats.Edges)
	for _, kind := range graph.RelationKinds() {
		if count := stats.EdgesByKind[kind]; count > 0 {
			fmt.Printf("  %-15s %d\n", kind, count)
		}
	}

	if stats.Nodes == 0 {
		fmt.Println("\nThe graph is empty. Run 'codescope index' first.")
	}

	return nil
}
