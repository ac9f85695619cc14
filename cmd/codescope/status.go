package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show graph store health and indexing history",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Printf("🔍 Codescope Status\n")
	fmt.Printf("%s\n", strings.Repeat("═", 50))

	fmt.Printf("\n📋 Configuration:\n")
	fmt.Printf("  Graph backend: %s\n", cfg.Graph.Backend)
	if cfg.Graph.Backend == "neo4j" {
		fmt.Printf("  Neo4j URI: %s\n", cfg.Graph.URI)
	}
	fmt.Printf("  LLM provider: %s\n", cfg.LLM.Provider)

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		fmt.Printf("\n❌ Graph store unavailable: %v\n", err)
		return nil
	}
	defer a.Close(ctx)

	fmt.Printf("\n💾 Graph store:\n")
	if err := a.store.HealthCheck(ctx); err != nil {
		fmt.Printf("  Status: ❌ unhealthy (%v)\n", err)
		return nil
	}
	fmt.Printf("  Status: ✅ healthy\n")

	if stats, err := a.store.Statistics(ctx); err == nil {
		fmt.Printf("  Nodes: %d\n", stats.Nodes)
		fmt.Printf("  Edges: %d\n", stats.Edges)
	}

	if a.reports != nil {
		entries, err := a.reports.Recent(5)
		if err == nil && len(entries) > 0 {
			fmt.Printf("\n🗂  Recent index runs:\n")
			for _, e := range entries {
				fmt.Printf("  %s  %s\n", e.SavedAt.Format("2006-01-02 15:04"), e.Report.String())
			}
		}
	}

	return nil
}
