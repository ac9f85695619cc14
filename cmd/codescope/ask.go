package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed codebase",
	Long: `Ask a natural-language question about the indexed codebase.

Examples:
  codescope ask "What does PaymentHandler inherit from?"
  codescope ask "Who calls validate_token?"
  codescope ask --session refactor "And who calls those callers?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session ID for follow-up questions")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := strings.Join(args, " ")

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	resp, err := a.orch.Ask(ctx, askSession, question)
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)

	fmt.Printf("\n%s\n", strings.Repeat("─", 50))
	fmt.Printf("Session: %s\n", resp.SessionID)
	if len(resp.AgentsUsed) > 0 {
		kinds := make([]string, 0, len(resp.AgentsUsed))
		for _, k := range resp.AgentsUsed {
			kinds = append(kinds, string(k))
		}
		fmt.Printf("Agents: %s\n", strings.Join(kinds, ", "))
	}
	fmt.Printf("Time: %.2fs\n", resp.ProcessingTime.Seconds())
	if resp.Cached {
		fmt.Println("(served from cache)")
	}
	if resp.Degraded {
		fmt.Println("⚠️  Partial answer: some agents or synthesis were unavailable.")
	}

	return nil
}
