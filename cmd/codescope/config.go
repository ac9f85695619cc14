package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect Codescope configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long:  `Print the merged configuration (defaults, config file, environment) with secrets redacted.`,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	redacted := *cfg
	if redacted.Graph.Password != "" {
		redacted.Graph.Password = "********"
	}
	if redacted.LLM.OpenAIKey != "" {
		redacted.LLM.OpenAIKey = "********"
	}
	if redacted.LLM.GeminiKey != "" {
		redacted.LLM.GeminiKey = "********"
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	fmt.Print(string(out))
	return nil
}
