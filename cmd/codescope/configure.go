package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codescope/codescope/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive setup wizard (stores API keys in the OS keychain)",
	Long: `Walk through Codescope configuration step by step.

This will configure:
1. LLM provider (openai or gemini)
2. API key, stored in the OS keychain rather than plaintext
3. Graph store connection (Neo4j)`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println("🔧 Codescope Configuration Wizard")
	fmt.Println(strings.Repeat("━", 40))
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	km := config.NewKeyringManager()

	// Step 1: provider
	fmt.Printf("Step 1/3: LLM provider [openai/gemini] (current: %s): ", cfg.LLM.Provider)
	provider, _ := reader.ReadString('\n')
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = cfg.LLM.Provider
	}
	if provider != "openai" && provider != "gemini" {
		return fmt.Errorf("unknown provider: %s", provider)
	}

	// Step 2: API key, read without echo
	fmt.Printf("Step 2/3: %s API key (input hidden, empty keeps current): ", provider)
	keyBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read api key: %w", err)
	}

	apiKey := strings.TrimSpace(string(keyBytes))
	if apiKey != "" {
		if provider == "gemini" {
			err = km.SaveGeminiKey(apiKey)
		} else {
			err = km.SaveAPIKey(apiKey)
		}
		if err != nil {
			fmt.Printf("⚠️  Keychain unavailable (%v)\n", err)
			fmt.Println("   Set the key via OPENAI_API_KEY / GEMINI_API_KEY instead.")
		} else {
			fmt.Println("✅ API key stored in OS keychain")
		}
	}

	// Step 3: Neo4j connection
	fmt.Printf("Step 3/3: Neo4j URI (current: %s): ", cfg.Graph.URI)
	uri, _ := reader.ReadString('\n')
	uri = strings.TrimSpace(uri)
	if uri == "" {
		uri = cfg.Graph.URI
	}

	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  provider: %s\n", provider)
	fmt.Printf("  neo4j: %s\n", uri)
	fmt.Println()
	fmt.Println("Put persistent settings in .codescope/config.yaml, for example:")
	fmt.Println()
	fmt.Printf("  llm:\n    provider: %s\n    use_keychain: true\n", provider)
	fmt.Printf("  graph:\n    backend: neo4j\n    uri: %s\n", uri)
	fmt.Println()
	fmt.Println("The Neo4j password is read from NEO4J_PASSWORD.")

	return nil
}
