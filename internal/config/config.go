package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Graph store configuration
	Graph GraphConfig `yaml:"graph"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Agent execution settings
	Agents AgentConfig `yaml:"agents"`

	// Query bounds
	Query QueryConfig `yaml:"query"`

	// Conversation and cache settings
	Memory MemoryConfig `yaml:"memory"`

	// Indexing settings
	Index IndexConfig `yaml:"index"`
}

type GraphConfig struct {
	Backend  string `yaml:"backend"` // "neo4j", "memory"
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type LLMConfig struct {
	Provider       string  `yaml:"provider"` // "openai", "gemini"
	OpenAIKey      string  `yaml:"openai_key"`
	OpenAIModel    string  `yaml:"openai_model"`
	GeminiKey      string  `yaml:"gemini_key"`
	GeminiModel    string  `yaml:"gemini_model"`
	SynthesisModel string  `yaml:"synthesis_model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	UseKeychain    bool    `yaml:"use_keychain"`
}

type AgentConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	MaxParallel int           `yaml:"max_parallel"`
}

type QueryConfig struct {
	MaxDepth int `yaml:"max_depth"`
	RowLimit int `yaml:"row_limit"`
}

type MemoryConfig struct {
	MaxHistory    int           `yaml:"max_history"`
	HistoryDBPath string        `yaml:"history_db_path"` // empty = in-memory only
	RedisAddr     string        `yaml:"redis_addr"`      // empty = no answer cache
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

type IndexConfig struct {
	ReportDBPath string `yaml:"report_db_path"`
	// RecordsPath is the JSONL record file used when indexing is
	// triggered without an explicit path, e.g. through a chat turn.
	RecordsPath string `yaml:"records_path"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Graph: GraphConfig{
			Backend:  "neo4j",
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			OpenAIModel:    "gpt-4o-mini",
			GeminiModel:    "gemini-2.0-flash",
			SynthesisModel: "gpt-4o-mini",
			Temperature:    0.3,
			MaxTokens:      2000,
			RequestsPerSec: 5,
		},
		Agents: AgentConfig{
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			RetryDelay:  time.Second,
			MaxParallel: 3,
		},
		Query: QueryConfig{
			MaxDepth: 5,
			RowLimit: 200,
		},
		Memory: MemoryConfig{
			MaxHistory: 20,
			CacheTTL:   time.Hour,
		},
		Index: IndexConfig{
			ReportDBPath: filepath.Join(homeDir, ".codescope", "reports.db"),
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("graph", cfg.Graph)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("agents", cfg.Agents)
	v.SetDefault("query", cfg.Query)
	v.SetDefault("memory", cfg.Memory)
	v.SetDefault("index", cfg.Index)

	// Load from environment variables
	v.SetEnvPrefix("CODESCOPE")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codescope")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codescope"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Resolve API keys from keychain when nothing else supplied them
	resolveCredentials(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".codescope", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Graph.User = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Graph.Password = password
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Graph.Database = db
	}
	if backend := os.Getenv("CODESCOPE_GRAPH_BACKEND"); backend != "" {
		cfg.Graph.Backend = backend
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.LLM.OpenAIModel = model
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Memory.RedisAddr = addr
	}

	if timeout := os.Getenv("AGENT_TIMEOUT_SECONDS"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			cfg.Agents.Timeout = time.Duration(secs) * time.Second
		}
	}
	if retries := os.Getenv("AGENT_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil && n >= 0 {
			cfg.Agents.MaxRetries = n
		}
	}
}

// resolveCredentials fills API keys from the OS keychain when env and
// config file provided none.
func resolveCredentials(cfg *Config) {
	if cfg.LLM.OpenAIKey != "" || !cfg.LLM.UseKeychain {
		return
	}

	km := NewKeyringManager()
	if key, err := km.GetAPIKey(); err == nil && key != "" {
		cfg.LLM.OpenAIKey = key
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.Graph.Backend {
	case "neo4j":
		if c.Graph.URI == "" || c.Graph.User == "" || c.Graph.Password == "" {
			return fmt.Errorf("neo4j backend requires uri, user and password (set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD)")
		}
	case "memory":
		// No connection settings required
	default:
		return fmt.Errorf("unknown graph backend: %s", c.Graph.Backend)
	}

	if c.Query.MaxDepth <= 0 {
		return fmt.Errorf("query.max_depth must be positive, got %d", c.Query.MaxDepth)
	}
	if c.Query.RowLimit <= 0 {
		return fmt.Errorf("query.row_limit must be positive, got %d", c.Query.RowLimit)
	}

	return nil
}
