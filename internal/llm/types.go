package llm

import (
	"strings"
)

// Message is one turn of an LLM conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Classification is the structured output of the question classifier.
// Field tags match the JSON schema given to the model.
type Classification struct {
	Complexity        string   `json:"query_type"`
	Entities          []string `json:"entities"`
	Intent            string   `json:"intent"`
	NeedsGraphQuery   bool     `json:"requires_graph_query"`
	NeedsCodeAnalysis bool     `json:"requires_code_analysis"`
}

const (
	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// IntentReindex marks a request to rebuild the index rather than a
// question about the graph. The planner routes it to the indexer agent.
const IntentReindex = "reindex"

// Normalize coerces model output onto the known complexity values.
// Anything unrecognized degrades to simple rather than failing the turn.
func (c *Classification) Normalize() {
	c.Complexity = strings.ToLower(strings.TrimSpace(c.Complexity))
	switch c.Complexity {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
	default:
		c.Complexity = ComplexitySimple
	}
}

// StripCodeFence removes a markdown code fence around a JSON payload.
// Models wrap JSON in ```json fences often enough that every structured
// response goes through this.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
