package agent

import (
	"context"
	"time"

	"github.com/codescope/codescope/internal/graph"
	"github.com/codescope/codescope/internal/llm"
)

// Kind identifies an agent capability
type Kind string

const (
	KindGraphQuery  Kind = "graph_query"
	KindCodeAnalyst Kind = "code_analyst"
	KindIndexer     Kind = "indexer"
)

// Task is one unit of work dispatched to an agent. Entities and Intent
// come from classification; Payload carries stage-specific inputs such as
// evidence rows from an earlier agent.
type Task struct {
	Question string
	Entities []string
	Intent   string
	Payload  map[string]any
}

// Result is the uniform agent output. Data carries raw evidence rows so
// downstream stages and degraded answers can use them even when Content
// is thin.
type Result struct {
	Agent      Kind
	Content    string
	Data       []graph.Row
	Confidence float64
	Duration   time.Duration
	Degraded   bool
}

// Agent executes tasks against its capability. History gives the agent
// the session's prior turns; implementations may ignore it.
type Agent interface {
	Kind() Kind
	Execute(ctx context.Context, task Task, history []llm.Message) (*Result, error)
}
