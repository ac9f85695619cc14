package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codescope/codescope/internal/graph"
	"github.com/codescope/codescope/internal/llm"
)

const analystSystemPrompt = `You are a code analyst answering questions about a codebase.
You are given structural evidence extracted from a knowledge graph: entities with their
kinds, signatures, docstrings and relationships. Ground every claim in that evidence.
If the evidence does not support an answer, say so instead of guessing.`

// CodeAnalystAgent reasons over graph evidence with an LLM. It depends on
// evidence gathered by the graph query stage plus entity lookups of its
// own; with neither it degrades instead of hallucinating.
type CodeAnalystAgent struct {
	store   graph.Store
	builder *graph.Builder
	llm     llm.Client
	logger  *slog.Logger
}

// NewCodeAnalystAgent creates a code analyst agent
func NewCodeAnalystAgent(store graph.Store, builder *graph.Builder, client llm.Client) *CodeAnalystAgent {
	return &CodeAnalystAgent{
		store:   store,
		builder: builder,
		llm:     client,
		logger:  slog.Default().With("component", "agent", "agent", string(KindCodeAnalyst)),
	}
}

func (a *CodeAnalystAgent) Kind() Kind { return KindCodeAnalyst }

func (a *CodeAnalystAgent) Execute(ctx context.Context, task Task, history []llm.Message) (*Result, error) {
	start := time.Now()

	evidence := evidenceFromPayload(task.Payload)
	evidence = append(evidence, a.lookupEntities(ctx, task.Entities)...)

	if len(evidence) == 0 {
		a.logger.Warn("no evidence available, degrading", "entities", task.Entities)
		return &Result{
			Agent:      KindCodeAnalyst,
			Content:    "Insufficient context: none of the referenced entities exist in the graph and no evidence was supplied.",
			Confidence: 0.1,
			Duration:   time.Since(start),
			Degraded:   true,
		}, nil
	}

	prompt := buildAnalystPrompt(task.Question, evidence)
	answer, err := a.llm.Complete(ctx, analystSystemPrompt, prompt, history)
	if err != nil {
		return nil, err
	}

	return &Result{
		Agent:      KindCodeAnalyst,
		Content:    answer,
		Data:       evidence,
		Confidence: 0.8,
		Duration:   time.Since(start),
	}, nil
}

// evidenceFromPayload pulls rows an earlier stage stashed on the task
func evidenceFromPayload(payload map[string]any) []graph.Row {
	if payload == nil {
		return nil
	}
	rows, _ := payload["evidence"].([]graph.Row)
	return rows
}

// lookupEntities fetches docstrings and signatures for each named entity.
// Lookup failures are logged and skipped; the analyst works with whatever
// resolves.
func (a *CodeAnalystAgent) lookupEntities(ctx context.Context, entities []string) []graph.Row {
	var out []graph.Row
	for _, name := range entities {
		plan, err := a.builder.Build(graph.IntentLookupByName, name)
		if err != nil {
			continue
		}
		rows, err := a.store.Run(ctx, plan)
		if err != nil {
			a.logger.Warn("entity lookup failed", "entity", name, "error", err)
			continue
		}
		out = append(out, rows...)
	}
	return out
}

func buildAnalystPrompt(question string, evidence []graph.Row) string {
	var sb strings.Builder
	sb.WriteString("Evidence from the code knowledge graph:\n")
	for _, r := range evidence {
		fmt.Fprintf(&sb, "- %s [%s]", r.StringProp("qualified_name"), r.StringProp("kind"))
		if sig := r.StringProp("signature"); sig != "" {
			fmt.Fprintf(&sb, " signature: %s", sig)
		}
		if doc := r.StringProp("docstring"); doc != "" {
			fmt.Fprintf(&sb, " doc: %s", doc)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", question)
	return sb.String()
}
