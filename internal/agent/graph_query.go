package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/graph"
	"github.com/codescope/codescope/internal/llm"
)

const intentSystemPrompt = `You map a question about a codebase to one traversal intent.
Valid intents: ancestry, descendants, callers, callees, importers_of, decorated_with, lookup_by_name, doc_search, structure.
Respond with JSON: {"intent": "<intent>", "name": "<entity name the traversal starts from>"}`

// GraphQueryAgent answers structural questions by planning and running
// bounded graph traversals. It never writes to the store.
type GraphQueryAgent struct {
	store   graph.Store
	builder *graph.Builder
	llm     llm.Client
	logger  *slog.Logger
}

// NewGraphQueryAgent creates a graph query agent. The LLM client is used
// only for intent mapping and may be nil, in which case the keyword
// fallback does all the mapping.
func NewGraphQueryAgent(store graph.Store, builder *graph.Builder, client llm.Client) *GraphQueryAgent {
	return &GraphQueryAgent{
		store:   store,
		builder: builder,
		llm:     client,
		logger:  slog.Default().With("component", "agent", "agent", string(KindGraphQuery)),
	}
}

func (a *GraphQueryAgent) Kind() Kind { return KindGraphQuery }

func (a *GraphQueryAgent) Execute(ctx context.Context, task Task, history []llm.Message) (*Result, error) {
	start := time.Now()

	intent, name, err := a.resolveIntent(ctx, task)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("executing traversal", "intent", intent.String(), "name", name)

	// Traversals need a unique starting entity; lookups and doc search
	// take the name as-is.
	target := name
	if needsResolution(intent) {
		resolved, resErr := a.resolveTarget(ctx, intent, name)
		if resErr != nil {
			return nil, resErr
		}
		if resolved == "" {
			return &Result{
				Agent:      KindGraphQuery,
				Content:    fmt.Sprintf("No entity named %q exists in the graph.", name),
				Confidence: 0.3,
				Duration:   time.Since(start),
				Degraded:   true,
			}, nil
		}
		target = resolved
	}

	plan, err := a.builder.Build(intent, target)
	if err != nil {
		return nil, err
	}

	rows, err := a.store.Run(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Agent:      KindGraphQuery,
		Content:    formatRows(intent, target, rows),
		Data:       rows,
		Confidence: 0.9,
		Duration:   time.Since(start),
	}
	if len(rows) == 0 {
		result.Confidence = 0.5
	}
	return result, nil
}

// resolveIntent prefers the classifier's intent, falls back to the LLM,
// then to keyword heuristics. An empty question with no intent is a
// validation error.
func (a *GraphQueryAgent) resolveIntent(ctx context.Context, task Task) (graph.Intent, string, error) {
	name := ""
	if len(task.Entities) > 0 {
		name = task.Entities[0]
	}

	if task.Intent != "" {
		if intent, err := graph.ParseIntent(task.Intent); err == nil {
			if name == "" {
				return 0, "", errors.ValidationError("traversal intent given without an entity")
			}
			return intent, name, nil
		}
		a.logger.Warn("unparseable intent from classifier, remapping", "intent", task.Intent)
	}

	if a.llm != nil {
		if intent, llmName, ok := a.mapWithLLM(ctx, task.Question); ok {
			if name == "" {
				name = llmName
			}
			return intent, name, nil
		}
	}

	intent := heuristicIntent(task.Question)
	if name == "" {
		return 0, "", errors.ValidationError("could not extract an entity from the question")
	}
	return intent, name, nil
}

func (a *GraphQueryAgent) mapWithLLM(ctx context.Context, question string) (graph.Intent, string, bool) {
	raw, err := a.llm.CompleteJSON(ctx, intentSystemPrompt, question)
	if err != nil {
		a.logger.Warn("llm intent mapping failed, using heuristics", "error", err)
		return 0, "", false
	}

	var mapped struct {
		Intent string `json:"intent"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &mapped); err != nil {
		a.logger.Warn("llm intent response unparseable", "error", err)
		return 0, "", false
	}

	intent, err := graph.ParseIntent(mapped.Intent)
	if err != nil {
		return 0, "", false
	}
	return intent, mapped.Name, true
}

// heuristicIntent maps question keywords to an intent when no classifier
// or LLM mapping is available
func heuristicIntent(question string) graph.Intent {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "inherit") || strings.Contains(q, "base class") || strings.Contains(q, "parent class"):
		return graph.IntentAncestry
	case strings.Contains(q, "subclass") || strings.Contains(q, "derived"):
		return graph.IntentDescendants
	case strings.Contains(q, "who calls") || strings.Contains(q, "callers"):
		return graph.IntentCallers
	case strings.Contains(q, "call") || strings.Contains(q, "invoke"):
		return graph.IntentCallees
	case strings.Contains(q, "import"):
		return graph.IntentImportersOf
	case strings.Contains(q, "decorat"):
		return graph.IntentDecoratedWith
	case strings.Contains(q, "contain") || strings.Contains(q, "structure") || strings.Contains(q, "inside"):
		return graph.IntentStructure
	case strings.Contains(q, "doc"):
		return graph.IntentDocSearch
	default:
		return graph.IntentLookupByName
	}
}

// needsResolution reports whether the intent traverses from one unique
// entity
func needsResolution(intent graph.Intent) bool {
	switch intent {
	case graph.IntentLookupByName, graph.IntentDocSearch, graph.IntentDecoratedWith:
		return false
	}
	return true
}

// resolveTarget turns a possibly short name into a unique qualified name.
// Zero matches return empty; multiple matches without an exact qualified
// hit surface the ranked candidates as an ambiguity error.
func (a *GraphQueryAgent) resolveTarget(ctx context.Context, intent graph.Intent, name string) (string, error) {
	plan, err := a.builder.Build(graph.IntentLookupByName, name)
	if err != nil {
		return "", err
	}
	rows, err := a.store.Run(ctx, plan)
	if err != nil {
		return "", err
	}

	cands := graph.RankCandidates(name, graph.CandidatesFromRows(rows))
	cands = filterByIntent(intent, cands)

	switch {
	case len(cands) == 0:
		return "", nil
	case len(cands) == 1 || cands[0].Qualified == name:
		return cands[0].Qualified, nil
	}

	quals := make([]string, 0, len(cands))
	for _, c := range cands {
		quals = append(quals, c.Qualified)
	}
	return "", errors.AmbiguousEntity(name, quals)
}

// filterByIntent drops candidates whose kind the intent cannot start from
func filterByIntent(intent graph.Intent, cands []graph.Candidate) []graph.Candidate {
	var allowed []graph.EntityKind
	switch intent {
	case graph.IntentAncestry, graph.IntentDescendants:
		allowed = []graph.EntityKind{graph.KindClass}
	case graph.IntentCallers, graph.IntentCallees:
		allowed = []graph.EntityKind{graph.KindFunction, graph.KindMethod}
	case graph.IntentImportersOf, graph.IntentStructure:
		allowed = []graph.EntityKind{graph.KindModule}
	default:
		return cands
	}

	out := cands[:0:0]
	for _, c := range cands {
		for _, k := range allowed {
			if c.Kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func formatRows(intent graph.Intent, target string, rows []graph.Row) string {
	if len(rows) == 0 {
		return fmt.Sprintf("%s(%s) returned no results.", intent, target)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%s) returned %d result(s):\n", intent, target, len(rows))
	for _, r := range rows {
		fmt.Fprintf(&sb, "- %s [%s]", r.StringProp("qualified_name"), r.StringProp("kind"))
		if d := r.IntProp("distance"); d > 0 {
			fmt.Fprintf(&sb, " (distance %d)", d)
		}
		if doc := r.StringProp("docstring"); doc != "" {
			fmt.Fprintf(&sb, ": %s", firstLine(doc))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
