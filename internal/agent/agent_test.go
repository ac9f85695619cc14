package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/graph"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/llm"
)

// fakeLLM returns canned responses, or a service error when failing
type fakeLLM struct {
	response string
	jsonResp string
	failing  bool
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string, history []llm.Message) (string, error) {
	f.calls++
	if f.failing {
		return "", errors.LLMService(assert.AnError, "model unavailable")
	}
	return f.response, nil
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	if f.failing {
		return "", errors.LLMService(assert.AnError, "model unavailable")
	}
	return f.jsonResp, nil
}

// seedStore indexes a small project: two classes in lib.py where
// Handler inherits Base, plus process functions in both modules that
// share the short name.
func seedStore(t *testing.T) graph.Store {
	t.Helper()
	store := graph.NewMemoryStore()

	records := []index.Record{
		{Kind: graph.KindModule, Qualified: "lib.py"},
		{Kind: graph.KindModule, Qualified: "app.py",
			Relations: []index.Relation{
				{Kind: graph.RelImports, TargetKind: graph.KindModule, Target: "lib.py"},
			}},
		{Kind: graph.KindClass, Qualified: "lib.py:Base",
			Parent: &index.Owner{Kind: graph.KindModule, Qualified: "lib.py"},
			Props:  map[string]any{"docstring": "Base handler contract"}},
		{Kind: graph.KindClass, Qualified: "lib.py:Handler",
			Parent: &index.Owner{Kind: graph.KindModule, Qualified: "lib.py"},
			Relations: []index.Relation{
				{Kind: graph.RelInheritsFrom, TargetKind: graph.KindClass, Target: "lib.py:Base"},
			}},
		{Kind: graph.KindFunction, Qualified: "lib.py:process",
			Parent: &index.Owner{Kind: graph.KindModule, Qualified: "lib.py"}},
		{Kind: graph.KindFunction, Qualified: "app.py:process",
			Parent: &index.Owner{Kind: graph.KindModule, Qualified: "app.py"},
			Relations: []index.Relation{
				{Kind: graph.RelCalls, TargetKind: graph.KindFunction, Target: "lib.py:process"},
			}},
	}

	_, err := index.NewIndexer(store).Run(context.Background(), index.NewSliceSource(records))
	require.NoError(t, err)
	return store
}

func newGraphAgent(store graph.Store, client llm.Client) *GraphQueryAgent {
	return NewGraphQueryAgent(store, graph.NewBuilder(0, 0), client)
}

func TestGraphQueryExplicitIntent(t *testing.T) {
	store := seedStore(t)
	a := newGraphAgent(store, nil)

	result, err := a.Execute(context.Background(), Task{
		Question: "What does Handler inherit from?",
		Entities: []string{"Handler"},
		Intent:   "ancestry",
	}, nil)
	require.NoError(t, err)

	assert.False(t, result.Degraded)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "lib.py:Base", result.Data[0].StringProp("qualified_name"))
	assert.Contains(t, result.Content, "lib.py:Base")
}

func TestGraphQueryAmbiguousEntity(t *testing.T) {
	store := seedStore(t)
	a := newGraphAgent(store, nil)

	_, err := a.Execute(context.Background(), Task{
		Question: "Who calls process?",
		Entities: []string{"process"},
		Intent:   "callers",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.TypeAmbiguousEntity, errors.GetType(err))

	var structured *errors.Error
	require.ErrorAs(t, err, &structured)
	cands, _ := structured.Context["candidates"].([]string)
	assert.Equal(t, []string{"app.py:process", "lib.py:process"}, cands, "ranked candidates surface to the caller")
}

func TestGraphQueryExactQualifiedNameDisambiguates(t *testing.T) {
	store := seedStore(t)
	a := newGraphAgent(store, nil)

	result, err := a.Execute(context.Background(), Task{
		Entities: []string{"lib.py:process"},
		Intent:   "callers",
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "app.py:process", result.Data[0].StringProp("qualified_name"))
}

func TestGraphQueryUnknownEntityDegrades(t *testing.T) {
	store := seedStore(t)
	a := newGraphAgent(store, nil)

	result, err := a.Execute(context.Background(), Task{
		Entities: []string{"Ghost"},
		Intent:   "ancestry",
	}, nil)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Contains(t, result.Content, "Ghost")
}

func TestGraphQueryLLMFallbackToHeuristics(t *testing.T) {
	store := seedStore(t)
	a := newGraphAgent(store, &fakeLLM{failing: true})

	result, err := a.Execute(context.Background(), Task{
		Question: "What does Handler inherit from?",
		Entities: []string{"Handler"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 1, "heuristics map 'inherit from' questions")
	assert.Equal(t, "lib.py:Base", result.Data[0].StringProp("qualified_name"))
}

func TestGraphQueryLLMIntentMapping(t *testing.T) {
	store := seedStore(t)
	a := newGraphAgent(store, &fakeLLM{jsonResp: `{"intent": "importers_of", "name": "lib.py"}`})

	result, err := a.Execute(context.Background(), Task{
		Question: "Which modules pull in lib.py?",
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "app.py", result.Data[0].StringProp("qualified_name"))
}

func TestHeuristicIntent(t *testing.T) {
	tests := []struct {
		question string
		want     graph.Intent
	}{
		{"What does Widget inherit from?", graph.IntentAncestry},
		{"List the subclasses of Base", graph.IntentDescendants},
		{"who calls process?", graph.IntentCallers},
		{"What functions does main invoke?", graph.IntentCallees},
		{"Which modules import utils?", graph.IntentImportersOf},
		{"What is decorated with @cached?", graph.IntentDecoratedWith},
		{"What is inside app.py?", graph.IntentStructure},
		{"Tell me about Widget", graph.IntentLookupByName},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, heuristicIntent(tt.question), tt.question)
	}
}

func TestCodeAnalystInsufficientContext(t *testing.T) {
	store := seedStore(t)
	model := &fakeLLM{response: "should not be called"}
	a := NewCodeAnalystAgent(store, graph.NewBuilder(0, 0), model)

	result, err := a.Execute(context.Background(), Task{
		Question: "Explain the Ghost class",
		Entities: []string{"Ghost"},
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.InDelta(t, 0.1, result.Confidence, 0.001)
	assert.Equal(t, 0, model.calls, "no LLM call without evidence")
}

func TestCodeAnalystAnswersFromEvidence(t *testing.T) {
	store := seedStore(t)
	model := &fakeLLM{response: "Base defines the handler contract."}
	a := NewCodeAnalystAgent(store, graph.NewBuilder(0, 0), model)

	result, err := a.Execute(context.Background(), Task{
		Question: "What is Base for?",
		Entities: []string{"Base"},
	}, nil)
	require.NoError(t, err)

	assert.False(t, result.Degraded)
	assert.Equal(t, "Base defines the handler contract.", result.Content)
	assert.NotEmpty(t, result.Data, "looked-up evidence rides along")
}

func TestCodeAnalystPropagatesLLMFailure(t *testing.T) {
	store := seedStore(t)
	a := NewCodeAnalystAgent(store, graph.NewBuilder(0, 0), &fakeLLM{failing: true})

	_, err := a.Execute(context.Background(), Task{
		Question: "What is Base for?",
		Entities: []string{"Base"},
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err), "the orchestrator retries service failures")
}

func TestIndexerAgentStartAndStatus(t *testing.T) {
	store := graph.NewMemoryStore()
	jobs := index.NewJobManager(store, nil)
	a := NewIndexerAgent(jobs, "")
	ctx := context.Background()

	records := []index.Record{{Kind: graph.KindModule, Qualified: "m.py"}}
	result, err := a.Execute(ctx, Task{
		Payload: map[string]any{"source": index.Source(index.NewSliceSource(records))},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "started")

	current := jobs.Current()
	require.NotNil(t, current)
	_, err = jobs.Wait(ctx, current.ID)
	require.NoError(t, err)

	status, err := a.Execute(ctx, Task{
		Payload: map[string]any{"job_id": current.ID},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, status.Content, "done")
}

func TestIndexerAgentUsesConfiguredRecordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	content := `{"kind":"Module","qualified":"m.py"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	jobs := index.NewJobManager(graph.NewMemoryStore(), nil)
	a := NewIndexerAgent(jobs, path)
	ctx := context.Background()

	// A chat-routed reindex carries no payload; the configured record
	// file fills in
	result, err := a.Execute(ctx, Task{Payload: map[string]any{}}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "started")

	current := jobs.Current()
	require.NotNil(t, current)
	status, err := jobs.Wait(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, index.JobDone, status.State)
	require.NotNil(t, status.Report)
	assert.Equal(t, 1, status.Report.NodesCreated)
}

func TestIndexerAgentRejectsEmptyPayload(t *testing.T) {
	a := NewIndexerAgent(index.NewJobManager(graph.NewMemoryStore(), nil), "")

	_, err := a.Execute(context.Background(), Task{Payload: map[string]any{}}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.TypeValidation, errors.GetType(err))
}
