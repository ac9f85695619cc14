package orchestrator

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/agent"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/graph"
	"github.com/codescope/codescope/internal/llm"
	"github.com/codescope/codescope/internal/memory"
)

// fakeLLM serves classification JSON and synthesis text, with switchable
// failure modes
type fakeLLM struct {
	jsonResp     string
	response     string
	failJSON     bool
	failComplete bool
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string, history []llm.Message) (string, error) {
	if f.failComplete {
		return "", errors.LLMService(assert.AnError, "model down")
	}
	return f.response, nil
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	if f.failJSON {
		return "", errors.LLMService(assert.AnError, "model down")
	}
	return f.jsonResp, nil
}

// stubAgent returns a fixed result, an error, or blocks until its
// context expires
type stubAgent struct {
	kind   agent.Kind
	result *agent.Result
	err    error
	block  bool
	calls  atomic.Int32
}

func (s *stubAgent) Kind() agent.Kind { return s.kind }

func (s *stubAgent) Execute(ctx context.Context, task agent.Task, history []llm.Message) (*agent.Result, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	r.Agent = s.kind
	return &r, nil
}

func fastConfig() config.AgentConfig {
	return config.AgentConfig{
		Timeout:     50 * time.Millisecond,
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
		MaxParallel: 3,
	}
}

func simpleClassifier() string {
	return `{"query_type": "simple", "entities": ["Widget"], "intent": "lookup_by_name", "requires_graph_query": true}`
}

func evidenceResult() *agent.Result {
	return &agent.Result{
		Content:    "Widget is a class in app.py.",
		Data:       []graph.Row{{"qualified_name": "app.py:Widget", "kind": "Class"}},
		Confidence: 0.9,
	}
}

func TestAskSimpleQuestion(t *testing.T) {
	model := &fakeLLM{jsonResp: simpleClassifier(), response: "Widget lives in app.py."}
	convo := memory.NewConversation(0)
	gq := &stubAgent{kind: agent.KindGraphQuery, result: evidenceResult()}

	o := New(fastConfig(), model, convo, nil, gq)

	resp, err := o.Ask(context.Background(), "", "Where is Widget defined?")
	require.NoError(t, err)

	assert.Equal(t, "Widget lives in app.py.", resp.Answer)
	assert.Equal(t, []agent.Kind{agent.KindGraphQuery}, resp.AgentsUsed)
	assert.False(t, resp.Degraded)
	assert.False(t, resp.Unsynthesized)
	assert.NotEmpty(t, resp.SessionID, "a session is created when none is given")

	history, err := convo.Recent(context.Background(), resp.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2, "question and answer recorded")
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
}

func TestAskAgentTimeoutDegrades(t *testing.T) {
	model := &fakeLLM{jsonResp: simpleClassifier(), response: "Partial answer from what we have."}
	gq := &stubAgent{kind: agent.KindGraphQuery, block: true}

	o := New(fastConfig(), model, memory.NewConversation(0), nil, gq)

	resp, err := o.Ask(context.Background(), "s1", "Where is Widget defined?")
	require.NoError(t, err, "a timed-out agent degrades the turn, never kills it")

	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Answer)
	assert.Equal(t, int32(2), gq.calls.Load(), "timeout retried up to the budget")
}

func TestAskSynthesisFallbackToRawEvidence(t *testing.T) {
	model := &fakeLLM{jsonResp: simpleClassifier(), failComplete: true}
	gq := &stubAgent{kind: agent.KindGraphQuery, result: evidenceResult()}

	o := New(fastConfig(), model, memory.NewConversation(0), nil, gq)

	resp, err := o.Ask(context.Background(), "s1", "Where is Widget defined?")
	require.NoError(t, err)

	assert.True(t, resp.Unsynthesized)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.Answer, "Widget is a class in app.py.", "raw evidence survives")
}

func TestAskClassifierFallback(t *testing.T) {
	model := &fakeLLM{failJSON: true, response: "Answer built without a classifier."}
	gq := &stubAgent{kind: agent.KindGraphQuery, result: evidenceResult()}

	o := New(fastConfig(), model, memory.NewConversation(0), nil, gq)

	resp, err := o.Ask(context.Background(), "s1", "Where is Widget defined?")
	require.NoError(t, err)

	assert.Equal(t, []agent.Kind{agent.KindGraphQuery}, resp.AgentsUsed,
		"a dead classifier falls back to a simple graph query")
	assert.False(t, resp.Degraded)
}

func TestAskAmbiguityBecomesDisambiguationAnswer(t *testing.T) {
	model := &fakeLLM{jsonResp: simpleClassifier()}
	gq := &stubAgent{
		kind: agent.KindGraphQuery,
		err:  errors.AmbiguousEntity("process", []string{"app.py:process", "lib.py:process"}),
	}

	o := New(fastConfig(), model, memory.NewConversation(0), nil, gq)

	resp, err := o.Ask(context.Background(), "s1", "Who calls process?")
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "app.py:process")
	assert.Contains(t, resp.Answer, "lib.py:process")
	assert.False(t, resp.Degraded, "asking to disambiguate is a complete answer")
	assert.Equal(t, int32(1), gq.calls.Load(), "ambiguity is not retried")
}

func TestAskFatalErrorFailsTurn(t *testing.T) {
	model := &fakeLLM{jsonResp: simpleClassifier()}
	gq := &stubAgent{kind: agent.KindGraphQuery, err: errors.InvalidIntent("broken plan")}

	o := New(fastConfig(), model, memory.NewConversation(0), nil, gq)

	_, err := o.Ask(context.Background(), "s1", "Where is Widget defined?")
	require.Error(t, err)
	assert.Equal(t, errors.TypeInvalidIntent, errors.GetType(err))
}

func TestAskComplexChainsAnalyst(t *testing.T) {
	model := &fakeLLM{
		jsonResp: `{"query_type": "complex", "entities": ["Widget"], "requires_graph_query": true, "requires_code_analysis": true}`,
		response: "Deep explanation.",
	}
	gq := &stubAgent{kind: agent.KindGraphQuery, result: evidenceResult()}
	analyst := &stubAgent{kind: agent.KindCodeAnalyst, result: &agent.Result{Content: "Analysis.", Confidence: 0.8}}

	o := New(fastConfig(), model, memory.NewConversation(0), nil, gq, analyst)

	resp, err := o.Ask(context.Background(), "s1", "Explain how Widget works")
	require.NoError(t, err)

	assert.Equal(t, []agent.Kind{agent.KindGraphQuery, agent.KindCodeAnalyst}, resp.AgentsUsed)
	assert.Equal(t, int32(1), gq.calls.Load())
	assert.Equal(t, int32(1), analyst.calls.Load())
	assert.Equal(t, "Deep explanation.", resp.Answer)
}

func TestAskReindexRoutesToIndexer(t *testing.T) {
	model := &fakeLLM{
		jsonResp: `{"query_type": "simple", "intent": "reindex", "requires_graph_query": false}`,
		response: "Indexing has been kicked off.",
	}
	gq := &stubAgent{kind: agent.KindGraphQuery, result: evidenceResult()}
	idx := &stubAgent{kind: agent.KindIndexer, result: &agent.Result{Content: "Indexing job abc started.", Confidence: 1.0}}

	o := New(fastConfig(), model, memory.NewConversation(0), nil, gq, idx)

	resp, err := o.Ask(context.Background(), "s1", "Please reindex the codebase")
	require.NoError(t, err)

	assert.Equal(t, []agent.Kind{agent.KindIndexer}, resp.AgentsUsed)
	assert.Equal(t, int32(1), idx.calls.Load())
	assert.Equal(t, int32(0), gq.calls.Load(), "a reindex turn never queries the graph")
}

func TestAskEmptyQuestionRejected(t *testing.T) {
	o := New(fastConfig(), &fakeLLM{}, memory.NewConversation(0), nil)

	_, err := o.Ask(context.Background(), "s1", "   ")
	require.Error(t, err)
	assert.Equal(t, errors.TypeValidation, errors.GetType(err))
}

// dispatch must produce the same result set whether a wave runs its
// steps concurrently or one at a time
func TestDispatchParallelMatchesSequential(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Agent: agent.KindGraphQuery},
		{Agent: agent.KindIndexer},
	}}
	c := llm.Classification{Complexity: llm.ComplexitySimple}

	run := func(maxParallel int) []string {
		gq := &stubAgent{kind: agent.KindGraphQuery, result: &agent.Result{Content: "structure"}}
		idx := &stubAgent{kind: agent.KindIndexer, result: &agent.Result{Content: "index status"}}

		cfg := fastConfig()
		cfg.MaxParallel = maxParallel
		o := New(cfg, &fakeLLM{}, memory.NewConversation(0), nil, gq, idx)

		results, err := o.dispatch(context.Background(), plan, "q", c, nil)
		require.NoError(t, err)

		contents := make([]string, 0, len(results))
		for _, r := range results {
			contents = append(contents, r.Content)
		}
		sort.Strings(contents)
		return contents
	}

	assert.Equal(t, run(1), run(3))
}
