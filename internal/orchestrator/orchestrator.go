package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codescope/codescope/internal/agent"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/graph"
	"github.com/codescope/codescope/internal/llm"
	"github.com/codescope/codescope/internal/memory"
)

const classifierSystemPrompt = `You classify questions about a codebase.
Respond with JSON:
{
  "query_type": "simple" | "medium" | "complex",
  "entities": ["<code entities the question mentions>"],
  "intent": "<one of: ancestry, descendants, callers, callees, importers_of, decorated_with, lookup_by_name, doc_search, structure, reindex, or empty>",
  "requires_graph_query": true | false,
  "requires_code_analysis": true | false
}
simple: a single structural fact. medium: structure plus light reasoning. complex: requires reading and explaining code relationships.
reindex: the user asks to rebuild or refresh the index, not a question about the code.`

const synthesisSystemPrompt = `You synthesize a final answer to a question about a codebase
from the findings of specialized agents. Be concrete, cite entity names as given in the
findings, and do not invent entities that the findings do not mention.`

// Orchestrator drives one question turn through classification, planning,
// dispatch, aggregation and synthesis.
type Orchestrator struct {
	cfg    config.AgentConfig
	llm    llm.Client
	agents map[agent.Kind]agent.Agent
	convo  memory.Store
	cache  *memory.AnswerCache
	logger *slog.Logger
}

// New creates an orchestrator over the given agents. The cache may be
// nil; the conversation store may not.
func New(cfg config.AgentConfig, client llm.Client, convo memory.Store, cache *memory.AnswerCache, agents ...agent.Agent) *Orchestrator {
	registry := make(map[agent.Kind]agent.Agent, len(agents))
	for _, a := range agents {
		registry[a.Kind()] = a
	}
	return &Orchestrator{
		cfg:    cfg,
		llm:    client,
		agents: registry,
		convo:  convo,
		cache:  cache,
		logger: slog.Default().With("component", "orchestrator"),
	}
}

// Ask answers one question within a session. A missing session ID starts
// a new session.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, question string) (*Response, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.ValidationError("question must not be empty")
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	state := StateReceived
	o.transition(&state, StateClassifying, sessionID)

	if o.cache != nil {
		if answer, ok := o.cache.Get(ctx, sessionID, question); ok {
			o.transition(&state, StateCompleted, sessionID)
			return &Response{
				Answer:         answer,
				ProcessingTime: time.Since(start),
				Cached:         true,
				SessionID:      sessionID,
			}, nil
		}
	}

	history, err := o.convo.Recent(ctx, sessionID, 0)
	if err != nil {
		o.logger.Warn("failed to load session history", "session", sessionID, "error", err)
	}
	llmHistory := memory.ToLLMMessages(history)

	classification := o.classify(ctx, question)

	o.transition(&state, StatePlanning, sessionID)
	plan := BuildPlan(classification)
	o.logger.Debug("plan built",
		"session", sessionID,
		"complexity", classification.Complexity,
		"steps", len(plan.Steps))

	o.transition(&state, StateDispatching, sessionID)
	results, err := o.dispatch(ctx, plan, question, classification, llmHistory)
	if err != nil {
		if errors.GetType(err) == errors.TypeAmbiguousEntity {
			o.transition(&state, StateCompleted, sessionID)
			return o.finishTurn(ctx, sessionID, question, &Response{
				Answer:         disambiguationAnswer(err),
				AgentsUsed:     plan.Agents(),
				ProcessingTime: time.Since(start),
				SessionID:      sessionID,
			}), nil
		}
		o.transition(&state, StateFailed, sessionID)
		return nil, err
	}

	o.transition(&state, StateAggregating, sessionID)
	degraded := false
	for _, r := range results {
		if r.Degraded {
			degraded = true
		}
	}

	o.transition(&state, StateSynthesizing, sessionID)
	answer, unsynthesized := o.synthesize(ctx, question, results, llmHistory)

	o.transition(&state, StateCompleted, sessionID)
	resp := &Response{
		Answer:         answer,
		AgentsUsed:     plan.Agents(),
		ProcessingTime: time.Since(start),
		Degraded:       degraded || unsynthesized,
		Unsynthesized:  unsynthesized,
		SessionID:      sessionID,
	}

	resp = o.finishTurn(ctx, sessionID, question, resp)
	return resp, nil
}

func (o *Orchestrator) transition(state *State, next State, sessionID string) {
	o.logger.Debug("state transition",
		"session", sessionID,
		"from", state.String(),
		"to", next.String())
	*state = next
}

// classify asks the model to classify the question. Any failure falls
// back to a simple graph query so a dead classifier never blocks a turn.
func (o *Orchestrator) classify(ctx context.Context, question string) llm.Classification {
	fallback := llm.Classification{
		Complexity:      llm.ComplexitySimple,
		NeedsGraphQuery: true,
	}

	if o.llm == nil {
		return fallback
	}

	var classification llm.Classification
	err := llm.WithRetry(ctx, o.retryPolicy(), func() error {
		raw, err := o.llm.CompleteJSON(ctx, classifierSystemPrompt, question)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(llm.StripCodeFence(raw)), &classification)
	})
	if err != nil {
		o.logger.Warn("classification failed, defaulting to simple", "error", err)
		return fallback
	}

	classification.Normalize()
	return classification
}

// dispatch runs the plan's waves. Steps within a wave run concurrently,
// bounded by MaxParallel; later waves receive the evidence rows gathered
// so far. A step that exhausts its retry budget is replaced by a degraded
// placeholder; fatal and ambiguity errors abort the dispatch.
func (o *Orchestrator) dispatch(ctx context.Context, plan Plan, question string, c llm.Classification, history []llm.Message) ([]*agent.Result, error) {
	var (
		mu      sync.Mutex
		results []*agent.Result
	)

	for _, wave := range plan.Waves() {
		evidence := dedupeRows(results)

		g, waveCtx := errgroup.WithContext(ctx)
		g.SetLimit(o.maxParallel())

		for _, step := range wave {
			a, ok := o.agents[step.Agent]
			if !ok {
				return nil, errors.InternalErrorf("planned agent %s is not registered", step.Agent)
			}

			task := agent.Task{
				Question: question,
				Entities: c.Entities,
				Intent:   c.Intent,
				Payload:  map[string]any{},
			}
			if step.DependsOn != "" {
				task.Payload["evidence"] = evidence
			}

			g.Go(func() error {
				result, err := o.runStep(waveCtx, a, task, history)
				if err != nil {
					if errors.IsFatal(err) || errors.GetType(err) == errors.TypeAmbiguousEntity {
						return err
					}
					// Exhausted retries: degrade this capability,
					// keep the turn alive
					o.logger.Warn("agent degraded after retries",
						"agent", string(a.Kind()), "error", err)
					result = &agent.Result{
						Agent:      a.Kind(),
						Content:    fmt.Sprintf("%s was unavailable: %v", a.Kind(), err),
						Confidence: 0,
						Degraded:   true,
					}
				}
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// runStep executes one agent with a per-call timeout and the retry
// policy. Timeouts convert to the agent timeout error type so the retry
// loop treats them as transient.
func (o *Orchestrator) runStep(ctx context.Context, a agent.Agent, task agent.Task, history []llm.Message) (*agent.Result, error) {
	var result *agent.Result

	err := llm.WithRetry(ctx, o.retryPolicy(), func() error {
		stepCtx, cancel := context.WithTimeout(ctx, o.timeout())
		defer cancel()

		r, err := a.Execute(stepCtx, task, history)
		if err != nil {
			if stepCtx.Err() == context.DeadlineExceeded {
				return errors.AgentTimeout(string(a.Kind()), o.timeout())
			}
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// synthesize produces the final answer from agent findings. When the
// model is unavailable the raw evidence goes out instead, flagged as
// unsynthesized, because partial evidence beats no answer.
func (o *Orchestrator) synthesize(ctx context.Context, question string, results []*agent.Result, history []llm.Message) (answer string, unsynthesized bool) {
	if o.llm == nil {
		return rawEvidence(results), true
	}

	var sb strings.Builder
	sb.WriteString("Agent findings:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "\n[%s, confidence %.1f]\n%s\n", r.Agent, r.Confidence, r.Content)
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", question)

	err := llm.WithRetry(ctx, o.retryPolicy(), func() error {
		a, err := o.llm.Complete(ctx, synthesisSystemPrompt, sb.String(), history)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		o.logger.Warn("synthesis failed, returning raw evidence", "error", err)
		return rawEvidence(results), true
	}
	return answer, false
}

// finishTurn records the turn in conversation history and the answer
// cache. Failures here degrade memory, not the answer.
func (o *Orchestrator) finishTurn(ctx context.Context, sessionID, question string, resp *Response) *Response {
	if err := o.convo.Append(ctx, sessionID, memory.Message{Role: llm.RoleUser, Content: question}); err != nil {
		o.logger.Warn("failed to record question", "error", err)
	}
	if err := o.convo.Append(ctx, sessionID, memory.Message{Role: llm.RoleAssistant, Content: resp.Answer}); err != nil {
		o.logger.Warn("failed to record answer", "error", err)
	}

	if o.cache != nil && !resp.Degraded {
		o.cache.Set(ctx, sessionID, question, resp.Answer)
	}
	return resp
}

func (o *Orchestrator) retryPolicy() llm.RetryPolicy {
	policy := llm.RetryPolicy{MaxAttempts: o.cfg.MaxRetries, BaseDelay: o.cfg.RetryDelay}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	return policy
}

func (o *Orchestrator) timeout() time.Duration {
	if o.cfg.Timeout <= 0 {
		return 30 * time.Second
	}
	return o.cfg.Timeout
}

func (o *Orchestrator) maxParallel() int {
	if o.cfg.MaxParallel <= 0 {
		return 3
	}
	return o.cfg.MaxParallel
}

// dedupeRows merges result rows, keeping the first row seen per
// qualified name
func dedupeRows(results []*agent.Result) []graph.Row {
	seen := make(map[string]bool)
	var out []graph.Row
	for _, r := range results {
		for _, row := range r.Data {
			key := row.StringProp("qualified_name")
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, row)
		}
	}
	return out
}

func rawEvidence(results []*agent.Result) string {
	var sb strings.Builder
	sb.WriteString("Synthesis was unavailable; raw agent findings follow.\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "\n[%s]\n%s\n", r.Agent, r.Content)
	}
	return sb.String()
}

func disambiguationAnswer(err error) string {
	var structured *errors.Error
	if !errors.As(err, &structured) {
		return err.Error()
	}

	name, _ := structured.Context["name"].(string)
	candidates, _ := structured.Context["candidates"].([]string)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%q matches more than one entity. Ask again with one of:\n", name)
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	return sb.String()
}
