package main

import (
	"context"
	"fmt"

	"github.com/codescope/codescope/internal/agent"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/graph"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/llm"
	"github.com/codescope/codescope/internal/memory"
	"github.com/codescope/codescope/internal/orchestrator"
)

// app bundles the wired components behind one lifecycle
type app struct {
	store   graph.Store
	builder *graph.Builder
	jobs    *index.JobManager
	reports *index.ReportStore
	convo   memory.Store
	cache   *memory.AnswerCache
	orch    *orchestrator.Orchestrator
}

// newStore opens the configured graph backend
func newStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	switch cfg.Graph.Backend {
	case "memory":
		return graph.NewMemoryStore(), nil
	case "neo4j", "":
		store, err := graph.NewNeo4jStore(ctx,
			cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			return nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			logger.WithError(err).Warn("Schema initialization incomplete")
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown graph backend: %s", cfg.Graph.Backend)
	}
}

// newApp wires the full question-answering stack. needLLM is false for
// commands that only touch the store.
func newApp(ctx context.Context, cfg *config.Config, needLLM bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		store:   store,
		builder: graph.NewBuilder(cfg.Query.MaxDepth, cfg.Query.RowLimit),
	}

	if reports, err := index.OpenReportStore(cfg.Index.ReportDBPath); err != nil {
		logger.WithError(err).Warn("Report history unavailable")
	} else {
		a.reports = reports
	}
	a.jobs = index.NewJobManager(store, a.reports)

	if !needLLM {
		return a, nil
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if cfg.Memory.HistoryDBPath != "" {
		convo, err := memory.OpenSQLite(cfg.Memory.HistoryDBPath, cfg.Memory.MaxHistory)
		if err != nil {
			logger.WithError(err).Warn("Persistent history unavailable, using in-memory sessions")
			a.convo = memory.NewConversation(cfg.Memory.MaxHistory)
		} else {
			a.convo = convo
		}
	} else {
		a.convo = memory.NewConversation(cfg.Memory.MaxHistory)
	}

	if cfg.Memory.RedisAddr != "" {
		cache, err := memory.NewAnswerCache(cfg.Memory.RedisAddr, cfg.Memory.CacheTTL)
		if err != nil {
			logger.WithError(err).Warn("Answer cache unavailable, continuing without it")
		} else {
			a.cache = cache
		}
	}

	a.orch = orchestrator.New(cfg.Agents, client, a.convo, a.cache,
		agent.NewGraphQueryAgent(store, a.builder, client),
		agent.NewCodeAnalystAgent(store, a.builder, client),
		agent.NewIndexerAgent(a.jobs, cfg.Index.RecordsPath),
	)

	return a, nil
}

func (a *app) Close(ctx context.Context) {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.convo != nil {
		a.convo.Close()
	}
	if a.reports != nil {
		a.reports.Close()
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			logger.WithError(err).Warn("Failed to close graph store")
		}
	}
}
