package index

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/graph"
)

// Report summarizes one indexing run. Created and updated are counted
// separately so a re-run over unchanged sources shows up as all updates
// and zero creates.
type Report struct {
	NodesCreated int           `json:"nodes_created"`
	NodesUpdated int           `json:"nodes_updated"`
	EdgesCreated int           `json:"edges_created"`
	EdgesUpdated int           `json:"edges_updated"`
	EdgesSkipped int           `json:"edges_skipped"`
	ParseErrors  int           `json:"parse_errors"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

func (r *Report) String() string {
	return fmt.Sprintf("nodes: %d created, %d updated; edges: %d created, %d updated, %d skipped; parse errors: %d (%.2fs)",
		r.NodesCreated, r.NodesUpdated, r.EdgesCreated, r.EdgesUpdated, r.EdgesSkipped, r.ParseErrors,
		r.Duration.Seconds())
}

// Indexer loads parsed records into the graph store. All writes are
// idempotent upserts keyed by content-addressed node IDs, so indexing the
// same sources twice converges instead of duplicating.
type Indexer struct {
	store  graph.Store
	logger *logrus.Entry
}

// NewIndexer creates an indexer writing to the given store
func NewIndexer(store graph.Store) *Indexer {
	return &Indexer{
		store:  store,
		logger: logrus.WithField("component", "indexer"),
	}
}

// Run drains the source and indexes it in two passes: all nodes first,
// then all edges. Forward references between records therefore resolve
// regardless of record order. A record that fails to parse is counted and
// skipped; a dangling edge is counted and skipped; a store outage or a
// broken record stream aborts the run with a partial report.
func (ix *Indexer) Run(ctx context.Context, source Source) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	var records []*Record
	for {
		rec, err := source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, ErrSourceFailed) {
				ix.logger.WithError(err).Error("Record source failed, aborting run")
				return report, err
			}
			report.ParseErrors++
			ix.logger.WithError(err).Warn("Skipping unparseable record")
			continue
		}
		records = append(records, rec)
	}

	ix.logger.WithField("records", len(records)).Info("Indexing records")

	// Pass 1: nodes. Relation targets that only exist implicitly
	// (decorators, parameters) are materialized here so pass 2 never
	// dangles on them.
	seen := make(map[string]bool)
	for _, rec := range records {
		if err := ix.upsertEntity(ctx, report, seen, rec.Kind, rec.Qualified, rec.Props); err != nil {
			return report, err
		}
		for _, rel := range rec.Relations {
			if rel.TargetKind != graph.KindDecorator && rel.TargetKind != graph.KindParameter {
				continue
			}
			if err := ix.upsertEntity(ctx, report, seen, rel.TargetKind, rel.Target, nil); err != nil {
				return report, err
			}
		}
	}

	// Pass 2: edges
	for _, rec := range records {
		fromID := graph.NodeID(rec.Kind, rec.Qualified)

		if rec.Parent != nil {
			edge := graph.Edge{
				Kind:   graph.RelContains,
				FromID: graph.NodeID(rec.Parent.Kind, rec.Parent.Qualified),
				ToID:   fromID,
			}
			if err := ix.upsertEdge(ctx, report, edge); err != nil {
				return report, err
			}
		}

		for _, rel := range rec.Relations {
			edge := graph.Edge{
				Kind:   rel.Kind,
				FromID: fromID,
				ToID:   graph.NodeID(rel.TargetKind, rel.Target),
				Props:  rel.Props,
			}
			if err := ix.upsertEdge(ctx, report, edge); err != nil {
				return report, err
			}
		}
	}

	ix.logger.WithFields(logrus.Fields{
		"nodes_created": report.NodesCreated,
		"nodes_updated": report.NodesUpdated,
		"edges_created": report.EdgesCreated,
		"edges_skipped": report.EdgesSkipped,
		"parse_errors":  report.ParseErrors,
	}).Info("Indexing complete")

	return report, nil
}

func (ix *Indexer) upsertEntity(ctx context.Context, report *Report, seen map[string]bool, kind graph.EntityKind, qualified string, extra map[string]any) error {
	if qualified == "" {
		report.ParseErrors++
		return nil
	}

	id := graph.NodeID(kind, qualified)

	props := map[string]any{
		"qualified_name": qualified,
		"name":           graph.ShortName(qualified),
		"depth":          graph.ContainmentDepth(qualified),
	}
	if kind == graph.KindModule {
		props["path"] = qualified
	}
	for k, v := range extra {
		props[k] = v
	}

	created, err := ix.store.UpsertNode(ctx, graph.Node{ID: id, Kind: kind, Props: props})
	if err != nil {
		return fmt.Errorf("node upsert for %s: %w", qualified, err)
	}

	// A derived node re-upserted within the same run should not inflate
	// the updated counter.
	if seen[id] {
		return nil
	}
	seen[id] = true

	if created {
		report.NodesCreated++
	} else {
		report.NodesUpdated++
	}
	return nil
}

func (ix *Indexer) upsertEdge(ctx context.Context, report *Report, edge graph.Edge) error {
	created, err := ix.store.UpsertEdge(ctx, edge)
	if err != nil {
		if errors.GetType(err) == errors.TypeIntegrity {
			report.EdgesSkipped++
			ix.logger.WithError(err).Debug("Skipping dangling edge")
			return nil
		}
		return fmt.Errorf("edge upsert for %s: %w", edge, err)
	}

	if created {
		report.EdgesCreated++
	} else {
		report.EdgesUpdated++
	}
	return nil
}
