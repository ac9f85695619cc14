package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/errors"
)

func seedNode(t *testing.T, s *MemoryStore, kind EntityKind, qualified string, extra map[string]any) string {
	t.Helper()
	id := NodeID(kind, qualified)
	props := map[string]any{
		"qualified_name": qualified,
		"name":           ShortName(qualified),
		"depth":          ContainmentDepth(qualified),
	}
	for k, v := range extra {
		props[k] = v
	}
	_, err := s.UpsertNode(context.Background(), Node{ID: id, Kind: kind, Props: props})
	require.NoError(t, err)
	return id
}

func seedEdge(t *testing.T, s *MemoryStore, kind RelationKind, from, to string) {
	t.Helper()
	_, err := s.UpsertEdge(context.Background(), Edge{Kind: kind, FromID: from, ToID: to})
	require.NoError(t, err)
}

// seedFixture builds a small class hierarchy with calls, imports, and
// a decorator:
//
//	app.py imports lib.py
//	lib.py contains Base, Mid, Leaf (Leaf -> Mid -> Base)
//	app.py contains main, which calls Leaf.run, which calls helper
//	helper is decorated with @cached
func seedFixture(t *testing.T, s *MemoryStore) map[string]string {
	t.Helper()
	ids := make(map[string]string)

	ids["app"] = seedNode(t, s, KindModule, "app.py", map[string]any{"path": "app.py"})
	ids["lib"] = seedNode(t, s, KindModule, "lib.py", map[string]any{"path": "lib.py"})

	ids["base"] = seedNode(t, s, KindClass, "lib.py:Base", map[string]any{"docstring": "Base type for handlers"})
	ids["mid"] = seedNode(t, s, KindClass, "lib.py:Mid", nil)
	ids["leaf"] = seedNode(t, s, KindClass, "lib.py:Leaf", nil)

	ids["main"] = seedNode(t, s, KindFunction, "app.py:main", nil)
	ids["run"] = seedNode(t, s, KindMethod, "lib.py:Leaf.run", map[string]any{"signature": "def run(self)"})
	ids["helper"] = seedNode(t, s, KindFunction, "lib.py:helper", map[string]any{"docstring": "Shared helper for handlers"})
	ids["cached"] = seedNode(t, s, KindDecorator, "cached", nil)

	seedEdge(t, s, RelImports, ids["app"], ids["lib"])
	seedEdge(t, s, RelContains, ids["lib"], ids["base"])
	seedEdge(t, s, RelContains, ids["lib"], ids["mid"])
	seedEdge(t, s, RelContains, ids["lib"], ids["leaf"])
	seedEdge(t, s, RelContains, ids["lib"], ids["helper"])
	seedEdge(t, s, RelContains, ids["app"], ids["main"])
	seedEdge(t, s, RelContains, ids["leaf"], ids["run"])
	seedEdge(t, s, RelInheritsFrom, ids["leaf"], ids["mid"])
	seedEdge(t, s, RelInheritsFrom, ids["mid"], ids["base"])
	seedEdge(t, s, RelCalls, ids["main"], ids["run"])
	seedEdge(t, s, RelCalls, ids["run"], ids["helper"])
	seedEdge(t, s, RelDecoratedBy, ids["helper"], ids["cached"])

	return ids
}

func mustRun(t *testing.T, s *MemoryStore, intent Intent, name string, opts ...BuildOption) []Row {
	t.Helper()
	plan, err := NewBuilder(0, 0).Build(intent, name, opts...)
	require.NoError(t, err)
	rows, err := s.Run(context.Background(), plan)
	require.NoError(t, err)
	return rows
}

func qualifieds(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.StringProp("qualified_name"))
	}
	return out
}

func TestUpsertNodeIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	node := Node{ID: NodeID(KindClass, "lib.py:Base"), Kind: KindClass, Props: map[string]any{"name": "Base"}}

	created, err := s.UpsertNode(ctx, node)
	require.NoError(t, err)
	assert.True(t, created)

	node.Props["docstring"] = "added later"
	created, err = s.UpsertNode(ctx, node)
	require.NoError(t, err)
	assert.False(t, created, "second upsert updates, never duplicates")

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Nodes)
}

func TestUpsertEdgeIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ids := seedFixture(t, s)
	ctx := context.Background()

	created, err := s.UpsertEdge(ctx, Edge{Kind: RelCalls, FromID: ids["main"], ToID: ids["run"]})
	require.NoError(t, err)
	assert.False(t, created, "edge already exists")
}

func TestUpsertEdgeDangling(t *testing.T) {
	s := NewMemoryStore()
	ids := seedFixture(t, s)

	_, err := s.UpsertEdge(context.Background(), Edge{Kind: RelCalls, FromID: ids["main"], ToID: "missing"})
	require.Error(t, err)
	assert.Equal(t, errors.TypeIntegrity, errors.GetType(err))
	assert.False(t, errors.IsFatal(err), "a dangling edge aborts one upsert, not the run")
}

func TestAncestry(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentAncestry, "Leaf")
	assert.Equal(t, []string{"lib.py:Mid", "lib.py:Base"}, qualifieds(rows))
	assert.Equal(t, 1, rows[0].IntProp("distance"))
	assert.Equal(t, 2, rows[1].IntProp("distance"))
}

func TestAncestryDepthBound(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentAncestry, "Leaf", WithDepth(1))
	assert.Equal(t, []string{"lib.py:Mid"}, qualifieds(rows))
}

func TestDescendants(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentDescendants, "Base")
	assert.Equal(t, []string{"lib.py:Mid", "lib.py:Leaf"}, qualifieds(rows))
}

func TestCallersAndCallees(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	callers := mustRun(t, s, IntentCallers, "helper")
	assert.Equal(t, []string{"lib.py:Leaf.run", "app.py:main"}, qualifieds(callers))

	callees := mustRun(t, s, IntentCallees, "main")
	assert.Equal(t, []string{"lib.py:Leaf.run", "lib.py:helper"}, qualifieds(callees))
}

func TestCallersToleratesCycles(t *testing.T) {
	s := NewMemoryStore()

	a := seedNode(t, s, KindFunction, "m.py:a", nil)
	b := seedNode(t, s, KindFunction, "m.py:b", nil)
	seedEdge(t, s, RelCalls, a, b)
	seedEdge(t, s, RelCalls, b, a)

	rows := mustRun(t, s, IntentCallers, "a", WithDepth(10))
	assert.Equal(t, []string{"m.py:b"}, qualifieds(rows), "each node reported once at minimum distance")
}

func TestImportersOf(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentImportersOf, "lib.py")
	assert.Equal(t, []string{"app.py"}, qualifieds(rows))
}

func TestDecoratedWith(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentDecoratedWith, "cached")
	assert.Equal(t, []string{"lib.py:helper"}, qualifieds(rows))
}

func TestLookupByName(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentLookupByName, "run")
	require.Len(t, rows, 1)
	assert.Equal(t, "lib.py:Leaf.run", rows[0].StringProp("qualified_name"))
	assert.Equal(t, "def run(self)", rows[0].StringProp("signature"))
	assert.Equal(t, "Method", rows[0].StringProp("kind"))
}

func TestDocSearch(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentDocSearch, "handlers")
	assert.Equal(t, []string{"lib.py:Base", "lib.py:helper"}, qualifieds(rows))
}

func TestStructure(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentStructure, "lib.py")
	assert.Equal(t, []string{"lib.py:Base", "lib.py:Leaf", "lib.py:Mid", "lib.py:helper"}, qualifieds(rows))
}

func TestRowLimit(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentStructure, "lib.py", WithLimit(2))
	assert.Len(t, rows, 2)
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	rows := mustRun(t, s, IntentAncestry, "Base")
	assert.Empty(t, rows, "a root class has no ancestors")
}

func TestStatistics(t *testing.T) {
	s := NewMemoryStore()
	seedFixture(t, s)

	stats, err := s.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.Nodes)
	assert.Equal(t, int64(12), stats.Edges)
	assert.Equal(t, int64(3), stats.NodesByKind[KindClass])
	assert.Equal(t, int64(2), stats.EdgesByKind[RelInheritsFrom])
	assert.Equal(t, int64(2), stats.EdgesByKind[RelCalls])
}
