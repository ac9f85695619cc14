package graph

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/codescope/codescope/internal/errors"
)

type edgeKey struct {
	kind RelationKind
	from string
	to   string
}

// MemoryStore is an in-process Store used for tests and for running
// without a Neo4j instance. It honors the same contracts as the Neo4j
// backend: idempotent upserts, dangling-edge integrity errors, and
// plan-only reads with depth and row bounds.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[edgeKey]Edge
	// adjacency by relation kind, outgoing and incoming
	out map[RelationKind]map[string][]string
	in  map[RelationKind]map[string][]string

	logger *slog.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:  make(map[string]Node),
		edges:  make(map[edgeKey]Edge),
		out:    make(map[RelationKind]map[string][]string),
		in:     make(map[RelationKind]map[string][]string),
		logger: slog.Default().With("component", "memstore"),
	}
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

func (s *MemoryStore) UpsertNode(ctx context.Context, node Node) (bool, error) {
	if node.ID == "" {
		return false, errors.ValidationError("node id is required")
	}
	if !isValidIdentifier(string(node.Kind)) {
		return false, errors.ValidationError("invalid node label: " + string(node.Kind))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.nodes[node.ID]
	if found {
		// merge props onto the existing node
		if existing.Props == nil {
			existing.Props = make(map[string]any)
		}
		for k, v := range node.Props {
			existing.Props[k] = v
		}
		s.nodes[node.ID] = existing
		return false, nil
	}

	props := make(map[string]any, len(node.Props))
	for k, v := range node.Props {
		props[k] = v
	}
	s.nodes[node.ID] = Node{ID: node.ID, Kind: node.Kind, Props: props}
	return true, nil
}

func (s *MemoryStore) UpsertEdge(ctx context.Context, edge Edge) (bool, error) {
	if !isValidIdentifier(string(edge.Kind)) {
		return false, errors.ValidationError("invalid edge label: " + string(edge.Kind))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.FromID]; !ok {
		return false, errors.Integrityf("dangling edge %s: source missing", edge)
	}
	if _, ok := s.nodes[edge.ToID]; !ok {
		return false, errors.Integrityf("dangling edge %s: target missing", edge)
	}

	key := edgeKey{kind: edge.Kind, from: edge.FromID, to: edge.ToID}
	if existing, found := s.edges[key]; found {
		if existing.Props == nil {
			existing.Props = make(map[string]any)
		}
		for k, v := range edge.Props {
			existing.Props[k] = v
		}
		s.edges[key] = existing
		return false, nil
	}

	props := make(map[string]any, len(edge.Props))
	for k, v := range edge.Props {
		props[k] = v
	}
	s.edges[key] = Edge{Kind: edge.Kind, FromID: edge.FromID, ToID: edge.ToID, Props: props}

	if s.out[edge.Kind] == nil {
		s.out[edge.Kind] = make(map[string][]string)
	}
	if s.in[edge.Kind] == nil {
		s.in[edge.Kind] = make(map[string][]string)
	}
	s.out[edge.Kind][edge.FromID] = append(s.out[edge.Kind][edge.FromID], edge.ToID)
	s.in[edge.Kind][edge.ToID] = append(s.in[edge.Kind][edge.ToID], edge.FromID)
	return true, nil
}

func (s *MemoryStore) Statistics(ctx context.Context) (*Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Statistics{
		NodesByKind: make(map[EntityKind]int64),
		EdgesByKind: make(map[RelationKind]int64),
	}
	for _, n := range s.nodes {
		stats.NodesByKind[n.Kind]++
		stats.Nodes++
	}
	for _, e := range s.edges {
		stats.EdgesByKind[e.Kind]++
		stats.Edges++
	}
	return stats, nil
}

// Run executes a plan against the in-memory graph. Each intent mirrors the
// Cypher template for that intent: same match semantics, same row keys,
// same ordering by (distance, qualified_name).
func (s *MemoryStore) Run(ctx context.Context, plan *QueryPlan) ([]Row, error) {
	if plan == nil {
		return nil, errors.InvalidIntent("nil query plan")
	}
	name, _ := plan.params["name"].(string)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []Row
	switch plan.intent {
	case IntentAncestry:
		starts := s.matchNodes(name, KindClass)
		rows = s.traverse(starts, RelInheritsFrom, s.out, plan.depth, KindClass)
	case IntentDescendants:
		starts := s.matchNodes(name, KindClass)
		rows = s.traverse(starts, RelInheritsFrom, s.in, plan.depth, KindClass)
	case IntentCallers:
		starts := s.matchNodes(name, KindFunction, KindMethod)
		rows = s.traverse(starts, RelCalls, s.in, plan.depth)
	case IntentCallees:
		starts := s.matchNodes(name, KindFunction, KindMethod)
		rows = s.traverse(starts, RelCalls, s.out, plan.depth)
	case IntentImportersOf:
		starts := s.matchModules(name)
		rows = s.traverse(starts, RelImports, s.in, plan.depth, KindModule)
	case IntentDecoratedWith:
		rows = s.decoratedWith(name)
	case IntentLookupByName:
		rows = s.lookup(name)
	case IntentDocSearch:
		rows = s.docSearch(name)
	case IntentStructure:
		rows = s.structure(name)
	default:
		return nil, errors.InvalidIntentf("intent %s is not allow-listed for execution", plan.intent)
	}

	if len(rows) > plan.limit {
		rows = rows[:plan.limit]
	}
	s.logger.Debug("query executed", "intent", plan.intent.String(), "rows", len(rows))
	return rows, nil
}

// matchNodes finds nodes of the given kinds whose name or qualified_name
// equals the binding
func (s *MemoryStore) matchNodes(name string, kinds ...EntityKind) []Node {
	var out []Node
	for _, n := range s.nodes {
		if !kindIn(n.Kind, kinds) {
			continue
		}
		if propEquals(n, "name", name) || propEquals(n, "qualified_name", name) {
			out = append(out, n)
		}
	}
	return out
}

// matchModules also matches on the path property
func (s *MemoryStore) matchModules(name string) []Node {
	var out []Node
	for _, n := range s.nodes {
		if n.Kind != KindModule {
			continue
		}
		if propEquals(n, "path", name) || propEquals(n, "name", name) || propEquals(n, "qualified_name", name) {
			out = append(out, n)
		}
	}
	return out
}

// traverse runs a depth-bounded BFS from every start node over one relation
// kind. Cycles are handled by the visited set; each reachable node is
// reported once at its minimum distance. Start nodes themselves are not
// reported.
func (s *MemoryStore) traverse(starts []Node, rel RelationKind, adj map[RelationKind]map[string][]string, depth int, filter ...EntityKind) []Row {
	neighbors := adj[rel]

	visited := make(map[string]int)
	frontier := make([]string, 0, len(starts))
	for _, n := range starts {
		visited[n.ID] = 0
		frontier = append(frontier, n.ID)
	}

	dist := 0
	reached := make(map[string]int)
	for len(frontier) > 0 && dist < depth {
		dist++
		var next []string
		for _, id := range frontier {
			for _, nb := range neighbors[id] {
				if _, seen := visited[nb]; seen {
					continue
				}
				visited[nb] = dist
				reached[nb] = dist
				next = append(next, nb)
			}
		}
		frontier = next
	}

	rows := make([]Row, 0, len(reached))
	for id, d := range reached {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		if len(filter) > 0 && !kindIn(n.Kind, filter) {
			continue
		}
		rows = append(rows, nodeRow(n, d))
	}
	sortRows(rows)
	return rows
}

func (s *MemoryStore) decoratedWith(name string) []Row {
	neighbors := s.in[RelDecoratedBy]
	seen := make(map[string]bool)
	var rows []Row
	for _, d := range s.nodes {
		if d.Kind != KindDecorator || !propEquals(d, "name", name) {
			continue
		}
		for _, id := range neighbors[d.ID] {
			if seen[id] {
				continue
			}
			seen[id] = true
			if n, ok := s.nodes[id]; ok {
				rows = append(rows, nodeRow(n, 1))
			}
		}
	}
	sortRows(rows)
	return rows
}

func (s *MemoryStore) lookup(name string) []Row {
	var rows []Row
	for _, n := range s.nodes {
		if propEquals(n, "name", name) || propEquals(n, "qualified_name", name) {
			r := nodeRow(n, 0)
			delete(r, "distance")
			r["docstring"] = n.Props["docstring"]
			r["signature"] = n.Props["signature"]
			rows = append(rows, r)
		}
	}
	sortRows(rows)
	return rows
}

func (s *MemoryStore) docSearch(term string) []Row {
	var rows []Row
	for _, n := range s.nodes {
		doc, _ := n.Props["docstring"].(string)
		if doc == "" || !strings.Contains(doc, term) {
			continue
		}
		r := nodeRow(n, 0)
		delete(r, "distance")
		r["docstring"] = doc
		rows = append(rows, r)
	}
	sortRows(rows)
	return rows
}

func (s *MemoryStore) structure(name string) []Row {
	neighbors := s.out[RelContains]
	seen := make(map[string]bool)
	var rows []Row
	for _, m := range s.matchModules(name) {
		for _, id := range neighbors[m.ID] {
			if seen[id] {
				continue
			}
			seen[id] = true
			if n, ok := s.nodes[id]; ok {
				rows = append(rows, nodeRow(n, 1))
			}
		}
	}
	sortRows(rows)
	return rows
}

func nodeRow(n Node, distance int) Row {
	depth := 0
	switch v := n.Props["depth"].(type) {
	case int:
		depth = v
	case int64:
		depth = int(v)
	}
	return Row{
		"id":             n.ID,
		"qualified_name": n.Props["qualified_name"],
		"name":           n.Props["name"],
		"kind":           string(n.Kind),
		"depth":          int64(depth),
		"distance":       int64(distance),
	}
}

func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := rows[i].IntProp("distance"), rows[j].IntProp("distance")
		if di != dj {
			return di < dj
		}
		return rows[i].StringProp("qualified_name") < rows[j].StringProp("qualified_name")
	})
}

func propEquals(n Node, key, value string) bool {
	s, _ := n.Props[key].(string)
	return s != "" && s == value
}

func kindIn(kind EntityKind, kinds []EntityKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
