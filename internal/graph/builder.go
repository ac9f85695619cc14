package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codescope/codescope/internal/errors"
)

// Intent is a typed, enumerated kind of graph traversal request
type Intent int

const (
	IntentAncestry Intent = iota
	IntentDescendants
	IntentCallers
	IntentCallees
	IntentImportersOf
	IntentDecoratedWith
	IntentLookupByName
	IntentDocSearch
	IntentStructure
)

func (i Intent) String() string {
	switch i {
	case IntentAncestry:
		return "Ancestry"
	case IntentDescendants:
		return "Descendants"
	case IntentCallers:
		return "Callers"
	case IntentCallees:
		return "Callees"
	case IntentImportersOf:
		return "ImportersOf"
	case IntentDecoratedWith:
		return "DecoratedWith"
	case IntentLookupByName:
		return "LookupByName"
	case IntentDocSearch:
		return "DocSearch"
	case IntentStructure:
		return "Structure"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

// ParseIntent maps an intent name (as returned by the classifier) to an
// Intent. Unknown names are an error, never silently coerced.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ancestry":
		return IntentAncestry, nil
	case "descendants":
		return IntentDescendants, nil
	case "callers":
		return IntentCallers, nil
	case "callees":
		return IntentCallees, nil
	case "importersof", "importers_of", "importers":
		return IntentImportersOf, nil
	case "decoratedwith", "decorated_with":
		return IntentDecoratedWith, nil
	case "lookupbyname", "lookup_by_name", "lookup":
		return IntentLookupByName, nil
	case "docsearch", "doc_search":
		return IntentDocSearch, nil
	case "structure", "module_structure":
		return IntentStructure, nil
	}
	return 0, fmt.Errorf("unknown query intent: %q", s)
}

// QueryPlan is an executable, read-only traversal plan. Its fields are
// unexported so only the Builder can construct one; the store refuses
// anything else, which makes the Builder the sole injection boundary.
type QueryPlan struct {
	intent Intent
	cypher string
	params map[string]any
	depth  int
	limit  int
}

// Intent returns the intent this plan was built from
func (p *QueryPlan) Intent() Intent { return p.intent }

// Depth returns the traversal depth bound
func (p *QueryPlan) Depth() int { return p.depth }

// Limit returns the result-size cap
func (p *QueryPlan) Limit() int { return p.limit }

// Params returns the bound parameters (for logging)
func (p *QueryPlan) Params() map[string]any { return p.params }

const (
	// DefaultDepth bounds variable-length traversals
	DefaultDepth = 5
	// DefaultLimit caps result rows per query
	DefaultLimit = 200
	// maxDepth is the hard ceiling regardless of caller configuration
	maxDepth = 20
)

// BuildOption adjusts per-call bounds
type BuildOption func(*buildSettings)

type buildSettings struct {
	depth int
	limit int
}

// WithDepth overrides the traversal depth bound for one plan
func WithDepth(depth int) BuildOption {
	return func(s *buildSettings) { s.depth = depth }
}

// WithLimit overrides the result-size cap for one plan
func WithLimit(limit int) BuildOption {
	return func(s *buildSettings) { s.limit = limit }
}

// Builder translates typed intents plus bound parameters into query plans.
// Every plan it emits is read-only by construction: the allow-list below is
// keyed by intent type and contains only traversal templates, so no input
// can resolve to a write operation.
type Builder struct {
	defaultDepth int
	defaultLimit int
}

// NewBuilder creates a query builder with the given default bounds.
// Zero values fall back to DefaultDepth / DefaultLimit.
func NewBuilder(defaultDepth, defaultLimit int) *Builder {
	if defaultDepth <= 0 {
		defaultDepth = DefaultDepth
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Builder{defaultDepth: defaultDepth, defaultLimit: defaultLimit}
}

// planFunc renders the cypher for one intent with bounds applied.
// Depth is interpolated (Cypher cannot parameterize variable-length bounds)
// but is always a validated positive integer, never caller text.
type planFunc func(depth, limit int) string

// planTemplates is the static allow-list. An intent absent from this table
// cannot be executed at all.
var planTemplates = map[Intent]planFunc{
	IntentAncestry: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (c:Class) WHERE c.name = $name OR c.qualified_name = $name
MATCH path = (c)-[:INHERITS_FROM*1..%d]->(a:Class)
RETURN DISTINCT a.id AS id, a.qualified_name AS qualified_name, a.name AS name, 'Class' AS kind, a.depth AS depth, length(path) AS distance
ORDER BY distance, qualified_name LIMIT %d`, depth, limit)
	},
	IntentDescendants: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (c:Class) WHERE c.name = $name OR c.qualified_name = $name
MATCH path = (d:Class)-[:INHERITS_FROM*1..%d]->(c)
RETURN DISTINCT d.id AS id, d.qualified_name AS qualified_name, d.name AS name, 'Class' AS kind, d.depth AS depth, length(path) AS distance
ORDER BY distance, qualified_name LIMIT %d`, depth, limit)
	},
	IntentCallers: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (f) WHERE (f:Function OR f:Method) AND (f.name = $name OR f.qualified_name = $name)
MATCH path = (caller)-[:CALLS*1..%d]->(f)
RETURN DISTINCT caller.id AS id, caller.qualified_name AS qualified_name, caller.name AS name, labels(caller)[0] AS kind, caller.depth AS depth, length(path) AS distance
ORDER BY distance, qualified_name LIMIT %d`, depth, limit)
	},
	IntentCallees: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (f) WHERE (f:Function OR f:Method) AND (f.name = $name OR f.qualified_name = $name)
MATCH path = (f)-[:CALLS*1..%d]->(callee)
RETURN DISTINCT callee.id AS id, callee.qualified_name AS qualified_name, callee.name AS name, labels(callee)[0] AS kind, callee.depth AS depth, length(path) AS distance
ORDER BY distance, qualified_name LIMIT %d`, depth, limit)
	},
	IntentImportersOf: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (m:Module) WHERE m.path = $name OR m.name = $name OR m.qualified_name = $name
MATCH path = (src:Module)-[:IMPORTS*1..%d]->(m)
RETURN DISTINCT src.id AS id, src.qualified_name AS qualified_name, src.name AS name, 'Module' AS kind, src.depth AS depth, length(path) AS distance
ORDER BY distance, qualified_name LIMIT %d`, depth, limit)
	},
	IntentDecoratedWith: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (e)-[:DECORATED_BY]->(d:Decorator)
WHERE d.name = $name
RETURN DISTINCT e.id AS id, e.qualified_name AS qualified_name, e.name AS name, labels(e)[0] AS kind, e.depth AS depth, 1 AS distance
ORDER BY qualified_name LIMIT %d`, limit)
	},
	IntentLookupByName: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (e)
WHERE e.name = $name OR e.qualified_name = $name
RETURN e.id AS id, e.qualified_name AS qualified_name, e.name AS name, labels(e)[0] AS kind, e.depth AS depth, e.docstring AS docstring, e.signature AS signature
ORDER BY qualified_name LIMIT %d`, limit)
	},
	IntentDocSearch: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (e)
WHERE e.docstring IS NOT NULL AND e.docstring CONTAINS $name
RETURN e.id AS id, e.qualified_name AS qualified_name, e.name AS name, labels(e)[0] AS kind, e.depth AS depth, e.docstring AS docstring
ORDER BY qualified_name LIMIT %d`, limit)
	},
	IntentStructure: func(depth, limit int) string {
		return fmt.Sprintf(`MATCH (m:Module) WHERE m.path = $name OR m.name = $name OR m.qualified_name = $name
MATCH (m)-[:CONTAINS]->(e)
RETURN e.id AS id, e.qualified_name AS qualified_name, e.name AS name, labels(e)[0] AS kind, e.depth AS depth, 1 AS distance
ORDER BY qualified_name LIMIT %d`, limit)
	},
}

// Build translates an intent plus a bound name into an executable plan.
// An intent outside the allow-list is a planning bug and comes back as a
// fatal InvalidIntent error.
func (b *Builder) Build(intent Intent, name string, opts ...BuildOption) (*QueryPlan, error) {
	tmpl, ok := planTemplates[intent]
	if !ok {
		return nil, errors.InvalidIntentf("intent %s is not allow-listed for execution", intent)
	}

	if strings.TrimSpace(name) == "" {
		return nil, errors.ValidationError("query intent requires a non-empty name binding")
	}

	settings := buildSettings{depth: b.defaultDepth, limit: b.defaultLimit}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.depth <= 0 {
		settings.depth = b.defaultDepth
	}
	if settings.depth > maxDepth {
		settings.depth = maxDepth
	}
	if settings.limit <= 0 {
		settings.limit = b.defaultLimit
	}

	return &QueryPlan{
		intent: intent,
		cypher: tmpl(settings.depth, settings.limit),
		params: map[string]any{"name": name},
		depth:  settings.depth,
		limit:  settings.limit,
	}, nil
}

// Candidate is one node matching a LookupByName query
type Candidate struct {
	ID        string
	Qualified string
	Name      string
	Kind      EntityKind
	Depth     int
}

// CandidatesFromRows converts lookup result rows into candidates
func CandidatesFromRows(rows []Row) []Candidate {
	out := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, Candidate{
			ID:        r.StringProp("id"),
			Qualified: r.StringProp("qualified_name"),
			Name:      r.StringProp("name"),
			Kind:      EntityKind(r.StringProp("kind")),
			Depth:     r.IntProp("depth"),
		})
	}
	return out
}

// RankCandidates orders lookup candidates deterministically:
// exact qualified-name match first, then shallowest containment depth,
// then lexical order of qualified name. The first element is the top
// match; the full slice is returned so callers can disambiguate.
func RankCandidates(name string, cands []Candidate) []Candidate {
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)

	sort.SliceStable(ranked, func(i, j int) bool {
		exactI := ranked[i].Qualified == name
		exactJ := ranked[j].Qualified == name
		if exactI != exactJ {
			return exactI
		}
		if ranked[i].Depth != ranked[j].Depth {
			return ranked[i].Depth < ranked[j].Depth
		}
		return ranked[i].Qualified < ranked[j].Qualified
	})

	return ranked
}
