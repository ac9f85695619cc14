package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// EntityKind is a node label in the knowledge graph
type EntityKind string

const (
	KindModule    EntityKind = "Module"
	KindClass     EntityKind = "Class"
	KindFunction  EntityKind = "Function"
	KindMethod    EntityKind = "Method"
	KindParameter EntityKind = "Parameter"
	KindDecorator EntityKind = "Decorator"
)

// RelationKind is a typed, directed edge label
type RelationKind string

const (
	RelContains     RelationKind = "CONTAINS"
	RelImports      RelationKind = "IMPORTS"
	RelInheritsFrom RelationKind = "INHERITS_FROM"
	RelCalls        RelationKind = "CALLS"
	RelDecoratedBy  RelationKind = "DECORATED_BY"
	RelHasParameter RelationKind = "HAS_PARAMETER"
)

// EntityKinds lists all node labels
func EntityKinds() []EntityKind {
	return []EntityKind{KindModule, KindClass, KindFunction, KindMethod, KindParameter, KindDecorator}
}

// RelationKinds lists all edge labels
func RelationKinds() []RelationKind {
	return []RelationKind{RelContains, RelImports, RelInheritsFrom, RelCalls, RelDecoratedBy, RelHasParameter}
}

// Node represents a code entity in the graph
type Node struct {
	ID    string
	Kind  EntityKind
	Props map[string]any
}

// Edge represents a typed, directed relationship between two nodes
type Edge struct {
	Kind   RelationKind
	FromID string
	ToID   string
	Props  map[string]any
}

// Row is a single query result record
type Row map[string]any

// Statistics holds aggregate graph counts
type Statistics struct {
	Nodes       int64
	Edges       int64
	NodesByKind map[EntityKind]int64
	EdgesByKind map[RelationKind]int64
}

// NodeID derives the stable, content-addressed identifier for an entity.
// The same kind and fully-qualified path always produce the same ID, so
// re-indexing an unchanged source tree upserts onto existing nodes.
func NodeID(kind EntityKind, qualified string) string {
	sum := sha256.Sum256([]byte(string(kind) + "|" + qualified))
	return hex.EncodeToString(sum[:12])
}

// ContainmentDepth counts how deeply a qualified name is nested.
// "pkg/mod.py" is 0, "pkg/mod.py:Class" is 1, "pkg/mod.py:Class.method" is 2.
func ContainmentDepth(qualified string) int {
	_, member, found := strings.Cut(qualified, ":")
	if !found || member == "" {
		return 0
	}
	return 1 + strings.Count(member, ".")
}

// ShortName extracts the trailing simple name from a qualified name.
// Members split on dots; bare module paths split on slashes so the file
// name keeps its extension.
func ShortName(qualified string) string {
	if _, member, found := strings.Cut(qualified, ":"); found && member != "" {
		if i := strings.LastIndex(member, "."); i >= 0 {
			return member[i+1:]
		}
		return member
	}
	if i := strings.LastIndex(qualified, "/"); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func (n Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Kind, n.ID)
}

func (e Edge) String() string {
	return fmt.Sprintf("%s-[%s]->%s", e.FromID, e.Kind, e.ToID)
}

// StringProp reads a string property from a row, tolerating missing keys
func (r Row) StringProp(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IntProp reads an integer property from a row; neo4j returns int64
func (r Row) IntProp(key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
