package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// cypherBuilder builds safe, parameterized Cypher queries. All values go
// through parameters; labels and property keys are validated against a
// strict identifier pattern.
type cypherBuilder struct {
	params  map[string]any
	counter int
}

func newCypherBuilder() *cypherBuilder {
	return &cypherBuilder{
		params:  make(map[string]any),
		counter: 0,
	}
}

// addParam adds a parameter and returns its placeholder
func (b *cypherBuilder) addParam(value any) string {
	paramName := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[paramName] = value
	return "$" + paramName
}

// buildMergeNode creates a MERGE query keyed on the node ID. The _new
// marker distinguishes creation from update so the indexer can report
// accurate counters.
func (b *cypherBuilder) buildMergeNode(node Node) (string, error) {
	if !isValidIdentifier(string(node.Kind)) {
		return "", fmt.Errorf("invalid node label: %s", node.Kind)
	}

	idParam := b.addParam(node.ID)

	setClauses := []string{}
	for key, value := range node.Props {
		if !isValidIdentifier(key) {
			return "", fmt.Errorf("invalid property key: %s", key)
		}
		paramName := b.addParam(value)
		setClauses = append(setClauses, fmt.Sprintf("n.%s = %s", key, paramName))
	}

	setClause := ""
	if len(setClauses) > 0 {
		setClause = "SET " + strings.Join(setClauses, ", ") + " "
	}

	return fmt.Sprintf(
		"MERGE (n:%s {id: %s}) ON CREATE SET n._new = true %sWITH n, coalesce(n._new, false) AS created REMOVE n._new RETURN created",
		node.Kind,
		idParam,
		setClause,
	), nil
}

// buildMergeEdge creates a MERGE query for an edge between existing nodes.
// The MATCH clauses make a dangling edge come back with zero records, which
// the store maps to an integrity error.
func (b *cypherBuilder) buildMergeEdge(edge Edge) (string, error) {
	if !isValidIdentifier(string(edge.Kind)) {
		return "", fmt.Errorf("invalid edge label: %s", edge.Kind)
	}

	fromParam := b.addParam(edge.FromID)
	toParam := b.addParam(edge.ToID)

	var propsStr string
	if len(edge.Props) > 0 {
		propClauses := []string{}
		for key, value := range edge.Props {
			if !isValidIdentifier(key) {
				return "", fmt.Errorf("invalid edge property key: %s", key)
			}
			paramName := b.addParam(value)
			propClauses = append(propClauses, fmt.Sprintf("r.%s = %s", key, paramName))
		}
		propsStr = "SET " + strings.Join(propClauses, ", ") + " "
	}

	return fmt.Sprintf(
		"MATCH (from {id: %s}) MATCH (to {id: %s}) MERGE (from)-[r:%s]->(to) ON CREATE SET r._new = true %sWITH r, coalesce(r._new, false) AS created REMOVE r._new RETURN created",
		fromParam, toParam,
		edge.Kind,
		propsStr,
	), nil
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIdentifier validates that a string can be safely used as a Cypher
// label or property key. Only alphanumerics and underscores.
func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
