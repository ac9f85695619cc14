package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// schemaStatements declares uniqueness constraints and lookup indexes for
// every entity kind. IF NOT EXISTS keeps the bootstrap idempotent.
func schemaStatements() []string {
	stmts := make([]string, 0, len(EntityKinds())*3)
	for _, kind := range EntityKinds() {
		stmts = append(stmts,
			fmt.Sprintf("CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
				lowerKind(kind), kind),
			fmt.Sprintf("CREATE INDEX %s_name_idx IF NOT EXISTS FOR (n:%s) ON (n.name)",
				lowerKind(kind), kind),
			fmt.Sprintf("CREATE INDEX %s_qualified_idx IF NOT EXISTS FOR (n:%s) ON (n.qualified_name)",
				lowerKind(kind), kind),
		)
	}
	return stmts
}

func lowerKind(kind EntityKind) string {
	out := make([]byte, len(kind))
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// InitSchema applies constraints and indexes. Individual statement failures
// are logged and skipped so a partially provisioned database still comes up.
func (s *Neo4jStore) InitSchema(ctx context.Context) error {
	applied := 0
	for _, stmt := range schemaStatements() {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, stmt, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			s.logger.Warn("schema statement skipped", "error", err)
			continue
		}
		applied++
	}
	s.logger.Info("schema initialized", "applied", applied)
	return nil
}
