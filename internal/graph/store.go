package graph

import "context"

// Store defines graph database operations. All mutation goes through
// idempotent upserts keyed by node ID; Run accepts only plans produced
// by the Builder, which is the sole injection boundary.
type Store interface {
	// UpsertNode merges a node by ID. Returns true when the node was created,
	// false when an existing node was updated.
	UpsertNode(ctx context.Context, node Node) (created bool, err error)

	// UpsertEdge merges an edge by (kind, from, to). Both endpoints must
	// already exist; a dangling edge is an integrity error that aborts only
	// this upsert.
	UpsertEdge(ctx context.Context, edge Edge) (created bool, err error)

	// Run executes a query plan and returns result rows, bounded by the
	// plan's row limit.
	Run(ctx context.Context, plan *QueryPlan) ([]Row, error)

	// Statistics returns node and edge counts by kind
	Statistics(ctx context.Context) (*Statistics, error)

	// HealthCheck verifies store connectivity
	HealthCheck(ctx context.Context) error

	// Close releases the backend connection
	Close(ctx context.Context) error
}
