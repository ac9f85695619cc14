package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codescope/codescope/internal/errors"
)

// Neo4jStore implements Store against a Neo4j property-graph backend
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
	database string
}

// NewNeo4jStore creates a Neo4j-backed store and verifies connectivity.
// Credentials always come from configuration, never hardcoded.
func NewNeo4jStore(ctx context.Context, uri, user, password, database string) (*Neo4jStore, error) {
	if uri == "" || user == "" || password == "" {
		return nil, errors.ConfigErrorf("neo4j credentials missing: uri=%s, user=%s", uri, user)
	}
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(user, password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = 50
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = 3600 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.StoreUnavailablef(err, "failed to create neo4j driver")
	}

	// Fail fast on startup
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.StoreUnavailablef(err, "failed to connect to neo4j at %s", uri)
	}

	logger := slog.Default().With("component", "neo4j")
	logger.Info("neo4j store connected", "uri", uri, "user", user, "database", database)

	return &Neo4jStore{
		driver:   driver,
		logger:   logger,
		database: database,
	}, nil
}

// Close closes the Neo4j driver connection
func (s *Neo4jStore) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	s.logger.Info("neo4j store closed")
	return nil
}

// HealthCheck verifies Neo4j connectivity
func (s *Neo4jStore) HealthCheck(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return errors.StoreUnavailable(err, "neo4j health check failed")
	}
	return nil
}

// UpsertNode merges a node by ID
func (s *Neo4jStore) UpsertNode(ctx context.Context, node Node) (bool, error) {
	cb := newCypherBuilder()
	query, err := cb.buildMergeNode(node)
	if err != nil {
		return false, errors.ValidationError(err.Error())
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, cb.params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return false, s.classify(err, fmt.Sprintf("node upsert failed for %s", node.ID))
	}

	created := extractCreated(result.Records)
	s.logger.Debug("node upserted", "kind", node.Kind, "id", node.ID, "created", created)
	return created, nil
}

// UpsertEdge merges an edge by (kind, from, to). Zero records back means an
// endpoint did not match, which is a dangling edge.
func (s *Neo4jStore) UpsertEdge(ctx context.Context, edge Edge) (bool, error) {
	cb := newCypherBuilder()
	query, err := cb.buildMergeEdge(edge)
	if err != nil {
		return false, errors.ValidationError(err.Error())
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, cb.params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return false, s.classify(err, fmt.Sprintf("edge upsert failed for %s", edge))
	}

	if len(result.Records) == 0 {
		return false, errors.Integrityf("dangling edge %s: endpoint missing", edge)
	}

	created := extractCreated(result.Records)
	s.logger.Debug("edge upserted", "kind", edge.Kind, "from", edge.FromID, "to", edge.ToID, "created", created)
	return created, nil
}

// Run executes a Builder-produced plan. Raw query text never enters here.
func (s *Neo4jStore) Run(ctx context.Context, plan *QueryPlan) ([]Row, error) {
	if plan == nil {
		return nil, errors.InvalidIntent("nil query plan")
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, plan.cypher, plan.params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, s.classify(err, fmt.Sprintf("query failed for intent %s", plan.intent))
	}

	rows := make([]Row, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, Row(record.AsMap()))
	}

	// The cypher already carries LIMIT; the cap here guards against
	// template drift.
	if len(rows) > plan.limit {
		rows = rows[:plan.limit]
	}

	s.logger.Debug("query executed", "intent", plan.intent.String(), "rows", len(rows))
	return rows, nil
}

// Statistics returns node and edge counts by kind
func (s *Neo4jStore) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		NodesByKind: make(map[EntityKind]int64),
		EdgesByKind: make(map[RelationKind]int64),
	}

	nodeResult, err := neo4j.ExecuteQuery(ctx, s.driver,
		"MATCH (n) RETURN labels(n)[0] AS kind, count(n) AS count",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, s.classify(err, "node statistics query failed")
	}

	for _, record := range nodeResult.Records {
		m := record.AsMap()
		kind, _ := m["kind"].(string)
		count, _ := m["count"].(int64)
		stats.NodesByKind[EntityKind(kind)] += count
		stats.Nodes += count
	}

	edgeResult, err := neo4j.ExecuteQuery(ctx, s.driver,
		"MATCH ()-[r]->() RETURN type(r) AS kind, count(r) AS count",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, s.classify(err, "edge statistics query failed")
	}

	for _, record := range edgeResult.Records {
		m := record.AsMap()
		kind, _ := m["kind"].(string)
		count, _ := m["count"].(int64)
		stats.EdgesByKind[RelationKind(kind)] += count
		stats.Edges += count
	}

	return stats, nil
}

// classify maps driver errors onto the taxonomy
func (s *Neo4jStore) classify(err error, message string) error {
	if neo4j.IsConnectivityError(err) {
		return errors.StoreUnavailable(err, message)
	}
	if strings.Contains(err.Error(), "ConstraintValidationFailed") {
		return errors.Wrap(err, errors.TypeIntegrity, errors.SeverityLow, message)
	}
	return errors.Wrap(err, errors.TypeInternal, errors.SeverityHigh, message)
}

func extractCreated(records []*neo4j.Record) bool {
	if len(records) == 0 {
		return false
	}
	v, ok := records[0].Get("created")
	if !ok {
		return false
	}
	created, _ := v.(bool)
	return created
}
