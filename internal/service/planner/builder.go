// Package planner selects and builds the execution plan for a metric query:
// a single native query, a layered CTE query, or a software-join plan when
// the backend cannot express the join natively.
package planner

import (
	"log/slog"

	"metriclens/internal/domain"
	"metriclens/internal/service/join"
	"metriclens/internal/service/metric"
)

// Builder compiles normalized metrics and dimensions into a QueryPlan.
type Builder struct {
	catalog domain.Catalog
	conns   domain.Connections
	joins   *join.Resolver
	logger  *slog.Logger
}

// NewBuilder creates a Builder over the given catalog and connections.
func NewBuilder(catalog domain.Catalog, conns domain.Connections, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		catalog: catalog,
		conns:   conns,
		joins:   join.NewResolver(catalog),
		logger:  logger,
	}
}

// Build selects the cheapest plan shape that can answer the query. Structural
// errors (unresolvable joins, circular dependencies, unsupported relations)
// surface here, before any native execution.
func (b *Builder) Build(metrics []domain.NormalizedMetric, dimensions []domain.Dimension) (domain.QueryPlan, error) {
	if len(metrics) == 0 {
		return nil, domain.ErrValidation("at least one metric is required")
	}
	for _, m := range metrics {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}

	// Surfaces circular dependencies up front.
	database, software, err := metric.SplitByStrategy(metrics)
	if err != nil {
		return nil, err
	}

	allTables := referencedTables(metrics, dimensions)
	connections := distinctConnections(allTables)

	if len(connections) > 1 {
		b.logger.Debug("plan shape selected", "shape", "software_join", "reason", "multiple connections")
		return b.buildSoftwarePlan(metrics, dimensions, allTables)
	}

	grammar, err := b.conns.Grammar(connections[0])
	if err != nil {
		// Capability unknown: fall back to the universally correct strategy.
		b.logger.Debug("plan shape selected", "shape", "software_join", "reason", "unknown grammar", "connection", connections[0])
		return b.buildSoftwarePlan(metrics, dimensions, allTables)
	}

	if len(allTables) > 1 && !grammar.SupportsNativeJoins() {
		b.logger.Debug("plan shape selected", "shape", "software_join", "reason", "no native joins")
		return b.buildSoftwarePlan(metrics, dimensions, allTables)
	}

	if anyCrossTable(software, metrics) {
		b.logger.Debug("plan shape selected", "shape", "software_join", "reason", "cross-table computed metric")
		return b.buildSoftwarePlan(metrics, dimensions, allTables)
	}

	if hasComputed(database) && grammar.SupportsLayeredQueries() {
		b.logger.Debug("plan shape selected", "shape", "layered")
		return b.buildLayeredPlan(metrics, database, dimensions, allTables, connections[0], grammar)
	}

	b.logger.Debug("plan shape selected", "shape", "simple")
	return b.buildSimplePlan(metrics, dimensions, allTables, connections[0], grammar)
}

// referencedTables returns the distinct tables the query touches, metric
// tables first in request order, then dimension-only tables.
func referencedTables(metrics []domain.NormalizedMetric, dimensions []domain.Dimension) []domain.Table {
	var tables []domain.Table
	seen := map[string]bool{}
	add := func(t domain.Table) {
		key := t.Connection + "." + t.Name
		if !seen[key] {
			seen[key] = true
			tables = append(tables, t)
		}
	}
	for _, m := range metrics {
		add(m.Table)
	}
	for _, d := range dimensions {
		add(d.Table)
	}
	return tables
}

func distinctConnections(tables []domain.Table) []string {
	var conns []string
	seen := map[string]bool{}
	for _, t := range tables {
		if !seen[t.Connection] {
			seen[t.Connection] = true
			conns = append(conns, t.Connection)
		}
	}
	return conns
}

// anyCrossTable reports whether a software-computable metric's dependency
// chain spans more than one table.
func anyCrossTable(software, all []domain.NormalizedMetric) bool {
	byKey := map[string]domain.NormalizedMetric{}
	for _, m := range all {
		byKey[m.Key] = m
	}
	for _, m := range software {
		for _, dep := range m.Dependencies {
			depMetric, ok := byKey[dep]
			if ok && depMetric.Table != m.Table {
				return true
			}
		}
	}
	return false
}

func hasComputed(metrics []domain.NormalizedMetric) bool {
	for _, m := range metrics {
		if m.IsComputed() {
			return true
		}
	}
	return false
}

func baseMetrics(metrics []domain.NormalizedMetric) []domain.NormalizedMetric {
	var out []domain.NormalizedMetric
	for _, m := range metrics {
		if _, ok := m.Definition.(domain.BaseAggregate); ok {
			out = append(out, m)
		}
	}
	return out
}
