package domain

import "context"

// Catalog is the resolved, immutable schema snapshot the engine plans
// against. Snapshots may be shared by concurrent requests; a refresh must
// publish a new snapshot rather than mutate one in place.
type Catalog interface {
	Tables() []Table
	Relations(table Table) []Relation
	Dimensions(table Table) []Dimension
	// ResolveMetricSource resolves a "table.column" reference to the
	// location a raw aggregate reads from.
	ResolveMetricSource(reference string) (MetricSource, error)
}

// Grammar reports a backend's planning capabilities and formats
// dialect-specific SQL fragments.
type Grammar interface {
	SupportsNativeJoins() bool
	SupportsLayeredQueries() bool
	// TimeBucket returns the SQL expression that buckets table.column at
	// the given granularity.
	TimeBucket(table, column, granularity string) string
}

// Adapter executes one native query on a backend connection.
type Adapter interface {
	Execute(ctx context.Context, query string) ([]Row, error)
}

// Connections resolves a logical connection id to its adapter and grammar.
type Connections interface {
	Adapter(name string) (Adapter, error)
	Grammar(name string) (Grammar, error)
}
