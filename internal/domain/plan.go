package domain

// QueryPlan is the closed set of executable plan shapes. Plans are created
// fresh per query and never mutated once execution begins.
type QueryPlan interface {
	isQueryPlan()
}

// SimplePlan is a single native query: the backend joins, filters, groups,
// and aggregates everything itself.
type SimplePlan struct {
	Connection string
	SQL        string
}

func (SimplePlan) isQueryPlan() {}

// LayeredPlan runs one native sub-query per metric dependency level, chained
// as CTEs: level 0 computes base aggregates, each subsequent level selects
// from the previous level plus its own expressions over prior aliases.
type LayeredPlan struct {
	Connection string
	Levels     []string // one SELECT body per dependency level
	SQL        string   // assembled WITH ... SELECT statement
}

func (LayeredPlan) isQueryPlan() {}

// TableQuery is one independently executable per-table sub-query inside a
// software-join plan. KeyAliases name hidden join-key columns that are
// stripped from the final output.
type TableQuery struct {
	Table            Table
	SQL              string
	MetricAliases    []string
	DimensionAliases []string
	KeyAliases       []string
}

// JoinEdge merges the named table's rowset into the running merged rowset by
// equality on a pair of hidden key aliases.
type JoinEdge struct {
	RightTable string
	LeftKey    string
	RightKey   string
	// PreserveUnmatched keeps left rows without a match, null-filling the
	// right side, instead of dropping them (INNER semantics otherwise).
	PreserveUnmatched bool
}

// RowFilter applies a dimension filter to merged rows post-fetch.
type RowFilter struct {
	Alias  string
	Filter DimensionFilter
}

// SoftwareJoinPlan executes each table's sub-query independently, hash-joins
// the rowsets in memory, filters, then groups and aggregates per dimension
// tuple. Sub-queries select raw rows rather than pre-aggregated ones, so the
// merged set carries the same row multiplicity a native join would produce.
type SoftwareJoinPlan struct {
	Tables         []TableQuery
	Joins          []JoinEdge
	DimensionOrder []string
	MetricAliases  []string
	// Aggregates maps each metric alias to its aggregate function, applied
	// in process after the hash join. Aliases absent from the map sum.
	Aggregates map[string]string
	Filters    []RowFilter
}

func (SoftwareJoinPlan) isQueryPlan() {}
