package semantic

import "metriclens/internal/domain"

// MetricRequest asks for one metric: a base aggregate over "table.column",
// or an expression over other requested metrics' keys.
type MetricRequest struct {
	Name       string // result alias; derived as {table}_{column} when empty
	Aggregate  string // SUM, COUNT, AVG, MIN, MAX (base metrics; defaults to SUM)
	Source     string // "table.column" (base metrics)
	Expression string // arithmetic over other metric keys (computed metrics)
	Table      string // anchor table for computed metrics; defaults to the first base metric's table
}

// WhereRequest is a comparison filter on a dimension value.
type WhereRequest struct {
	Op    string
	Value interface{}
}

// DimensionRequest asks for one grouping dimension by table and name.
type DimensionRequest struct {
	Table       string
	Name        string
	Granularity string // overrides the catalog dimension's granularity
	Only        []interface{}
	Except      []interface{}
	Where       *WhereRequest
}

// QueryRequest is one metric query: which metrics to compute, grouped by
// which dimensions.
type QueryRequest struct {
	// Table anchors computed metrics when no base metric establishes one.
	Table      string
	Metrics    []MetricRequest
	Dimensions []DimensionRequest
}

// QueryResult is the normalized result set.
type QueryResult struct {
	Columns []string
	Rows    []domain.Row
}

// ExplainQuery is one native query the plan will run.
type ExplainQuery struct {
	Connection string `json:"connection"`
	Table      string `json:"table,omitempty"` // empty for whole-plan queries
	SQL        string `json:"sql"`
}

// Explanation describes the selected plan without executing it.
type Explanation struct {
	Strategy       string            `json:"strategy"` // "simple", "layered", or "software_join"
	Queries        []ExplainQuery    `json:"queries"`
	Levels         map[string]int    `json:"levels,omitempty"`
	DimensionOrder []string          `json:"dimension_order,omitempty"`
	Joins          []domain.JoinEdge `json:"joins,omitempty"`
}
