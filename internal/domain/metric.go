package domain

const (
	AggregateSum   = "SUM"
	AggregateCount = "COUNT"
	AggregateAvg   = "AVG"
	AggregateMin   = "MIN"
	AggregateMax   = "MAX"
)

// MetricDefinition is the closed set of metric shapes: a base aggregate over
// one column, or an arithmetic expression over other metrics' keys.
type MetricDefinition interface {
	isMetricDefinition()
}

// BaseAggregate computes one aggregate function over a single column.
type BaseAggregate struct {
	Func   string
	Column string
}

func (BaseAggregate) isMetricDefinition() {}

// Computed derives a value from other metrics via an arithmetic expression.
// The expression references other metrics by their result alias.
type Computed struct {
	Expression string
}

func (Computed) isMetricDefinition() {}

// NormalizedMetric is the unit the engine operates on. Key is globally unique
// within one query; Dependencies reference other metric keys, never columns.
type NormalizedMetric struct {
	Key          string
	Table        Table
	Definition   MetricDefinition
	Dependencies []string
}

// Validate checks that the metric is well-formed.
func (m NormalizedMetric) Validate() error {
	if m.Key == "" {
		return ErrValidation("metric key is required")
	}
	if m.Table.Name == "" {
		return ErrValidation("metric %q requires a table", m.Key)
	}
	switch def := m.Definition.(type) {
	case BaseAggregate:
		valid := map[string]bool{
			AggregateSum: true, AggregateCount: true, AggregateAvg: true,
			AggregateMin: true, AggregateMax: true,
		}
		if !valid[def.Func] {
			return ErrValidation("metric %q: aggregate must be one of SUM, COUNT, AVG, MIN, MAX", m.Key)
		}
		if def.Column == "" {
			return ErrValidation("metric %q: aggregate column is required", m.Key)
		}
		if len(m.Dependencies) > 0 {
			return ErrValidation("metric %q: base aggregates cannot declare dependencies", m.Key)
		}
	case Computed:
		if def.Expression == "" {
			return ErrValidation("metric %q: expression is required", m.Key)
		}
	case nil:
		return ErrValidation("metric %q has no definition", m.Key)
	default:
		return ErrValidation("metric %q has an unknown definition type", m.Key)
	}
	return nil
}

// IsComputed reports whether the metric is expression-derived.
func (m NormalizedMetric) IsComputed() bool {
	_, ok := m.Definition.(Computed)
	return ok
}
