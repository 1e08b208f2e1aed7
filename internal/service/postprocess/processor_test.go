package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriclens/internal/domain"
)

var (
	ordersTable  = domain.Table{Name: "orders", Connection: "primary"}
	refundsTable = domain.Table{Name: "refunds", Connection: "primary"}
)

func base(key string, table domain.Table, column string) domain.NormalizedMetric {
	return domain.NormalizedMetric{
		Key:        key,
		Table:      table,
		Definition: domain.BaseAggregate{Func: domain.AggregateSum, Column: column},
	}
}

func computed(key string, table domain.Table, expr string, deps ...string) domain.NormalizedMetric {
	return domain.NormalizedMetric{
		Key:          key,
		Table:        table,
		Definition:   domain.Computed{Expression: expr},
		Dependencies: deps,
	}
}

func TestProcess_FillsSoftwareMetrics(t *testing.T) {
	p := NewProcessor(nil)
	metrics := []domain.NormalizedMetric{
		base("revenue", ordersTable, "total"),
		base("refunded", refundsTable, "amount"),
		computed("net", ordersTable, "revenue - refunded", "revenue", "refunded"),
	}
	rows := []domain.Row{
		{"revenue": int64(1000), "refunded": int64(150)},
	}

	out, err := p.Process(rows, metrics)
	require.NoError(t, err)
	assert.Equal(t, 850.0, out[0]["net"])
}

func TestProcess_DivisionGuardedByNullIf(t *testing.T) {
	p := NewProcessor(nil)
	metrics := []domain.NormalizedMetric{
		base("revenue", ordersTable, "total"),
		base("order_count", refundsTable, "id"),
		computed("aov", ordersTable, "revenue / NULLIF(order_count, 0)", "revenue", "order_count"),
	}

	out, err := p.Process([]domain.Row{
		{"revenue": int64(1000), "order_count": int64(200)},
		{"revenue": int64(1500), "order_count": int64(0)},
	}, metrics)
	require.NoError(t, err)
	assert.Equal(t, 5.0, out[0]["aov"])
	assert.Nil(t, out[1]["aov"])
}

func TestProcess_PromotesDatabaseMetricOnMissingAlias(t *testing.T) {
	// double_revenue is database-computable, but the executed plan never
	// materialized its alias (no layered support); it is filled here.
	p := NewProcessor(nil)
	metrics := []domain.NormalizedMetric{
		base("revenue", ordersTable, "total"),
		computed("double_revenue", ordersTable, "revenue * 2", "revenue"),
	}

	out, err := p.Process([]domain.Row{{"revenue": int64(100)}}, metrics)
	require.NoError(t, err)
	assert.Equal(t, 200.0, out[0]["double_revenue"])
}

func TestProcess_KeepsDatabaseMetricWhenAliasPresent(t *testing.T) {
	p := NewProcessor(nil)
	metrics := []domain.NormalizedMetric{
		base("revenue", ordersTable, "total"),
		computed("double_revenue", ordersTable, "revenue * 2", "revenue"),
	}

	// The layered plan already computed the value; it is not re-derived.
	out, err := p.Process([]domain.Row{{"revenue": int64(100), "double_revenue": 200.0}}, metrics)
	require.NoError(t, err)
	assert.Equal(t, 200.0, out[0]["double_revenue"])
}

func TestProcess_LevelsSeeFreshDependencies(t *testing.T) {
	p := NewProcessor(nil)
	metrics := []domain.NormalizedMetric{
		base("revenue", ordersTable, "total"),
		base("refunded", refundsTable, "amount"),
		computed("net", ordersTable, "revenue - refunded", "revenue", "refunded"),
		computed("net_margin", ordersTable, "net / NULLIF(revenue, 0)", "net", "revenue"),
	}

	out, err := p.Process([]domain.Row{
		{"revenue": int64(1000), "refunded": int64(100)},
	}, metrics)
	require.NoError(t, err)
	assert.Equal(t, 900.0, out[0]["net"])
	assert.Equal(t, 0.9, out[0]["net_margin"])
}

func TestProcess_MissingDependencyDegradesToNull(t *testing.T) {
	p := NewProcessor(nil)
	metrics := []domain.NormalizedMetric{
		base("revenue", ordersTable, "total"),
		computed("ratio", ordersTable, "revenue / headcount", "revenue", "headcount"),
	}

	out, err := p.Process([]domain.Row{{"revenue": int64(1000)}}, metrics)
	require.NoError(t, err)
	row := out[0]
	v, present := row["ratio"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestProcess_NoComputedMetricsIsNoop(t *testing.T) {
	p := NewProcessor(nil)
	rows := []domain.Row{{"revenue": int64(1)}}

	out, err := p.Process(rows, []domain.NormalizedMetric{base("revenue", ordersTable, "total")})
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestProcess_CircularDependency(t *testing.T) {
	p := NewProcessor(nil)
	metrics := []domain.NormalizedMetric{
		computed("a", ordersTable, "b", "b"),
		computed("b", ordersTable, "a", "a"),
	}

	_, err := p.Process(nil, metrics)
	var cycleErr *domain.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
}
