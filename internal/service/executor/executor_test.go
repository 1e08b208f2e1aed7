package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriclens/internal/domain"
	"metriclens/internal/testutil"
)

func TestRunner_SimplePlanNormalizesRows(t *testing.T) {
	adapter := &testutil.FakeAdapter{Rows: []domain.Row{
		{"orders_region": "EU", "revenue": "1200", "aov": "24.5"},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), domain.SimplePlan{Connection: "primary", SQL: "SELECT 1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EU", rows[0]["orders_region"])
	assert.Equal(t, int64(1200), rows[0]["revenue"])
	assert.Equal(t, 24.5, rows[0]["aov"])
	assert.Equal(t, []string{"SELECT 1"}, adapter.Queries)
}

func TestRunner_UnknownConnection(t *testing.T) {
	runner := NewRunner(&testutil.FakeConnections{}, nil)

	_, err := runner.Run(context.Background(), domain.SimplePlan{Connection: "nope", SQL: "SELECT 1"})
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRunner_AdapterErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	adapter := &testutil.FakeAdapter{Err: boom}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	_, err := runner.Run(context.Background(), domain.LayeredPlan{Connection: "primary", SQL: "SELECT 1"})
	require.ErrorIs(t, err, boom)
}

func TestRunner_UnknownPlanVariant(t *testing.T) {
	runner := NewRunner(&testutil.FakeConnections{}, nil)

	_, err := runner.Run(context.Background(), nil)
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func softwarePlanFixture() domain.SoftwareJoinPlan {
	orders := domain.Table{Name: "orders", Connection: "primary"}
	refunds := domain.Table{Name: "refunds", Connection: "primary"}
	return domain.SoftwareJoinPlan{
		Tables: []domain.TableQuery{
			{
				Table:            orders,
				SQL:              "SELECT -- orders",
				MetricAliases:    []string{"revenue"},
				DimensionAliases: []string{"orders_region"},
				KeyAliases:       []string{"__key_orders_id"},
			},
			{
				Table:         refunds,
				SQL:           "SELECT -- refunds",
				MetricAliases: []string{"refunded"},
				KeyAliases:    []string{"__key_refunds_order_id"},
			},
		},
		Joins: []domain.JoinEdge{{
			RightTable: "refunds",
			LeftKey:    "__key_orders_id",
			RightKey:   "__key_refunds_order_id",
		}},
		DimensionOrder: []string{"orders_region"},
		MetricAliases:  []string{"revenue", "refunded"},
	}
}

func TestRunner_SoftwareJoinGroupsAndSums(t *testing.T) {
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "__key_orders_id": int64(1), "revenue": int64(100)},
			{"orders_region": "EU", "__key_orders_id": int64(2), "revenue": int64(250)},
			{"orders_region": "US", "__key_orders_id": int64(3), "revenue": int64(400)},
		},
		"refunds": {
			{"__key_refunds_order_id": int64(1), "refunded": int64(10)},
			{"__key_refunds_order_id": int64(2), "refunded": int64(25)},
			{"__key_refunds_order_id": int64(3), "refunded": int64(40)},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), softwarePlanFixture())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.Row{"orders_region": "EU", "revenue": int64(350), "refunded": int64(35)}, rows[0])
	assert.Equal(t, domain.Row{"orders_region": "US", "revenue": int64(400), "refunded": int64(40)}, rows[1])
	// One sub-query per table.
	assert.Len(t, adapter.Queries, 2)
}

func TestRunner_SoftwareJoinInnerDropsUnmatched(t *testing.T) {
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "__key_orders_id": int64(1), "revenue": int64(100)},
			{"orders_region": "US", "__key_orders_id": int64(3), "revenue": int64(400)},
		},
		"refunds": {
			{"__key_refunds_order_id": int64(1), "refunded": int64(10)},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), softwarePlanFixture())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EU", rows[0]["orders_region"])
}

func TestRunner_SoftwareJoinPreservesUnmatched(t *testing.T) {
	plan := softwarePlanFixture()
	plan.Joins[0].PreserveUnmatched = true
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "__key_orders_id": int64(1), "revenue": int64(100)},
			{"orders_region": "US", "__key_orders_id": int64(3), "revenue": int64(400)},
		},
		"refunds": {
			{"__key_refunds_order_id": int64(1), "refunded": int64(10)},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(10), rows[0]["refunded"])
	// No refund rows contributed: the sum is null, not zero.
	assert.Nil(t, rows[1]["refunded"])
}

func TestRunner_SoftwareJoinNullKeysNeverMatch(t *testing.T) {
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "__key_orders_id": nil, "revenue": int64(100)},
		},
		"refunds": {
			{"__key_refunds_order_id": nil, "refunded": int64(10)},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), softwarePlanFixture())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunner_SoftwareJoinFanOut(t *testing.T) {
	// Two refund rows for one order multiply through the join: the one
	// side's value is counted once per match, as a native join would.
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "__key_orders_id": int64(1), "revenue": int64(100)},
		},
		"refunds": {
			{"__key_refunds_order_id": int64(1), "refunded": int64(10)},
			{"__key_refunds_order_id": int64(1), "refunded": int64(5)},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), softwarePlanFixture())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(200), rows[0]["revenue"])
	assert.Equal(t, int64(15), rows[0]["refunded"])
}

func TestRunner_SoftwareAggregateFunctions(t *testing.T) {
	aliases := []string{"order_count", "avg_total", "min_total", "max_total"}
	plan := domain.SoftwareJoinPlan{
		Tables: []domain.TableQuery{{
			Table:            domain.Table{Name: "orders", Connection: "primary"},
			SQL:              "SELECT -- orders",
			MetricAliases:    aliases,
			DimensionAliases: []string{"orders_region"},
		}},
		DimensionOrder: []string{"orders_region"},
		MetricAliases:  aliases,
		Aggregates: map[string]string{
			"order_count": domain.AggregateCount,
			"avg_total":   domain.AggregateAvg,
			"min_total":   domain.AggregateMin,
			"max_total":   domain.AggregateMax,
		},
	}
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "order_count": int64(100), "avg_total": int64(100), "min_total": int64(100), "max_total": int64(100)},
			{"orders_region": "EU", "order_count": int64(250), "avg_total": int64(250), "min_total": int64(250), "max_total": int64(250)},
			{"orders_region": "EU", "order_count": nil, "avg_total": nil, "min_total": nil, "max_total": nil},
			{"orders_region": "US", "order_count": nil, "avg_total": nil, "min_total": nil, "max_total": nil},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.Row{
		"orders_region": "EU",
		"order_count":   int64(2),
		"avg_total":     175.0,
		"min_total":     int64(100),
		"max_total":     int64(250),
	}, rows[0])
	// All-null group: COUNT is zero, the rest degrade to null.
	assert.Equal(t, domain.Row{
		"orders_region": "US",
		"order_count":   int64(0),
		"avg_total":     nil,
		"min_total":     nil,
		"max_total":     nil,
	}, rows[1])
}

func TestRunner_SoftwareJoinAppliesFilters(t *testing.T) {
	plan := softwarePlanFixture()
	plan.Filters = []domain.RowFilter{{
		Alias:  "orders_region",
		Filter: domain.DimensionFilter{Only: []interface{}{"EU"}},
	}}
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "__key_orders_id": int64(1), "revenue": int64(100)},
			{"orders_region": "US", "__key_orders_id": int64(3), "revenue": int64(400)},
		},
		"refunds": {
			{"__key_refunds_order_id": int64(1), "refunded": int64(10)},
			{"__key_refunds_order_id": int64(3), "refunded": int64(40)},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EU", rows[0]["orders_region"])
}

type blockingAdapter struct{}

func (blockingAdapter) Execute(ctx context.Context, _ string) ([]domain.Row, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunner_SoftwareJoinCancellation(t *testing.T) {
	runner := NewRunner(testutil.SingleConnection("primary", blockingAdapter{}, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.Run(ctx, softwarePlanFixture())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_SoftwareJoinSubQueryErrorNamesTable(t *testing.T) {
	adapter := &testutil.FakeAdapter{Err: errors.New("table vanished")}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	_, err := runner.Run(context.Background(), softwarePlanFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sub-query for table")
}

func TestRunner_SoftwareJoinFloatPromotion(t *testing.T) {
	adapter := &testutil.FakeAdapter{RowsFor: map[string][]domain.Row{
		"orders": {
			{"orders_region": "EU", "__key_orders_id": int64(1), "revenue": int64(100)},
			{"orders_region": "EU", "__key_orders_id": int64(2), "revenue": 0.5},
		},
		"refunds": {
			{"__key_refunds_order_id": int64(1), "refunded": int64(1)},
			{"__key_refunds_order_id": int64(2), "refunded": int64(2)},
		},
	}}
	runner := NewRunner(testutil.SingleConnection("primary", adapter, nil), nil)

	rows, err := runner.Run(context.Background(), softwarePlanFixture())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 100.5, rows[0]["revenue"])
	assert.Equal(t, int64(3), rows[0]["refunded"])
}

func TestMatchFilter_WhereOperators(t *testing.T) {
	cases := []struct {
		op    string
		value interface{}
		in    interface{}
		want  bool
	}{
		{domain.FilterOpEq, int64(5), int64(5), true},
		{domain.FilterOpEq, int64(5), int64(6), false},
		{domain.FilterOpNe, "EU", "US", true},
		{domain.FilterOpGt, int64(10), int64(11), true},
		{domain.FilterOpGte, int64(10), int64(10), true},
		{domain.FilterOpLt, int64(10), int64(9), true},
		{domain.FilterOpLte, int64(10), int64(11), false},
	}
	for _, tc := range cases {
		got := matchFilter(tc.in, domain.DimensionFilter{
			Where: &domain.WherePredicate{Op: tc.op, Value: tc.value},
		})
		assert.Equal(t, tc.want, got, "%v %s %v", tc.in, tc.op, tc.value)
	}
}

func TestMatchFilter_ExceptDropsValues(t *testing.T) {
	f := domain.DimensionFilter{Except: []interface{}{"EU"}}
	assert.False(t, matchFilter("EU", f))
	assert.True(t, matchFilter("US", f))
}

func TestNormalizeValue(t *testing.T) {
	assert.Nil(t, NormalizeValue(nil))
	assert.Equal(t, int64(42), NormalizeValue("42"))
	assert.Equal(t, 4.5, NormalizeValue("4.5"))
	assert.Equal(t, int64(7), NormalizeValue([]byte("7")))
	assert.Equal(t, "EU", NormalizeValue("EU"))
	// Already-typed values pass through, so normalization is idempotent.
	assert.Equal(t, int64(42), NormalizeValue(int64(42)))
	assert.Equal(t, 4.5, NormalizeValue(4.5))
	assert.Equal(t, true, NormalizeValue(true))
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, compareValues(nil, nil))
	assert.Equal(t, -1, compareValues(nil, int64(1)))
	assert.Equal(t, 1, compareValues(int64(1), nil))
	assert.Equal(t, -1, compareValues(int64(1), 2.0))
	assert.Equal(t, 0, compareValues(int64(2), 2.0))
	assert.Equal(t, -1, compareValues("EU", "US"))
}

func TestSortRows_NullsFirst(t *testing.T) {
	rows := []domain.Row{
		{"d": "US"},
		{"d": nil},
		{"d": "EU"},
	}
	sortRows(rows, []string{"d"})
	assert.Nil(t, rows[0]["d"])
	assert.Equal(t, "EU", rows[1]["d"])
	assert.Equal(t, "US", rows[2]["d"])
}
