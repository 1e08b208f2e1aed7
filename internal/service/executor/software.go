package executor

import (
	"context"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"metriclens/internal/domain"
)

// runSoftware executes each table's sub-query concurrently, hash-joins the
// rowsets on the plan's relation keys, applies dimension filters, then
// groups and aggregates per dimension tuple — GROUP BY, in process.
func (r *Runner) runSoftware(ctx context.Context, plan domain.SoftwareJoinPlan) ([]domain.Row, error) {
	if len(plan.Tables) == 0 {
		return nil, domain.ErrValidation("software-join plan has no table queries")
	}

	results := make([][]domain.Row, len(plan.Tables))
	g, gctx := errgroup.WithContext(ctx)
	for i, tq := range plan.Tables {
		g.Go(func() error {
			rows, err := r.subQuery(gctx, tq)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTable := map[string][]domain.Row{}
	aliasesByTable := map[string][]string{}
	for i, tq := range plan.Tables {
		byTable[tq.Table.Name] = results[i]
		aliases := append([]string{}, tq.MetricAliases...)
		aliases = append(aliases, tq.DimensionAliases...)
		aliases = append(aliases, tq.KeyAliases...)
		aliasesByTable[tq.Table.Name] = aliases
	}

	merged := results[0]
	for _, edge := range plan.Joins {
		merged = applyJoin(merged, byTable[edge.RightTable], edge, aliasesByTable[edge.RightTable])
	}

	merged = applyFilters(merged, plan.Filters)
	grouped := groupAndAggregate(merged, plan.DimensionOrder, plan.MetricAliases, plan.Aggregates)
	sortRows(grouped, plan.DimensionOrder)
	return grouped, nil
}

// joinKeyString folds a join-key value to its lookup form. The false return
// marks a null key, which never matches (SQL NULL equality semantics).
func joinKeyString(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	return cast.ToString(v), true
}

// applyJoin merges the right rowset into the running merged set by equality
// on the edge's hidden key aliases. Unmatched left rows are dropped, unless
// the edge preserves them, in which case the right side's columns are
// null-filled.
func applyJoin(left, right []domain.Row, edge domain.JoinEdge, rightAliases []string) []domain.Row {
	index := make(map[string][]domain.Row, len(right))
	for _, row := range right {
		key, ok := joinKeyString(row[edge.RightKey])
		if !ok {
			continue
		}
		index[key] = append(index[key], row)
	}

	var out []domain.Row
	for _, lrow := range left {
		var matches []domain.Row
		if key, ok := joinKeyString(lrow[edge.LeftKey]); ok {
			matches = index[key]
		}
		if len(matches) == 0 {
			if edge.PreserveUnmatched {
				row := lrow.Clone()
				for _, alias := range rightAliases {
					if _, present := row[alias]; !present {
						row[alias] = nil
					}
				}
				out = append(out, row)
			}
			continue
		}
		for _, rrow := range matches {
			row := lrow.Clone()
			for k, v := range rrow {
				row[k] = v
			}
			out = append(out, row)
		}
	}
	return out
}

func applyFilters(rows []domain.Row, filters []domain.RowFilter) []domain.Row {
	if len(filters) == 0 {
		return rows
	}
	var out []domain.Row
	for _, row := range rows {
		keep := true
		for _, f := range filters {
			if !matchFilter(row[f.Alias], f.Filter) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

func matchFilter(v interface{}, f domain.DimensionFilter) bool {
	if len(f.Only) > 0 {
		found := false
		for _, want := range f.Only {
			if compareValues(v, want) == 0 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, except := range f.Except {
		if compareValues(v, except) == 0 {
			return false
		}
	}
	if f.Where != nil {
		cmp := compareValues(v, f.Where.Value)
		switch f.Where.Op {
		case domain.FilterOpEq:
			return cmp == 0
		case domain.FilterOpNe:
			return cmp != 0
		case domain.FilterOpGt:
			return cmp > 0
		case domain.FilterOpGte:
			return cmp >= 0
		case domain.FilterOpLt:
			return cmp < 0
		case domain.FilterOpLte:
			return cmp <= 0
		default:
			return false
		}
	}
	return true
}

type groupAccumulator struct {
	dims     domain.Row
	intSums  map[string]int64
	fltSums  map[string]float64
	sawFloat map[string]bool
	sawAny   map[string]bool
	counts   map[string]int64
	extremes map[string]interface{}
}

func (acc *groupAccumulator) addSum(alias string, v interface{}) {
	switch x := v.(type) {
	case int64:
		acc.intSums[alias] += x
		acc.sawAny[alias] = true
	case int:
		acc.intSums[alias] += int64(x)
		acc.sawAny[alias] = true
	default:
		if f, ok := isNumeric(v); ok {
			acc.fltSums[alias] += f
			acc.sawFloat[alias] = true
			acc.sawAny[alias] = true
		}
	}
}

// groupAndAggregate collapses rows with identical dimension tuples, applying
// each metric alias's aggregate function across the group; aliases without a
// registered function sum. The merged input carries raw per-row values with
// native join multiplicity, so aggregating here matches the result a backend
// join-then-aggregate query would return. Sums stay integral unless a float
// value was seen, mirroring the backend's aggregate typing. Hidden join-key
// columns are dropped here: the output carries dimensions and metrics only.
func groupAndAggregate(rows []domain.Row, dimOrder, metricAliases []string, aggregates map[string]string) []domain.Row {
	groups := map[string]*groupAccumulator{}
	var order []string

	for _, row := range rows {
		var keyParts []string
		dims := domain.Row{}
		for _, alias := range dimOrder {
			v := row[alias]
			dims[alias] = v
			if v == nil {
				keyParts = append(keyParts, "\x00")
			} else {
				keyParts = append(keyParts, cast.ToString(v))
			}
		}
		key := strings.Join(keyParts, "\x1f")

		acc, ok := groups[key]
		if !ok {
			acc = &groupAccumulator{
				dims:     dims,
				intSums:  map[string]int64{},
				fltSums:  map[string]float64{},
				sawFloat: map[string]bool{},
				sawAny:   map[string]bool{},
				counts:   map[string]int64{},
				extremes: map[string]interface{}{},
			}
			groups[key] = acc
			order = append(order, key)
		}
		for _, alias := range metricAliases {
			v := row[alias]
			if v == nil {
				continue
			}
			switch aggregates[alias] {
			case domain.AggregateCount:
				acc.counts[alias]++
			case domain.AggregateAvg:
				if f, ok := isNumeric(v); ok {
					acc.fltSums[alias] += f
					acc.counts[alias]++
				}
			case domain.AggregateMin:
				if cur, ok := acc.extremes[alias]; !ok || compareValues(v, cur) < 0 {
					acc.extremes[alias] = v
				}
			case domain.AggregateMax:
				if cur, ok := acc.extremes[alias]; !ok || compareValues(v, cur) > 0 {
					acc.extremes[alias] = v
				}
			default:
				acc.addSum(alias, v)
			}
		}
	}

	out := make([]domain.Row, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		row := acc.dims.Clone()
		for _, alias := range metricAliases {
			switch aggregates[alias] {
			case domain.AggregateCount:
				// COUNT over an empty group is zero, not null.
				row[alias] = acc.counts[alias]
			case domain.AggregateAvg:
				if acc.counts[alias] > 0 {
					row[alias] = acc.fltSums[alias] / float64(acc.counts[alias])
				} else {
					row[alias] = nil
				}
			case domain.AggregateMin, domain.AggregateMax:
				if v, ok := acc.extremes[alias]; ok {
					row[alias] = v
				} else {
					row[alias] = nil
				}
			default:
				switch {
				case !acc.sawAny[alias]:
					row[alias] = nil
				case acc.sawFloat[alias]:
					row[alias] = float64(acc.intSums[alias]) + acc.fltSums[alias]
				default:
					row[alias] = acc.intSums[alias]
				}
			}
		}
		out = append(out, row)
	}
	return out
}

// sortRows orders output by the dimension tuple, matching the ORDER BY a
// native plan emits.
func sortRows(rows []domain.Row, dimOrder []string) {
	if len(dimOrder) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, alias := range dimOrder {
			if cmp := compareValues(rows[i][alias], rows[j][alias]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}
