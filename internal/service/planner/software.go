package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"metriclens/internal/domain"
	"metriclens/internal/service/join"
)

func keyAlias(table, column string) string {
	return "__key_" + table + "_" + column
}

// buildSoftwarePlan decomposes the query into one sub-query per table, joined
// and aggregated in process. This is the fallback that works across any set
// of connections.
func (b *Builder) buildSoftwarePlan(metrics []domain.NormalizedMetric, dimensions []domain.Dimension, tables []domain.Table) (domain.QueryPlan, error) {
	relations, err := b.joins.BuildGraph(tables)
	if err != nil {
		var unresolvable *domain.UnresolvableJoinError
		if errors.As(err, &unresolvable) {
			if conns := distinctConnections(tables); len(conns) > 1 {
				return nil, domain.ErrCrossConnection(conns[0], conns[1])
			}
		}
		return nil, err
	}

	base := baseMetrics(metrics)
	hasMetrics := map[string]bool{}
	for _, m := range base {
		hasMetrics[m.Table.Name] = true
	}
	hasDims := map[string]bool{}
	for _, d := range dimensions {
		hasDims[d.Table.Name] = true
	}

	keyColumns := map[string]map[string]bool{}
	addKey := func(table, column string) {
		if keyColumns[table] == nil {
			keyColumns[table] = map[string]bool{}
		}
		keyColumns[table][column] = true
	}

	var joinEdges []domain.JoinEdge
	var pivots []domain.Table
	for _, rel := range relations {
		preds, perr := join.Predicates(rel)
		if perr != nil {
			return nil, perr
		}
		if rel.Kind == domain.RelationBelongsToMany {
			pivots = append(pivots, domain.Table{Name: rel.Keys.PivotTable, Connection: rel.From.Connection})
		}
		for _, p := range preds {
			addKey(p.LeftTable, p.LeftColumn)
			addKey(p.RightTable, p.RightColumn)
			joinEdges = append(joinEdges, domain.JoinEdge{
				RightTable:        p.RightTable,
				LeftKey:           keyAlias(p.LeftTable, p.LeftColumn),
				RightKey:          keyAlias(p.RightTable, p.RightColumn),
				PreserveUnmatched: !hasMetrics[p.RightTable] && hasDims[p.RightTable],
			})
		}
	}

	queryTables := make([]domain.Table, 0, len(tables)+len(pivots))
	seen := map[string]bool{}
	for _, t := range append(append([]domain.Table{}, tables...), pivots...) {
		key := t.Connection + "." + t.Name
		if !seen[key] {
			seen[key] = true
			queryTables = append(queryTables, t)
		}
	}

	tableQueries := make([]domain.TableQuery, 0, len(queryTables))
	for _, t := range queryTables {
		tq, terr := b.tableQuery(t, base, dimensions, keyColumns[t.Name])
		if terr != nil {
			return nil, terr
		}
		tableQueries = append(tableQueries, tq)
	}

	var dimensionOrder []string
	var filters []domain.RowFilter
	for _, d := range dimensions {
		dimensionOrder = append(dimensionOrder, d.Alias())
		if !d.Filter.Empty() {
			filters = append(filters, domain.RowFilter{Alias: d.Alias(), Filter: *d.Filter})
		}
	}
	var metricAliases []string
	aggregates := make(map[string]string, len(base))
	for _, m := range base {
		metricAliases = append(metricAliases, m.Key)
		aggregates[m.Key] = m.Definition.(domain.BaseAggregate).Func
	}

	return domain.SoftwareJoinPlan{
		Tables:         tableQueries,
		Joins:          joinEdges,
		DimensionOrder: dimensionOrder,
		MetricAliases:  metricAliases,
		Aggregates:     aggregates,
		Filters:        filters,
	}, nil
}

// tableQuery builds one table's independent sub-query: its own dimensions,
// raw metric columns, and hidden join-key columns. Rows are never
// pre-aggregated here; collapsing a many-side table before the hash join
// would lose the row multiplicity a native join preserves, so aggregation
// happens in the executor after the merge. Dimension filters are not pushed
// down either; they apply post-fetch over the merged rows.
func (b *Builder) tableQuery(t domain.Table, base []domain.NormalizedMetric, dimensions []domain.Dimension, keys map[string]bool) (domain.TableQuery, error) {
	keyCols := make([]string, 0, len(keys))
	for col := range keys {
		keyCols = append(keyCols, col)
	}
	sort.Strings(keyCols)

	var grammar domain.Grammar
	var selectParts []string
	var dimAliases, keyAliases, metricAliases []string

	for _, d := range dimensions {
		if d.Table.Name != t.Name || d.Table.Connection != t.Connection {
			continue
		}
		if d.Granularity != "" && grammar == nil {
			g, err := b.conns.Grammar(t.Connection)
			if err != nil {
				return domain.TableQuery{}, domain.ErrValidation(
					"connection %q has no grammar to bucket dimension %q", t.Connection, d.Name)
			}
			grammar = g
		}
		expr := dimensionExpr(d, grammar)
		selectParts = append(selectParts, expr+" AS "+d.Alias())
		dimAliases = append(dimAliases, d.Alias())
	}

	for _, col := range keyCols {
		alias := keyAlias(t.Name, col)
		selectParts = append(selectParts, t.Name+"."+col+" AS "+alias)
		keyAliases = append(keyAliases, alias)
	}

	for _, m := range base {
		if m.Table.Name != t.Name || m.Table.Connection != t.Connection {
			continue
		}
		def := m.Definition.(domain.BaseAggregate)
		selectParts = append(selectParts, fmt.Sprintf("%s.%s AS %s", t.Name, def.Column, m.Key))
		metricAliases = append(metricAliases, m.Key)
	}

	if len(selectParts) == 0 {
		return domain.TableQuery{}, domain.ErrValidation("table %q contributes no columns to the query", t.Name)
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + strings.Join(selectParts, ", "))
	sb.WriteString(" FROM " + t.Name)

	return domain.TableQuery{
		Table:            t,
		SQL:              sb.String(),
		MetricAliases:    metricAliases,
		DimensionAliases: dimAliases,
		KeyAliases:       keyAliases,
	}, nil
}
