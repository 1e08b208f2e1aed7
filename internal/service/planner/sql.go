package planner

import (
	"fmt"
	"strconv"
	"strings"

	"metriclens/internal/domain"
	"metriclens/internal/expression"
	"metriclens/internal/service/join"
	"metriclens/internal/service/metric"
)

func (b *Builder) buildSimplePlan(metrics []domain.NormalizedMetric, dimensions []domain.Dimension, tables []domain.Table, connection string, grammar domain.Grammar) (domain.QueryPlan, error) {
	body, err := b.nativeSelect(metrics, dimensions, tables, grammar, true)
	if err != nil {
		return nil, err
	}
	return domain.SimplePlan{Connection: connection, SQL: body}, nil
}

// buildLayeredPlan emits the base aggregates as level 0 and each
// database-computable expression metric in the CTE layer matching its
// dependency level. Software-classified metrics are left to postprocessing;
// their aliases never appear in the SQL.
func (b *Builder) buildLayeredPlan(metrics, database []domain.NormalizedMetric, dimensions []domain.Dimension, tables []domain.Table, connection string, grammar domain.Grammar) (domain.QueryPlan, error) {
	levels, err := metric.Levels(metrics)
	if err != nil {
		return nil, err
	}

	base, err := b.nativeSelect(metrics, dimensions, tables, grammar, false)
	if err != nil {
		return nil, err
	}
	levelBodies := []string{base}

	maxLevel := 0
	for _, m := range database {
		if !m.IsComputed() {
			continue
		}
		if lvl := levels[m.Key]; lvl > maxLevel {
			maxLevel = lvl
		}
	}
	if maxLevel == 0 {
		maxLevel = 1
	}
	for lvl := 1; lvl <= maxLevel; lvl++ {
		var exprs []string
		for _, m := range database {
			def, ok := m.Definition.(domain.Computed)
			if !ok {
				continue
			}
			mlvl := levels[m.Key]
			if mlvl == 0 {
				// A constant computed metric still needs a layer to live in.
				mlvl = 1
			}
			if mlvl != lvl {
				continue
			}
			node, perr := expression.Parse(def.Expression)
			if perr != nil {
				return nil, domain.ErrValidation("metric %q: invalid expression: %v", m.Key, perr)
			}
			sql := node.SQL(func(id string) string {
				return "CAST(" + id + " AS DOUBLE)"
			})
			exprs = append(exprs, sql+" AS "+m.Key)
		}
		body := "SELECT *"
		if len(exprs) > 0 {
			body += ", " + strings.Join(exprs, ", ")
		}
		body += fmt.Sprintf(" FROM level%d", lvl-1)
		levelBodies = append(levelBodies, body)
	}

	var sb strings.Builder
	sb.WriteString("WITH ")
	for i, body := range levelBodies {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "level%d AS (%s)", i, body)
	}
	fmt.Fprintf(&sb, " SELECT * FROM level%d", len(levelBodies)-1)
	if len(dimensions) > 0 {
		var order []string
		for _, d := range dimensions {
			order = append(order, d.Alias())
		}
		sb.WriteString(" ORDER BY " + strings.Join(order, ", "))
	}

	return domain.LayeredPlan{Connection: connection, Levels: levelBodies, SQL: sb.String()}, nil
}

// nativeSelect assembles the fully joined, grouped SELECT for the base
// aggregates and dimensions. When ordered is true an ORDER BY mirroring the
// GROUP BY is appended, for deterministic output.
func (b *Builder) nativeSelect(metrics []domain.NormalizedMetric, dimensions []domain.Dimension, tables []domain.Table, grammar domain.Grammar, ordered bool) (string, error) {
	var joinClauses []string
	if len(tables) > 1 {
		relations, err := b.joins.BuildGraph(tables)
		if err != nil {
			return "", err
		}
		joined := map[string]bool{tables[0].Name: true}
		for _, rel := range relations {
			preds, perr := join.Predicates(rel)
			if perr != nil {
				return "", perr
			}
			for _, p := range preds {
				if joined[p.RightTable] {
					continue
				}
				joined[p.RightTable] = true
				joinClauses = append(joinClauses, fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
					p.RightTable, p.LeftTable, p.LeftColumn, p.RightTable, p.RightColumn))
			}
		}
	}

	var selectParts, groupParts, whereParts []string
	for _, d := range dimensions {
		expr := dimensionExpr(d, grammar)
		selectParts = append(selectParts, expr+" AS "+d.Alias())
		groupParts = append(groupParts, expr)
		whereParts = append(whereParts, filterPredicates(expr, d.Filter)...)
	}
	for _, m := range baseMetrics(metrics) {
		def := m.Definition.(domain.BaseAggregate)
		selectParts = append(selectParts, fmt.Sprintf("%s(%s.%s) AS %s", def.Func, m.Table.Name, def.Column, m.Key))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + strings.Join(selectParts, ", "))
	sb.WriteString(" FROM " + tables[0].Name)
	if len(joinClauses) > 0 {
		sb.WriteString(" " + strings.Join(joinClauses, " "))
	}
	if len(whereParts) > 0 {
		sb.WriteString(" WHERE " + strings.Join(whereParts, " AND "))
	}
	if len(groupParts) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(groupParts, ", "))
		if ordered {
			sb.WriteString(" ORDER BY " + strings.Join(groupParts, ", "))
		}
	}
	return sb.String(), nil
}

// dimensionExpr resolves a dimension to its SQL expression: the raw column,
// or the grammar's bucketing expression for time dimensions. The same
// expression is used in SELECT, WHERE, GROUP BY, and ORDER BY.
func dimensionExpr(d domain.Dimension, grammar domain.Grammar) string {
	if d.Granularity != "" && grammar != nil {
		return grammar.TimeBucket(d.Table.Name, d.Column, d.Granularity)
	}
	return d.Table.Name + "." + d.Column
}

func filterPredicates(expr string, f *domain.DimensionFilter) []string {
	if f.Empty() {
		return nil
	}
	var preds []string
	if len(f.Only) > 0 {
		preds = append(preds, fmt.Sprintf("%s IN (%s)", expr, literalList(f.Only)))
	}
	if len(f.Except) > 0 {
		preds = append(preds, fmt.Sprintf("%s NOT IN (%s)", expr, literalList(f.Except)))
	}
	if f.Where != nil {
		preds = append(preds, fmt.Sprintf("%s %s %s", expr, f.Where.Op, sqlLiteral(f.Where.Value)))
	}
	return preds
}

func literalList(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = sqlLiteral(v)
	}
	return strings.Join(parts, ", ")
}

func sqlLiteral(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", x), "'", "''") + "'"
	}
}
