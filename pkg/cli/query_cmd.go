package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"metriclens/internal/service/semantic"
)

var aggregateCall = regexp.MustCompile(`^(SUM|AVG|COUNT|MIN|MAX)\(([^)]+)\)$`)

func newQueryCmd(root *rootFlags) *cobra.Command {
	var (
		table      string
		metrics    []string
		dimensions []string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a metric query",
		Long: `Run a metric query against the configured connections.

Metrics are given as [name=]AGG(table.column) for aggregates, or
name=expression for derived metrics, e.g.

  metriclens query \
    --metric 'revenue=SUM(orders.total)' \
    --metric 'aov=revenue / NULLIF(order_count, 0)' \
    --dimension 'orders.region'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := parseQueryRequest(table, metrics, dimensions)
			if err != nil {
				return err
			}
			service, cleanup, err := buildService(root)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := service.Query(cmd.Context(), req)
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(result)
			}
			return printTable(result)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "default table for metrics without one")
	cmd.Flags().StringArrayVar(&metrics, "metric", nil, "metric to compute (repeatable)")
	cmd.Flags().StringArrayVar(&dimensions, "dimension", nil, "dimension as table.name[:granularity] (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	return cmd
}

func parseQueryRequest(table string, metrics, dimensions []string) (semantic.QueryRequest, error) {
	req := semantic.QueryRequest{Table: table}
	for _, m := range metrics {
		mr, err := parseMetricFlag(m)
		if err != nil {
			return semantic.QueryRequest{}, err
		}
		req.Metrics = append(req.Metrics, mr)
	}
	for _, d := range dimensions {
		dr, err := parseDimensionFlag(d)
		if err != nil {
			return semantic.QueryRequest{}, err
		}
		req.Dimensions = append(req.Dimensions, dr)
	}
	return req, nil
}

func parseMetricFlag(value string) (semantic.MetricRequest, error) {
	name := ""
	body := strings.TrimSpace(value)
	if idx := strings.Index(body, "="); idx > 0 {
		candidate := strings.TrimSpace(body[:idx])
		if isIdentifier(candidate) {
			name = candidate
			body = strings.TrimSpace(body[idx+1:])
		}
	}

	if m := aggregateCall.FindStringSubmatch(body); m != nil {
		source := strings.TrimSpace(m[2])
		if !strings.Contains(source, ".") {
			return semantic.MetricRequest{}, fmt.Errorf("metric %q: source must be table.column", value)
		}
		return semantic.MetricRequest{Name: name, Aggregate: m[1], Source: source}, nil
	}

	if name == "" {
		return semantic.MetricRequest{}, fmt.Errorf("metric %q: derived metrics need a name, use name=expression", value)
	}
	return semantic.MetricRequest{Name: name, Expression: body}, nil
}

func parseDimensionFlag(value string) (semantic.DimensionRequest, error) {
	body := strings.TrimSpace(value)
	granularity := ""
	if idx := strings.Index(body, ":"); idx >= 0 {
		granularity = strings.TrimSpace(body[idx+1:])
		body = strings.TrimSpace(body[:idx])
	}
	parts := strings.SplitN(body, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return semantic.DimensionRequest{}, fmt.Errorf("dimension %q must be table.name[:granularity]", value)
	}
	return semantic.DimensionRequest{
		Table:       parts[0],
		Name:        parts[1],
		Granularity: granularity,
	}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(result *semantic.QueryResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			v, ok := row[col]
			if !ok || v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = cast.ToString(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}
