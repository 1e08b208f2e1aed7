// Package semantic is the engine facade: it normalizes metric and dimension
// requests against the catalog, then plans, executes, and post-processes the
// query.
package semantic

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"metriclens/internal/domain"
	"metriclens/internal/expression"
	"metriclens/internal/service/executor"
	"metriclens/internal/service/metric"
	"metriclens/internal/service/planner"
	"metriclens/internal/service/postprocess"
)

// Service runs the full query pipeline over one catalog snapshot.
type Service struct {
	catalog domain.Catalog
	builder *planner.Builder
	runner  *executor.Runner
	post    *postprocess.Processor
	logger  *slog.Logger
}

// NewService creates a Service over the given catalog and connections.
func NewService(catalog domain.Catalog, conns domain.Connections, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog: catalog,
		builder: planner.NewBuilder(catalog, conns, logger),
		runner:  executor.NewRunner(conns, logger),
		post:    postprocess.NewProcessor(logger),
		logger:  logger,
	}
}

// Build compiles normalized metrics and dimensions into a query plan.
func (s *Service) Build(metrics []domain.NormalizedMetric, dimensions []domain.Dimension) (domain.QueryPlan, error) {
	return s.builder.Build(metrics, dimensions)
}

// Run executes a plan and returns normalized rows.
func (s *Service) Run(ctx context.Context, plan domain.QueryPlan) ([]domain.Row, error) {
	return s.runner.Run(ctx, plan)
}

// PostProcess evaluates any remaining computed metrics over the rows.
func (s *Service) PostProcess(rows []domain.Row, metrics []domain.NormalizedMetric) ([]domain.Row, error) {
	return s.post.Process(rows, metrics)
}

// Query runs the whole pipeline for one request.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	metrics, dimensions, err := s.Normalize(req)
	if err != nil {
		return nil, err
	}

	plan, err := s.builder.Build(metrics, dimensions)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.runner.Run(ctx, plan)
	if err != nil {
		return nil, err
	}
	rows, err = s.post.Process(rows, metrics)
	if err != nil {
		return nil, err
	}

	columns := resultColumns(metrics, dimensions)
	s.logger.Info("metric query executed",
		"strategy", strategyName(plan),
		"metrics", len(metrics),
		"dimensions", len(dimensions),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &QueryResult{Columns: columns, Rows: rows}, nil
}

// Explain builds the plan for a request without executing it.
func (s *Service) Explain(req QueryRequest) (*Explanation, error) {
	metrics, dimensions, err := s.Normalize(req)
	if err != nil {
		return nil, err
	}
	plan, err := s.builder.Build(metrics, dimensions)
	if err != nil {
		return nil, err
	}
	levels, err := metric.Levels(metrics)
	if err != nil {
		return nil, err
	}

	out := &Explanation{Strategy: strategyName(plan), Levels: levels}
	for _, d := range dimensions {
		out.DimensionOrder = append(out.DimensionOrder, d.Alias())
	}
	switch p := plan.(type) {
	case domain.SimplePlan:
		out.Queries = []ExplainQuery{{Connection: p.Connection, SQL: p.SQL}}
	case domain.LayeredPlan:
		out.Queries = []ExplainQuery{{Connection: p.Connection, SQL: p.SQL}}
	case domain.SoftwareJoinPlan:
		for _, tq := range p.Tables {
			out.Queries = append(out.Queries, ExplainQuery{
				Connection: tq.Table.Connection,
				Table:      tq.Table.Name,
				SQL:        tq.SQL,
			})
		}
		out.Joins = p.Joins
	}
	return out, nil
}

// Normalize resolves a request against the catalog into the units the
// planner operates on.
func (s *Service) Normalize(req QueryRequest) ([]domain.NormalizedMetric, []domain.Dimension, error) {
	if len(req.Metrics) == 0 {
		return nil, nil, domain.ErrValidation("at least one metric is required")
	}

	metrics := make([]domain.NormalizedMetric, len(req.Metrics))
	seenKeys := map[string]bool{}
	var defaultTable domain.Table
	if req.Table != "" {
		t, ok := s.tableByName(req.Table)
		if !ok {
			return nil, nil, domain.ErrNotFound("unknown table %q", req.Table)
		}
		defaultTable = t
	}

	// Base metrics resolve first so computed metrics can anchor to the
	// first base metric's table regardless of request order.
	for i, mr := range req.Metrics {
		if mr.Expression != "" {
			continue
		}
		m, err := s.normalizeMetric(mr, defaultTable)
		if err != nil {
			return nil, nil, err
		}
		if seenKeys[m.Key] {
			return nil, nil, domain.ErrValidation("duplicate metric key %q", m.Key)
		}
		seenKeys[m.Key] = true
		if defaultTable.Name == "" {
			defaultTable = m.Table
		}
		metrics[i] = m
	}
	for i, mr := range req.Metrics {
		if mr.Expression == "" {
			continue
		}
		m, err := s.normalizeMetric(mr, defaultTable)
		if err != nil {
			return nil, nil, err
		}
		if seenKeys[m.Key] {
			return nil, nil, domain.ErrValidation("duplicate metric key %q", m.Key)
		}
		seenKeys[m.Key] = true
		metrics[i] = m
	}

	var dimensions []domain.Dimension
	for _, dr := range req.Dimensions {
		d, err := s.normalizeDimension(dr)
		if err != nil {
			return nil, nil, err
		}
		dimensions = append(dimensions, d)
	}
	return metrics, dimensions, nil
}

func (s *Service) normalizeMetric(mr MetricRequest, defaultTable domain.Table) (domain.NormalizedMetric, error) {
	if mr.Expression != "" {
		node, err := expression.Parse(mr.Expression)
		if err != nil {
			return domain.NormalizedMetric{}, domain.ErrValidation("metric %q: invalid expression: %v", mr.Name, err)
		}
		if mr.Name == "" {
			return domain.NormalizedMetric{}, domain.ErrValidation("computed metrics require a name")
		}
		table := defaultTable
		if mr.Table != "" {
			t, ok := s.tableByName(mr.Table)
			if !ok {
				return domain.NormalizedMetric{}, domain.ErrNotFound("metric %q: unknown table %q", mr.Name, mr.Table)
			}
			table = t
		}
		if table.Name == "" {
			return domain.NormalizedMetric{}, domain.ErrValidation("metric %q: computed metrics need a table anchor", mr.Name)
		}
		return domain.NormalizedMetric{
			Key:          mr.Name,
			Table:        table,
			Definition:   domain.Computed{Expression: mr.Expression},
			Dependencies: expression.Identifiers(node),
		}, nil
	}

	if mr.Source == "" {
		return domain.NormalizedMetric{}, domain.ErrValidation("metric %q: either source or expression is required", mr.Name)
	}
	source, err := s.catalog.ResolveMetricSource(mr.Source)
	if err != nil {
		return domain.NormalizedMetric{}, err
	}
	agg := strings.ToUpper(strings.TrimSpace(mr.Aggregate))
	if agg == "" {
		agg = domain.AggregateSum
	}
	key := mr.Name
	if key == "" {
		key = source.Table.Name + "_" + source.Column
	}
	m := domain.NormalizedMetric{
		Key:        key,
		Table:      source.Table,
		Definition: domain.BaseAggregate{Func: agg, Column: source.Column},
	}
	if err := m.Validate(); err != nil {
		return domain.NormalizedMetric{}, err
	}
	return m, nil
}

func (s *Service) normalizeDimension(dr DimensionRequest) (domain.Dimension, error) {
	table, ok := s.tableByName(dr.Table)
	if !ok {
		return domain.Dimension{}, domain.ErrNotFound("dimension %q: unknown table %q", dr.Name, dr.Table)
	}

	var dim domain.Dimension
	found := false
	for _, d := range s.catalog.Dimensions(table) {
		if d.Name == dr.Name {
			dim = d
			found = true
			break
		}
	}
	if !found {
		return domain.Dimension{}, domain.ErrNotFound("table %q has no dimension %q", dr.Table, dr.Name)
	}

	if dr.Granularity != "" {
		if !validGrain(dr.Granularity) {
			return domain.Dimension{}, domain.ErrValidation(
				"dimension %q: granularity must be hour, day, week, month, or year", dr.Name)
		}
		dim.Granularity = dr.Granularity
	}

	filter := &domain.DimensionFilter{Only: dr.Only, Except: dr.Except}
	if dr.Where != nil {
		filter.Where = &domain.WherePredicate{Op: dr.Where.Op, Value: dr.Where.Value}
	}
	if !filter.Empty() {
		dim.Filter = filter
	}
	return dim, nil
}

func (s *Service) tableByName(name string) (domain.Table, bool) {
	for _, t := range s.catalog.Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return domain.Table{}, false
}

func validGrain(g string) bool {
	switch g {
	case domain.GrainHour, domain.GrainDay, domain.GrainWeek, domain.GrainMonth, domain.GrainYear:
		return true
	}
	return false
}

func resultColumns(metrics []domain.NormalizedMetric, dimensions []domain.Dimension) []string {
	var cols []string
	for _, d := range dimensions {
		cols = append(cols, d.Alias())
	}
	for _, m := range metrics {
		cols = append(cols, m.Key)
	}
	return cols
}

func strategyName(plan domain.QueryPlan) string {
	switch plan.(type) {
	case domain.SimplePlan:
		return "simple"
	case domain.LayeredPlan:
		return "layered"
	case domain.SoftwareJoinPlan:
		return "software_join"
	default:
		return "unknown"
	}
}
