// Package executor runs query plans: native queries are handed straight to
// the backend adapter, software-join plans are assembled in process.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"metriclens/internal/domain"
)

// Runner executes query plans against registered connections.
type Runner struct {
	conns  domain.Connections
	logger *slog.Logger
}

// NewRunner creates a Runner over the given connections.
func NewRunner(conns domain.Connections, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{conns: conns, logger: logger}
}

// Run executes the plan and returns normalized result rows. Native execution
// errors propagate unmodified; the engine never retries.
func (r *Runner) Run(ctx context.Context, plan domain.QueryPlan) ([]domain.Row, error) {
	switch p := plan.(type) {
	case domain.SimplePlan:
		return r.runNative(ctx, p.Connection, p.SQL)
	case domain.LayeredPlan:
		return r.runNative(ctx, p.Connection, p.SQL)
	case domain.SoftwareJoinPlan:
		return r.runSoftware(ctx, p)
	default:
		return nil, domain.ErrValidation("unknown plan variant %T", plan)
	}
}

func (r *Runner) runNative(ctx context.Context, connection, query string) ([]domain.Row, error) {
	adapter, err := r.conns.Adapter(connection)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("executing native query", "connection", connection, "sql", query)
	rows, err := adapter.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	return normalizeRows(rows), nil
}

func (r *Runner) subQuery(ctx context.Context, tq domain.TableQuery) ([]domain.Row, error) {
	adapter, err := r.conns.Adapter(tq.Table.Connection)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("executing sub-query", "table", tq.Table.Name, "connection", tq.Table.Connection, "sql", tq.SQL)
	rows, err := adapter.Execute(ctx, tq.SQL)
	if err != nil {
		return nil, fmt.Errorf("sub-query for table %q: %w", tq.Table.Name, err)
	}
	return normalizeRows(rows), nil
}
