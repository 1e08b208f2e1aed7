// Package db provides backend connectivity: database/sql adapters, dialect
// grammars, and the named connection registry the engine executes through.
package db

import (
	"context"
	"database/sql"

	"metriclens/internal/domain"
)

// SQLAdapter executes queries through a database/sql handle.
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter wraps an open database handle.
func NewSQLAdapter(handle *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: handle}
}

// Execute runs the query and scans every result row into an alias-keyed map.
func (a *SQLAdapter) Execute(ctx context.Context, query string) ([]domain.Row, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []domain.Row
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(domain.Row, len(cols))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[cols[i]] = string(b)
			} else {
				row[cols[i]] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
