package db

import (
	"fmt"

	"metriclens/internal/domain"
)

// SQLiteGrammar formats SQL for SQLite connections.
type SQLiteGrammar struct{}

// SupportsNativeJoins reports that SQLite joins tables natively.
func (SQLiteGrammar) SupportsNativeJoins() bool { return true }

// SupportsLayeredQueries reports that SQLite supports WITH-chained queries.
func (SQLiteGrammar) SupportsLayeredQueries() bool { return true }

// TimeBucket buckets a column with strftime.
func (SQLiteGrammar) TimeBucket(table, column, granularity string) string {
	col := table + "." + column
	switch granularity {
	case domain.GrainHour:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:00:00', %s)", col)
	case domain.GrainDay:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", col)
	case domain.GrainWeek:
		return fmt.Sprintf("strftime('%%Y-%%W', %s)", col)
	case domain.GrainMonth:
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", col)
	case domain.GrainYear:
		return fmt.Sprintf("strftime('%%Y', %s)", col)
	default:
		return col
	}
}

// DuckDBGrammar formats SQL for DuckDB connections.
type DuckDBGrammar struct{}

// SupportsNativeJoins reports that DuckDB joins tables natively.
func (DuckDBGrammar) SupportsNativeJoins() bool { return true }

// SupportsLayeredQueries reports that DuckDB supports WITH-chained queries.
func (DuckDBGrammar) SupportsLayeredQueries() bool { return true }

// TimeBucket buckets a column with date_trunc.
func (DuckDBGrammar) TimeBucket(table, column, granularity string) string {
	switch granularity {
	case domain.GrainHour, domain.GrainDay, domain.GrainWeek, domain.GrainMonth, domain.GrainYear:
		return fmt.Sprintf("date_trunc('%s', %s.%s)", granularity, table, column)
	default:
		return table + "." + column
	}
}
