package db

import (
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver

	"metriclens/internal/domain"
)

// Open opens a database handle for one of the supported drivers and returns
// it together with the matching grammar.
func Open(driver, dsn string) (*sql.DB, domain.Grammar, error) {
	switch driver {
	case "sqlite3":
		handle, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return handle, SQLiteGrammar{}, nil
	case "duckdb":
		handle, err := sql.Open("duckdb", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open duckdb: %w", err)
		}
		return handle, DuckDBGrammar{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q (want sqlite3 or duckdb)", driver)
	}
}
