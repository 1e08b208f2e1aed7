package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metriclens/internal/domain"
)

func TestSQLiteGrammar_TimeBucket(t *testing.T) {
	g := SQLiteGrammar{}
	assert.Equal(t, "strftime('%Y-%m-%d %H:00:00', orders.created_at)", g.TimeBucket("orders", "created_at", domain.GrainHour))
	assert.Equal(t, "strftime('%Y-%m-%d', orders.created_at)", g.TimeBucket("orders", "created_at", domain.GrainDay))
	assert.Equal(t, "strftime('%Y-%W', orders.created_at)", g.TimeBucket("orders", "created_at", domain.GrainWeek))
	assert.Equal(t, "strftime('%Y-%m', orders.created_at)", g.TimeBucket("orders", "created_at", domain.GrainMonth))
	assert.Equal(t, "strftime('%Y', orders.created_at)", g.TimeBucket("orders", "created_at", domain.GrainYear))
	assert.Equal(t, "orders.created_at", g.TimeBucket("orders", "created_at", "decade"))
	assert.True(t, g.SupportsNativeJoins())
	assert.True(t, g.SupportsLayeredQueries())
}

func TestDuckDBGrammar_TimeBucket(t *testing.T) {
	g := DuckDBGrammar{}
	assert.Equal(t, "date_trunc('month', orders.created_at)", g.TimeBucket("orders", "created_at", domain.GrainMonth))
	assert.Equal(t, "orders.created_at", g.TimeBucket("orders", "created_at", "decade"))
}

func TestRegistry(t *testing.T) {
	handle, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	r := NewRegistry()
	r.Register("primary", NewSQLAdapter(handle), SQLiteGrammar{})
	r.Register("opaque", NewSQLAdapter(handle), nil)

	_, err = r.Adapter("primary")
	require.NoError(t, err)
	_, err = r.Grammar("primary")
	require.NoError(t, err)

	// A nil grammar keeps the connection queryable but its capabilities
	// unknown.
	_, err = r.Adapter("opaque")
	require.NoError(t, err)
	_, err = r.Grammar("opaque")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = r.Adapter("missing")
	require.ErrorAs(t, err, &notFound)
}

func TestSQLAdapter_Execute(t *testing.T) {
	handle, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	handle.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = handle.Close() })

	_, err = handle.Exec(`CREATE TABLE orders (id INTEGER, region TEXT, total REAL)`)
	require.NoError(t, err)
	_, err = handle.Exec(`INSERT INTO orders VALUES (1, 'EU', 99.5), (2, NULL, 100)`)
	require.NoError(t, err)

	adapter := NewSQLAdapter(handle)
	rows, err := adapter.Execute(context.Background(), `SELECT id, region, total FROM orders ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "EU", rows[0]["region"])
	assert.Equal(t, 99.5, rows[0]["total"])
	assert.Nil(t, rows[1]["region"])
}

func TestSQLAdapter_ExecuteError(t *testing.T) {
	handle, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	adapter := NewSQLAdapter(handle)
	_, err = adapter.Execute(context.Background(), `SELECT * FROM no_such_table`)
	require.Error(t, err)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := Open("postgres", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestOpen_SQLite(t *testing.T) {
	handle, grammar, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	assert.IsType(t, SQLiteGrammar{}, grammar)
}
