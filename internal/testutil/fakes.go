// Package testutil provides in-memory fakes for engine tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"metriclens/internal/domain"
)

// FakeAdapter replays canned rows and records every SQL statement it receives.
type FakeAdapter struct {
	mu sync.Mutex

	// Rows is returned for any query unless RowsFor matches first.
	Rows []domain.Row
	// RowsFor maps a substring of the SQL to the rows to return.
	RowsFor map[string][]domain.Row
	// Err, when set, is returned for every query.
	Err error

	Queries []string
}

func (f *FakeAdapter) Execute(_ context.Context, query string) ([]domain.Row, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, query)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	for needle, rows := range f.RowsFor {
		if strings.Contains(query, needle) {
			return cloneRows(rows), nil
		}
	}
	return cloneRows(f.Rows), nil
}

func cloneRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// FakeGrammar is a configurable dialect description.
type FakeGrammar struct {
	NativeJoins bool
	Layered     bool
}

func (g FakeGrammar) SupportsNativeJoins() bool    { return g.NativeJoins }
func (g FakeGrammar) SupportsLayeredQueries() bool { return g.Layered }

func (g FakeGrammar) TimeBucket(table, column, granularity string) string {
	return fmt.Sprintf("bucket('%s', %s.%s)", granularity, table, column)
}

// FakeConnections resolves adapters and grammars from plain maps.
type FakeConnections struct {
	Adapters map[string]domain.Adapter
	Grammars map[string]domain.Grammar
}

func (c *FakeConnections) Adapter(name string) (domain.Adapter, error) {
	a, ok := c.Adapters[name]
	if !ok {
		return nil, domain.ErrNotFound("connection %q not registered", name)
	}
	return a, nil
}

func (c *FakeConnections) Grammar(name string) (domain.Grammar, error) {
	g, ok := c.Grammars[name]
	if !ok {
		return nil, domain.ErrNotFound("connection %q not registered", name)
	}
	return g, nil
}

// SingleConnection wires one adapter/grammar pair under the given name.
func SingleConnection(name string, adapter domain.Adapter, grammar domain.Grammar) *FakeConnections {
	return &FakeConnections{
		Adapters: map[string]domain.Adapter{name: adapter},
		Grammars: map[string]domain.Grammar{name: grammar},
	}
}
