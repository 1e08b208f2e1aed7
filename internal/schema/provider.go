// Package schema resolves catalog snapshots from an ordered list of
// providers. Providers are consulted in registration order; the first
// provider that defines a table owns that table's relations and dimensions.
package schema

import (
	"strings"

	"metriclens/internal/domain"
)

// Provider supplies catalog entities for some set of tables.
type Provider interface {
	Tables() []domain.Table
	Relations(table domain.Table) []domain.Relation
	Dimensions(table domain.Table) []domain.Dimension
}

// StaticProvider serves a fixed, in-code catalog.
type StaticProvider struct {
	TableList     []domain.Table
	RelationList  []domain.Relation
	DimensionList []domain.Dimension
}

// Tables returns the provider's tables.
func (p *StaticProvider) Tables() []domain.Table { return p.TableList }

// Relations returns the provider's outgoing relations for a table.
func (p *StaticProvider) Relations(table domain.Table) []domain.Relation {
	var out []domain.Relation
	for _, r := range p.RelationList {
		if r.From == table {
			out = append(out, r)
		}
	}
	return out
}

// Dimensions returns the provider's dimensions for a table.
func (p *StaticProvider) Dimensions(table domain.Table) []domain.Dimension {
	var out []domain.Dimension
	for _, d := range p.DimensionList {
		if d.Table == table {
			out = append(out, d)
		}
	}
	return out
}

// Snapshot is an immutable resolved catalog. Concurrent requests share one
// snapshot; a schema refresh builds and publishes a new one.
type Snapshot struct {
	tables     []domain.Table
	byName     map[string]domain.Table
	relations  map[domain.Table][]domain.Relation
	dimensions map[domain.Table][]domain.Dimension
}

// Resolve builds a snapshot from providers in precedence order. When two
// providers define the same table name on the same connection, the earlier
// provider wins outright.
func Resolve(providers ...Provider) (*Snapshot, error) {
	s := &Snapshot{
		byName:     map[string]domain.Table{},
		relations:  map[domain.Table][]domain.Relation{},
		dimensions: map[domain.Table][]domain.Dimension{},
	}
	owned := map[domain.Table]bool{}
	for _, p := range providers {
		for _, t := range p.Tables() {
			if owned[t] {
				continue
			}
			owned[t] = true
			s.tables = append(s.tables, t)
			if _, ok := s.byName[t.Name]; !ok {
				s.byName[t.Name] = t
			}
			rels := p.Relations(t)
			for _, r := range rels {
				if err := r.Validate(); err != nil {
					return nil, err
				}
			}
			s.relations[t] = rels
			s.dimensions[t] = p.Dimensions(t)
		}
	}
	return s, nil
}

// Tables returns every table in the snapshot.
func (s *Snapshot) Tables() []domain.Table { return s.tables }

// Relations returns the outgoing relation edges for a table.
func (s *Snapshot) Relations(table domain.Table) []domain.Relation {
	return s.relations[table]
}

// Dimensions returns the dimension catalog for a table.
func (s *Snapshot) Dimensions(table domain.Table) []domain.Dimension {
	return s.dimensions[table]
}

// TableByName looks a table up by bare name.
func (s *Snapshot) TableByName(name string) (domain.Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// ResolveMetricSource resolves a "table.column" reference to the location a
// raw aggregate reads from.
func (s *Snapshot) ResolveMetricSource(reference string) (domain.MetricSource, error) {
	parts := strings.SplitN(strings.TrimSpace(reference), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.MetricSource{}, domain.ErrValidation("metric reference %q must be table.column", reference)
	}
	table, ok := s.byName[parts[0]]
	if !ok {
		return domain.MetricSource{}, domain.ErrNotFound("metric reference %q: unknown table %q", reference, parts[0])
	}
	return domain.MetricSource{
		Table:      table,
		Column:     parts[1],
		Connection: table.Connection,
	}, nil
}
