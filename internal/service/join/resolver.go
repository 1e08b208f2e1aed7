// Package join resolves the set of join edges connecting the tables a query
// references, via breadth-first search over the catalog's relation graph.
package join

import (
	"metriclens/internal/domain"
)

// Resolver finds join paths over the relation graph of a catalog snapshot.
type Resolver struct {
	catalog domain.Catalog
}

// NewResolver creates a Resolver over the given catalog.
func NewResolver(catalog domain.Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

func tableKey(t domain.Table) string {
	return t.Connection + "." + t.Name
}

type searchState struct {
	table domain.Table
	path  []domain.Relation
}

// FindPath returns the hop-shortest relation path from one table to another,
// traversing only tables in the universe (an empty universe permits the
// whole catalog). A nil error with an empty path occurs only when from == to;
// an unreachable target yields an UnresolvableJoinError.
func (r *Resolver) FindPath(from, to domain.Table, universe []domain.Table) ([]domain.Relation, error) {
	if tableKey(from) == tableKey(to) {
		return []domain.Relation{}, nil
	}

	allowed := map[string]bool{}
	for _, t := range universe {
		allowed[tableKey(t)] = true
	}
	unrestricted := len(universe) == 0

	visited := map[string]bool{tableKey(from): true}
	queue := []searchState{{table: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, rel := range r.catalog.Relations(cur.table) {
			targetKey := tableKey(rel.To)
			if targetKey == tableKey(to) {
				path := make([]domain.Relation, len(cur.path), len(cur.path)+1)
				copy(path, cur.path)
				return append(path, rel), nil
			}
			if !unrestricted && !allowed[targetKey] {
				continue
			}
			if visited[targetKey] {
				continue
			}
			visited[targetKey] = true

			path := make([]domain.Relation, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			queue = append(queue, searchState{table: rel.To, path: append(path, rel)})
		}
	}

	return nil, domain.ErrUnresolvableJoin(from.Name, to.Name)
}

// BuildGraph greedily connects all tables: starting from the first table, each
// remaining table is reached via the first path found from any
// already-connected table. Edges are de-duplicated by (from, to). A table no
// connected table reaches yields an UnresolvableJoinError.
//
// The result connects every table but is not guaranteed to be the globally
// minimal join graph: paths are chosen pairwise, first match wins.
func (r *Resolver) BuildGraph(tables []domain.Table) ([]domain.Relation, error) {
	if len(tables) <= 1 {
		return []domain.Relation{}, nil
	}

	edges := []domain.Relation{}
	seenEdge := map[string]bool{}
	connected := []domain.Table{tables[0]}
	connectedSet := map[string]bool{tableKey(tables[0]): true}

	for _, target := range tables[1:] {
		if connectedSet[tableKey(target)] {
			continue
		}

		var path []domain.Relation
		found := false
		for _, src := range connected {
			p, err := r.FindPath(src, target, tables)
			if err != nil {
				continue
			}
			path = p
			found = true
			break
		}
		if !found {
			return nil, domain.ErrUnresolvableJoin(tables[0].Name, target.Name)
		}

		for _, e := range path {
			key := tableKey(e.From) + "->" + tableKey(e.To)
			if !seenEdge[key] {
				seenEdge[key] = true
				edges = append(edges, e)
			}
			if !connectedSet[tableKey(e.To)] {
				connectedSet[tableKey(e.To)] = true
				connected = append(connected, e.To)
			}
		}
	}

	return edges, nil
}

// Predicate is one equality join condition between two table columns.
type Predicate struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
}

// Predicates translates a relation into its equality join conditions. Only
// equality-based INNER joins are expressible; many-to-many relations expand
// to two conditions through the pivot table. Polymorphic kinds are rejected.
func Predicates(rel domain.Relation) ([]Predicate, error) {
	switch rel.Kind {
	case domain.RelationBelongsTo:
		return []Predicate{{
			LeftTable:   rel.From.Name,
			LeftColumn:  rel.Keys.ForeignKey,
			RightTable:  rel.To.Name,
			RightColumn: rel.Keys.OwnerKey,
		}}, nil
	case domain.RelationHasOne, domain.RelationHasMany:
		return []Predicate{{
			LeftTable:   rel.From.Name,
			LeftColumn:  rel.Keys.LocalKey,
			RightTable:  rel.To.Name,
			RightColumn: rel.Keys.ForeignKey,
		}}, nil
	case domain.RelationBelongsToMany:
		return []Predicate{
			{
				LeftTable:   rel.From.Name,
				LeftColumn:  rel.Keys.LocalKey,
				RightTable:  rel.Keys.PivotTable,
				RightColumn: rel.Keys.PivotForeignKey,
			},
			{
				LeftTable:   rel.Keys.PivotTable,
				LeftColumn:  rel.Keys.PivotRelatedKey,
				RightTable:  rel.To.Name,
				RightColumn: rel.Keys.OwnerKey,
			},
		}, nil
	default:
		return nil, domain.ErrUnsupportedRelation(rel.Kind)
	}
}
