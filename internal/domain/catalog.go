package domain

const (
	RelationBelongsTo     = "BELONGS_TO"
	RelationHasOne        = "HAS_ONE"
	RelationHasMany       = "HAS_MANY"
	RelationBelongsToMany = "BELONGS_TO_MANY"
	RelationMorphTo       = "MORPH_TO"
	RelationMorphMany     = "MORPH_MANY"

	GrainHour  = "hour"
	GrainDay   = "day"
	GrainWeek  = "week"
	GrainMonth = "month"
	GrainYear  = "year"

	FilterOpEq  = "="
	FilterOpNe  = "!="
	FilterOpGt  = ">"
	FilterOpGte = ">="
	FilterOpLt  = "<"
	FilterOpLte = "<="
)

// Table identifies a relation on a logical backend connection.
// Table values are created once during schema resolution and are immutable;
// the identifier is unique within a connection.
type Table struct {
	Name       string
	Connection string
}

// RelationKeys holds the join-key column metadata for a relation edge.
// Which fields are meaningful depends on the relation kind: BelongsTo uses
// ForeignKey/OwnerKey, HasOne/HasMany use LocalKey/ForeignKey, and
// BelongsToMany routes through the pivot table columns.
type RelationKeys struct {
	ForeignKey      string
	OwnerKey        string
	LocalKey        string
	PivotTable      string
	PivotForeignKey string
	PivotRelatedKey string
}

// Relation is a directed join edge between two catalog tables.
type Relation struct {
	From Table
	To   Table
	Kind string
	Keys RelationKeys
}

// Validate checks that the relation carries the key metadata its kind needs.
func (r Relation) Validate() error {
	switch r.Kind {
	case RelationBelongsTo:
		if r.Keys.ForeignKey == "" || r.Keys.OwnerKey == "" {
			return ErrValidation("belongs-to relation %s->%s requires foreign_key and owner_key", r.From.Name, r.To.Name)
		}
	case RelationHasOne, RelationHasMany:
		if r.Keys.LocalKey == "" || r.Keys.ForeignKey == "" {
			return ErrValidation("has-one/has-many relation %s->%s requires local_key and foreign_key", r.From.Name, r.To.Name)
		}
	case RelationBelongsToMany:
		if r.Keys.PivotTable == "" || r.Keys.PivotForeignKey == "" || r.Keys.PivotRelatedKey == "" {
			return ErrValidation("belongs-to-many relation %s->%s requires a pivot table and pivot keys", r.From.Name, r.To.Name)
		}
		if r.Keys.LocalKey == "" || r.Keys.OwnerKey == "" {
			return ErrValidation("belongs-to-many relation %s->%s requires local_key and owner_key", r.From.Name, r.To.Name)
		}
	case RelationMorphTo, RelationMorphMany:
		// Declarable in a schema but not joinable; rejected at join time.
	default:
		return ErrValidation("unknown relation kind %q", r.Kind)
	}
	return nil
}

// WherePredicate is a single comparison applied to a dimension value.
type WherePredicate struct {
	Op    string
	Value interface{}
}

// DimensionFilter restricts rows by dimension value. Only keeps rows whose
// value is in the set, Except drops them, Where applies a comparison.
type DimensionFilter struct {
	Only   []interface{}
	Except []interface{}
	Where  *WherePredicate
}

// Empty reports whether the filter constrains nothing.
func (f *DimensionFilter) Empty() bool {
	return f == nil || (len(f.Only) == 0 && len(f.Except) == 0 && f.Where == nil)
}

// Dimension is a groupable column descriptor, optionally time-bucketed.
type Dimension struct {
	Name        string
	Table       Table
	Column      string
	Granularity string // empty for plain dimensions
	Filter      *DimensionFilter
}

// Alias returns the deterministic result-column alias for the dimension.
func (d Dimension) Alias() string {
	alias := d.Table.Name + "_" + d.Name
	if d.Granularity != "" {
		alias += "_" + d.Granularity
	}
	return alias
}

// MetricSource locates the table and column a raw aggregate reads from.
type MetricSource struct {
	Table      Table
	Column     string
	Connection string
}
