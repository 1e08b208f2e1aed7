package domain

// Row maps result-column aliases to scalar values. Values are normalized
// before leaving the engine: backend strings that parse as numbers become
// int64 when integral, float64 otherwise.
type Row map[string]interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
