package core

import "fmt"

// Direction is the ASC/DESC half of an ORDER BY field.
type Direction byte

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// NullsOrder is the NULLS FIRST/LAST half of an ORDER BY field.
type NullsOrder byte

const (
	NullsFirst NullsOrder = iota
	NullsLast
)

func (n NullsOrder) String() string {
	if n == NullsLast {
		return "NULLS LAST"
	}
	return "NULLS FIRST"
}

// ColumnType is the declared type of a SELECT column, as supplied directly
// by the compiled SELECT clause (SelectColumn.ReturnType) — the SQL
// compiler has already resolved it against the table's DDL before handing
// the compiled clause to the manager.
type ColumnType byte

const (
	ColumnTypeInt ColumnType = iota
	ColumnTypeFloat
	ColumnTypeString
	ColumnTypeBool
)

// SelectColumn is one column of a compiled SELECT clause (spec §6).
type SelectColumn struct {
	Name       string
	ReturnType ColumnType
}

// CompiledSelect is the ordered list of columns a compiled SELECT clause
// returns. Supplied by the SQL compiler, an external collaborator (spec §1).
type CompiledSelect []SelectColumn

// OrderByField is one field of a compiled ORDER BY clause: the column name
// plus its direction and null placement (spec §6).
type OrderByField struct {
	Column    string
	Direction Direction
	Nulls     NullsOrder
}

// CompiledOrderBy is the ordered list of ORDER BY fields.
type CompiledOrderBy []OrderByField

// DDLField describes one field of the table schema used to resolve ORDER BY
// column names to positions (spec §6).
type DDLField struct {
	Name     string
	Position int
	Type     ColumnType
}

// DDL is the ordered schema of the table a query targets.
type DDL []DDLField

// Schema is the qbuf's resolved view of a query's result shape: the SELECT
// columns plus, for each ORDER BY field, the position within a row and its
// sort direction/null placement. Built once at qbuf creation (spec §3, §4.3
// GetOrCreate) and never mutated afterwards.
type Schema struct {
	Columns    CompiledSelect
	OrderByKey []ResolvedOrderByField
}

// ResolvedOrderByField binds an OrderByField to its position within a row
// as laid out by Schema.Columns.
type ResolvedOrderByField struct {
	Position  int
	Direction Direction
	Nulls     NullsOrder
}

// ResolveOrderBy binds each field of orderBy to its column position within
// sel — the row layout rows actually arrive in (Schema.Columns) — returning
// ErrQueryNonPageable if a referenced column does not exist there. The
// DDL's own Position is the column's place in the table's full schema, not
// in a particular query's (possibly reordered or narrowed) SELECT list, so
// it cannot be used here: EncodeSortKey and every other row reader index
// row[f.Position] against the SELECT-ordered row, not the table.
func ResolveOrderBy(orderBy CompiledOrderBy, sel CompiledSelect) ([]ResolvedOrderByField, error) {
	positions := make(map[string]int, len(sel))
	for i, c := range sel {
		positions[c.Name] = i
	}
	resolved := make([]ResolvedOrderByField, 0, len(orderBy))
	for _, ob := range orderBy {
		pos, ok := positions[ob.Column]
		if !ok {
			return nil, fmt.Errorf("%w: order by column %q not found in schema", ErrQueryNonPageable, ob.Column)
		}
		resolved = append(resolved, ResolvedOrderByField{
			Position:  pos,
			Direction: ob.Direction,
			Nulls:     ob.Nulls,
		})
	}
	return resolved, nil
}

// Row is a single result row: one Value per Schema.Columns entry, in
// column order.
type Row []Value

// SizeBytes sums the externalized size of every column, used as the chunk
// byte-size figure the manager's admission checks compare against the
// watermarks (spec §4.4).
func (r Row) SizeBytes() int64 {
	var total int64
	for _, v := range r {
		total += v.SizeBytes()
	}
	return total
}

// Fingerprint is a structural identity for a compiled query. Nothing
// consumes it: GetOrCreate performs no duplicate detection — see spec §9
// open question and DESIGN.md.
type Fingerprint string
