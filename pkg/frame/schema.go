package frame

import (
	"fmt"
)

// ColumnSpec declares one column of a canonical table.
type ColumnSpec struct {
	Name        string
	Type        Type
	Nullable    bool
	NonNegative bool
}

// Schema is an ordered set of column specs.
type Schema struct {
	Name    string
	Columns []ColumnSpec
}

// Canonical credit record columns. One row per issuance, retirement or
// cancellation transaction.
var Credits = Schema{
	Name: "credits",
	Columns: []ColumnSpec{
		{Name: "project_id", Type: TypeString},
		{Name: "vintage", Type: TypeInt, Nullable: true},
		{Name: "quantity", Type: TypeInt, Nullable: true, NonNegative: true},
		{Name: "transaction_date", Type: TypeTime, Nullable: true},
		{Name: "transaction_type", Type: TypeString, Nullable: true},
		{Name: "registry", Type: TypeString, Nullable: true},
		{Name: "retirement_account", Type: TypeString, Nullable: true},
		{Name: "retirement_beneficiary", Type: TypeString, Nullable: true},
		{Name: "retirement_beneficiary_harmonized", Type: TypeString, Nullable: true},
		{Name: "retirement_note", Type: TypeString, Nullable: true},
		{Name: "retirement_reason", Type: TypeString, Nullable: true},
	},
}

// Canonical project record columns. One row per offset project.
var Projects = Schema{
	Name: "projects",
	Columns: []ColumnSpec{
		{Name: "project_id", Type: TypeString},
		{Name: "name", Type: TypeString, Nullable: true},
		{Name: "registry", Type: TypeString},
		{Name: "proponent", Type: TypeString, Nullable: true},
		{Name: "protocol", Type: TypeStringList, Nullable: true},
		{Name: "protocol_version", Type: TypeStringList, Nullable: true},
		{Name: "category", Type: TypeStringList, Nullable: true},
		{Name: "status", Type: TypeString, Nullable: true},
		{Name: "country", Type: TypeString, Nullable: true},
		{Name: "listed_at", Type: TypeTime, Nullable: true},
		{Name: "first_issuance_at", Type: TypeTime, Nullable: true},
		{Name: "first_retirement_at", Type: TypeTime, Nullable: true},
		{Name: "retired", Type: TypeInt, Nullable: true, NonNegative: true},
		{Name: "issued", Type: TypeInt, Nullable: true, NonNegative: true},
		{Name: "is_compliance", Type: TypeBool, Nullable: true},
		{Name: "project_type", Type: TypeString, Nullable: true},
		{Name: "project_type_source", Type: TypeString, Nullable: true},
		{Name: "project_url", Type: TypeString, Nullable: true},
	},
}

// ColumnNames returns schema column names in declaration order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Default returns the fill value used when a schema column is absent
// from the data: 0 for integers, false for booleans, null otherwise.
func (c ColumnSpec) Default() Value {
	switch c.Type {
	case TypeInt:
		return Int(0)
	case TypeBool:
		return Bool(false)
	default:
		return Null()
	}
}

// Conform adds every schema column absent from f, filled with the
// column's default. Re-applying Conform to conforming data is a no-op.
func (s Schema) Conform(f *Frame) *Frame {
	for _, c := range s.Columns {
		if !f.HasColumn(c.Name) {
			f.SetConst(c.Name, c.Default())
		}
	}
	return f
}

// Validate checks column presence, value types, nullability and
// non-negativity. On success it returns the frame restricted to schema
// columns, sorted into the canonical alphabetical column order; the
// result is stable under repeated validation. On failure it returns a
// SchemaValidationError listing every violation.
func (s Schema) Validate(f *Frame) (*Frame, error) {
	var violations []string
	for _, c := range s.Columns {
		col := f.Column(c.Name)
		if !f.HasColumn(c.Name) {
			violations = append(violations, fmt.Sprintf("column %q is missing", c.Name))
			continue
		}
		for i, v := range col {
			if v.IsNull() {
				if !c.Nullable {
					violations = append(violations, fmt.Sprintf("column %q: null at row %d but column is non-nullable", c.Name, i))
				}
				continue
			}
			if v.Type() != c.Type {
				violations = append(violations, fmt.Sprintf("column %q: row %d has type %s, want %s", c.Name, i, v.Type(), c.Type))
				continue
			}
			if c.NonNegative && c.Type == TypeInt && v.Int() < 0 {
				violations = append(violations, fmt.Sprintf("column %q: row %d is negative (%d)", c.Name, i, v.Int()))
			}
		}
	}
	if len(violations) > 0 {
		return nil, &SchemaValidationError{Schema: s.Name, Violations: violations}
	}

	out := New()
	for _, c := range s.Columns {
		out.SetColumn(c.Name, append([]Value(nil), f.Column(c.Name)...))
	}
	out.SortColumns()
	return out, nil
}
