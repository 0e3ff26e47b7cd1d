// Package frame implements the typed tabular records the pipeline
// transforms operate on: ordered named columns of nullable values, plus
// the schemas the canonical credits and projects tables are validated
// against.
package frame

import (
	"fmt"
	"sort"
)

// Frame is an ordered collection of equal-length named columns.
type Frame struct {
	cols []string
	data map[string][]Value
	rows int
}

// New returns an empty frame with the given column order.
func New(cols ...string) *Frame {
	f := &Frame{data: make(map[string][]Value, len(cols))}
	for _, c := range cols {
		f.cols = append(f.cols, c)
		f.data[c] = nil
	}
	return f
}

func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order. The caller must not mutate
// the returned slice.
func (f *Frame) Columns() []string { return f.cols }

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the values of the named column, or nil if absent.
func (f *Frame) Column(name string) []Value {
	return f.data[name]
}

// Value returns the cell at (name, row). Absent columns read as null.
func (f *Frame) Value(name string, row int) Value {
	col, ok := f.data[name]
	if !ok {
		return Null()
	}
	return col[row]
}

// Set writes the cell at (name, row), adding the column if needed.
func (f *Frame) Set(name string, row int, v Value) {
	f.ensureColumn(name)
	f.data[name][row] = v
}

// SetColumn replaces (or adds) an entire column. The slice length must
// match the frame length unless the frame is empty.
func (f *Frame) SetColumn(name string, values []Value) {
	if _, ok := f.data[name]; !ok {
		f.cols = append(f.cols, name)
	}
	if f.rows == 0 && len(values) > 0 {
		f.rows = len(values)
		for _, c := range f.cols {
			if c != name && len(f.data[c]) != f.rows {
				f.data[c] = make([]Value, f.rows)
			}
		}
	}
	if len(values) != f.rows {
		panic(fmt.Sprintf("frame: column %q has %d values, frame has %d rows", name, len(values), f.rows))
	}
	f.data[name] = values
}

// SetConst fills (or adds) a column with a single repeated value.
func (f *Frame) SetConst(name string, v Value) {
	values := make([]Value, f.rows)
	for i := range values {
		values[i] = v
	}
	f.SetColumn(name, values)
}

func (f *Frame) ensureColumn(name string) {
	if _, ok := f.data[name]; ok {
		return
	}
	f.cols = append(f.cols, name)
	f.data[name] = make([]Value, f.rows)
}

// AppendRow adds a row from a name->value map. Columns absent from the
// map are filled with null; new names become new columns.
func (f *Frame) AppendRow(row map[string]Value) {
	for name := range row {
		f.ensureColumn(name)
	}
	for _, name := range f.cols {
		f.data[name] = append(f.data[name], row[name])
	}
	f.rows++
}

// Row returns the row as a name->value map.
func (f *Frame) Row(i int) map[string]Value {
	row := make(map[string]Value, len(f.cols))
	for _, name := range f.cols {
		row[name] = f.data[name][i]
	}
	return row
}

// Copy returns a deep copy.
func (f *Frame) Copy() *Frame {
	out := &Frame{
		cols: append([]string(nil), f.cols...),
		data: make(map[string][]Value, len(f.cols)),
		rows: f.rows,
	}
	for name, col := range f.data {
		out.data[name] = append([]Value(nil), col...)
	}
	return out
}

// Filter returns a new frame with the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	out := New(f.cols...)
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			out.AppendRow(f.Row(i))
		}
	}
	return out
}

// Drop removes columns by name; unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	for _, name := range names {
		if _, ok := f.data[name]; !ok {
			continue
		}
		delete(f.data, name)
		for i, c := range f.cols {
			if c == name {
				f.cols = append(f.cols[:i], f.cols[i+1:]...)
				break
			}
		}
	}
}

// Rename renames columns in place given an old->new mapping. Names not
// present in the frame are ignored.
func (f *Frame) Rename(mapping map[string]string) {
	for old, next := range mapping {
		col, ok := f.data[old]
		if !ok || old == next {
			continue
		}
		delete(f.data, old)
		f.data[next] = col
		for i, c := range f.cols {
			if c == old {
				f.cols[i] = next
				break
			}
		}
	}
}

// SortBy stably sorts rows by the given columns, ascending, nulls first.
func (f *Frame) SortBy(names ...string) *Frame {
	idx := make([]int, f.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, name := range names {
			c := f.Value(name, idx[a]).Compare(f.Value(name, idx[b]))
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	out := New(f.cols...)
	for _, i := range idx {
		out.AppendRow(f.Row(i))
	}
	return out
}

// SortColumns reorders columns alphabetically by name.
func (f *Frame) SortColumns() {
	sort.Strings(f.cols)
}

// Concat appends other's rows. The result carries the union of both
// column sets; cells absent on either side read as null.
func Concat(frames ...*Frame) *Frame {
	out := New()
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, name := range f.cols {
			out.ensureColumn(name)
		}
		for i := 0; i < f.rows; i++ {
			out.AppendRow(f.Row(i))
		}
	}
	return out
}
