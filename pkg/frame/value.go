package frame

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Type identifies the logical type of a column or value.
type Type int

const (
	TypeString Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeStringList
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeStringList:
		return "string list"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Value is a single cell. The zero Value is null.
type Value struct {
	typ   Type
	valid bool

	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	list []string
}

// Null returns the untyped null value.
func Null() Value {
	return Value{}
}

func String(s string) Value {
	return Value{typ: TypeString, valid: true, s: s}
}

func Int(i int64) Value {
	return Value{typ: TypeInt, valid: true, i: i}
}

func Float(f float64) Value {
	return Value{typ: TypeFloat, valid: true, f: f}
}

func Bool(b bool) Value {
	return Value{typ: TypeBool, valid: true, b: b}
}

// Time stores t normalized to UTC.
func Time(t time.Time) Value {
	return Value{typ: TypeTime, valid: true, t: t.UTC()}
}

func StringList(items []string) Value {
	return Value{typ: TypeStringList, valid: true, list: items}
}

func (v Value) IsNull() bool { return !v.valid }
func (v Value) Type() Type   { return v.typ }

// Str returns the string payload. Null values yield "".
func (v Value) Str() string {
	if v.IsNull() {
		return ""
	}
	return v.s
}

func (v Value) Int() int64 {
	if v.IsNull() {
		return 0
	}
	return v.i
}

func (v Value) Float() float64 {
	if v.IsNull() {
		return 0
	}
	return v.f
}

func (v Value) Bool() bool {
	return v.valid && v.b
}

func (v Value) Time() time.Time {
	if v.IsNull() {
		return time.Time{}
	}
	return v.t
}

func (v Value) List() []string {
	if v.IsNull() {
		return nil
	}
	return v.list
}

// Equal reports deep equality, treating all nulls as equal.
func (v Value) Equal(o Value) bool {
	if !v.valid || !o.valid {
		return v.valid == o.valid
	}
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString:
		return v.s == o.s
	case TypeInt:
		return v.i == o.i
	case TypeFloat:
		return v.f == o.f
	case TypeBool:
		return v.b == o.b
	case TypeTime:
		return v.t.Equal(o.t)
	case TypeStringList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders the value for CSV output and group keys. Null renders as "".
func (v Value) Format() string {
	if v.IsNull() {
		return ""
	}
	switch v.typ {
	case TypeString:
		return v.s
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeTime:
		return v.t.UTC().Format(time.RFC3339)
	case TypeStringList:
		return strings.Join(v.list, ";")
	}
	return ""
}

// Compare orders values for sorting. Nulls sort first; values of mixed
// types fall back to their formatted representation.
func (v Value) Compare(o Value) int {
	switch {
	case !v.valid && !o.valid:
		return 0
	case !v.valid:
		return -1
	case !o.valid:
		return 1
	}
	if v.typ == o.typ {
		switch v.typ {
		case TypeInt:
			switch {
			case v.i < o.i:
				return -1
			case v.i > o.i:
				return 1
			}
			return 0
		case TypeFloat:
			switch {
			case v.f < o.f:
				return -1
			case v.f > o.f:
				return 1
			}
			return 0
		case TypeTime:
			switch {
			case v.t.Before(o.t):
				return -1
			case v.t.After(o.t):
				return 1
			}
			return 0
		}
	}
	return strings.Compare(v.Format(), o.Format())
}

// SortedUnique dedupes and sorts a string slice, for list-valued cells
// built from sets.
func SortedUnique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
