// Package transform implements the registry-independent normalization
// steps shared by every adapter: column renames, date parsing, numeric
// cleanup, issuance aggregation, and the project enrichment passes.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

// SetRegistry stamps every row with the canonical registry name.
func SetRegistry(f *frame.Frame, registryName string) *frame.Frame {
	f.SetConst("registry", frame.String(registryName))
	return f
}

// RenameColumns renames raw columns to canonical names. The mapping is
// canonical-to-raw as stored in the config tables, so it is inverted
// before applying. Raw columns not present in the frame are ignored.
func RenameColumns(f *frame.Frame, mapping map[string]string) *frame.Frame {
	inverted := make(map[string]string, len(mapping))
	for canonical, raw := range mapping {
		inverted[raw] = canonical
	}
	f.Rename(inverted)
	return f
}

type dateOptions struct {
	dayFirst bool
	layout   string
}

// DateOption adjusts how ConvertToDatetime parses raw date strings.
type DateOption func(*dateOptions)

// WithDayFirst prefers day/month/year ordering for slash-separated
// dates.
func WithDayFirst() DateOption {
	return func(o *dateOptions) { o.dayFirst = true }
}

// WithLayout parses with a single exact layout instead of the mixed
// layout set.
func WithLayout(layout string) DateOption {
	return func(o *dateOptions) { o.layout = layout }
}

var mixedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006/01/02",
}

var dayFirstLayouts = []string{
	"02/01/2006",
	"02/01/2006 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// ParseDate parses a raw date string into a UTC time. Layouts are tried
// in order; slash-separated dates default to month-first unless
// dayFirst is set.
func ParseDate(raw string, opts ...DateOption) (time.Time, error) {
	var o dateOptions
	for _, opt := range opts {
		opt(&o)
	}
	layouts := mixedLayouts
	if o.dayFirst {
		layouts = dayFirstLayouts
	}
	if o.layout != "" {
		layouts = []string{o.layout}
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

// ConvertToDatetime parses each named column to a UTC-normalized date.
// A missing column is a schema contract violation and fails with a
// MissingColumnError. Null and empty cells stay null; values already
// parsed as dates pass through.
func ConvertToDatetime(f *frame.Frame, columns []string, opts ...DateOption) (*frame.Frame, error) {
	for _, name := range columns {
		if !f.HasColumn(name) {
			return nil, &frame.MissingColumnError{Column: name}
		}
		for row := 0; row < f.Len(); row++ {
			v := f.Value(name, row)
			if v.IsNull() || v.Type() == frame.TypeTime {
				continue
			}
			raw := v.Str()
			if raw == "" {
				f.Set(name, row, frame.Null())
				continue
			}
			t, err := ParseDate(raw, opts...)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, row, err)
			}
			f.Set(name, row, frame.Time(t))
		}
	}
	return f, nil
}

// CleanNumericColumns strips thousands separators from the named
// columns and parses them as integers. Unparseable cells become null.
// Columns not present in the frame are ignored.
func CleanNumericColumns(f *frame.Frame, columns ...string) *frame.Frame {
	for _, name := range columns {
		if !f.HasColumn(name) {
			continue
		}
		for row := 0; row < f.Len(); row++ {
			v := f.Value(name, row)
			if v.IsNull() {
				continue
			}
			if v.Type() == frame.TypeInt {
				continue
			}
			if v.Type() == frame.TypeFloat {
				f.Set(name, row, frame.Int(int64(v.Float())))
				continue
			}
			raw := strings.ReplaceAll(strings.TrimSpace(v.Str()), ",", "")
			if raw == "" {
				f.Set(name, row, frame.Null())
				continue
			}
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				f.Set(name, row, frame.Null())
				continue
			}
			f.Set(name, row, frame.Int(int64(parsed)))
		}
	}
	return f
}

// ConvertVintageToYear replaces date or year-string cells in the named
// column with integer years. Range strings such as "2019 - 2021" keep
// the trailing year.
func ConvertVintageToYear(f *frame.Frame, column string) (*frame.Frame, error) {
	if !f.HasColumn(column) {
		return nil, &frame.MissingColumnError{Column: column}
	}
	for row := 0; row < f.Len(); row++ {
		v := f.Value(column, row)
		if v.IsNull() || v.Type() == frame.TypeInt {
			continue
		}
		if v.Type() == frame.TypeTime {
			f.Set(column, row, frame.Int(int64(v.Time().Year())))
			continue
		}
		raw := strings.TrimSpace(v.Str())
		if strings.Contains(raw, " - ") {
			parts := strings.Split(raw, " - ")
			raw = strings.TrimSpace(parts[len(parts)-1])
		}
		year, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: unparseable vintage %q", column, row, v.Str())
		}
		f.Set(column, row, frame.Int(int64(year)))
	}
	return f, nil
}
