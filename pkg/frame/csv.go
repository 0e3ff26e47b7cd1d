package frame

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV reads a headered CSV document into a string-typed frame.
// Empty cells become null, matching how registry exports encode absent
// values.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	f := New(header...)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		row := make(map[string]Value, len(header))
		for i, name := range header {
			if i >= len(record) || record[i] == "" {
				continue
			}
			row[name] = String(record[i])
		}
		f.AppendRow(row)
	}
	return f, nil
}

// WriteCSV writes the frame with a header row. Null cells render empty.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(f.Columns()))
	for i := 0; i < f.Len(); i++ {
		for j, name := range f.Columns() {
			record[j] = f.Value(name, i).Format()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
