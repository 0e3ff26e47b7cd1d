package duck

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

const timestampLayout = "2006-01-02 15:04:05"

// ReadCSVFile reads a headered CSV file (local or s3://) into a
// string-typed frame. Every column comes back as VARCHAR so the
// registry transforms control all typing.
func (d *DB) ReadCSVFile(ctx context.Context, path string) (*frame.Frame, error) {
	query := fmt.Sprintf(
		"SELECT * FROM read_csv('%s', header=true, all_varchar=true, null_padding=true)",
		escapePath(path))
	return d.queryFrame(ctx, path, query)
}

// ReadXLSX reads the first sheet of an Excel workbook into a
// string-typed frame.
func (d *DB) ReadXLSX(ctx context.Context, path string) (*frame.Frame, error) {
	query := fmt.Sprintf(
		"SELECT * FROM read_xlsx('%s', header=true, all_varchar=true)",
		escapePath(path))
	return d.queryFrame(ctx, path, query)
}

// ReadParquet reads a parquet file preserving its column types.
func (d *DB) ReadParquet(ctx context.Context, path string) (*frame.Frame, error) {
	query := fmt.Sprintf("SELECT * FROM read_parquet('%s')", escapePath(path))
	return d.queryFrame(ctx, path, query)
}

func (d *DB) queryFrame(ctx context.Context, path, query string) (*frame.Frame, error) {
	var f *frame.Frame
	err := d.retry(ctx, "read "+path, func() error {
		rows, err := d.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("failed to get columns for %s: %w", path, err)
		}
		f = frame.New(cols...)
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("failed to scan row from %s: %w", path, err)
			}
			row := make(map[string]frame.Value, len(cols))
			for i, name := range cols {
				v, err := toValue(raw[i])
				if err != nil {
					return fmt.Errorf("column %s of %s: %w", name, path, err)
				}
				row[name] = v
			}
			f.AppendRow(row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func toValue(raw any) (frame.Value, error) {
	switch v := raw.(type) {
	case nil:
		return frame.Null(), nil
	case string:
		return frame.String(v), nil
	case []byte:
		return frame.String(string(v)), nil
	case int64:
		return frame.Int(v), nil
	case int32:
		return frame.Int(int64(v)), nil
	case float64:
		return frame.Float(v), nil
	case bool:
		return frame.Bool(v), nil
	case time.Time:
		return frame.Time(v), nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return frame.Value{}, fmt.Errorf("unsupported list element type %T", item)
			}
			items = append(items, s)
		}
		return frame.StringList(items), nil
	default:
		return frame.Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// WriteParquet writes the frame as a parquet file (local or s3://).
func (d *DB) WriteParquet(ctx context.Context, f *frame.Frame, path string) error {
	return d.copyTo(ctx, f, path, "FORMAT PARQUET, COMPRESSION ZSTD")
}

// WriteCSVFile writes the frame as a headered CSV file (local or s3://).
func (d *DB) WriteCSVFile(ctx context.Context, f *frame.Frame, path string) error {
	return d.copyTo(ctx, f, path, "FORMAT CSV, HEADER true")
}

// copyTo stages the frame through a local CSV and an all-VARCHAR temp
// table, then COPYs a typed SELECT to the target. List columns travel
// through the staging CSV as JSON arrays.
func (d *DB) copyTo(ctx context.Context, f *frame.Frame, path, options string) error {
	staging, err := stageCSV(f)
	if err != nil {
		return err
	}
	defer os.Remove(staging)

	table := fmt.Sprintf("staging_%d", time.Now().UnixNano())
	defs := make([]string, 0, len(f.Columns()))
	selects := make([]string, 0, len(f.Columns()))
	for _, name := range f.Columns() {
		defs = append(defs, quoteIdent(name)+" VARCHAR")
		selects = append(selects, castExpr(f, name))
	}

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := d.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	defer d.db.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+table)

	loadSQL := fmt.Sprintf(
		"COPY %s FROM '%s' (FORMAT CSV, HEADER true, NULL '', QUOTE '\"')",
		table, escapePath(staging))
	if _, err := d.db.ExecContext(ctx, loadSQL); err != nil {
		return fmt.Errorf("failed to load staging table: %w", err)
	}

	copySQL := fmt.Sprintf("COPY (SELECT %s FROM %s) TO '%s' (%s)",
		strings.Join(selects, ", "), table, escapePath(path), options)
	return d.retry(ctx, "write "+path, func() error {
		if _, err := d.db.ExecContext(ctx, copySQL); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	})
}

// castExpr turns a staged VARCHAR column back into the frame column's
// type, inferred from the first non-null cell. Columns with no non-null
// cells stay VARCHAR.
func castExpr(f *frame.Frame, name string) string {
	ident := quoteIdent(name)
	for i := 0; i < f.Len(); i++ {
		v := f.Value(name, i)
		if v.IsNull() {
			continue
		}
		switch v.Type() {
		case frame.TypeInt:
			return fmt.Sprintf("CAST(%s AS BIGINT) AS %s", ident, ident)
		case frame.TypeFloat:
			return fmt.Sprintf("CAST(%s AS DOUBLE) AS %s", ident, ident)
		case frame.TypeBool:
			return fmt.Sprintf("CAST(%s AS BOOLEAN) AS %s", ident, ident)
		case frame.TypeTime:
			return fmt.Sprintf("CAST(%s AS TIMESTAMP) AS %s", ident, ident)
		case frame.TypeStringList:
			return fmt.Sprintf("CAST(%s AS VARCHAR[]) AS %s", ident, ident)
		default:
			return ident
		}
	}
	return ident
}

// stageCSV writes the frame to a temp CSV with staging encodings:
// timestamps without zone suffix and string lists as JSON arrays, both
// of which DuckDB casts back losslessly.
func stageCSV(f *frame.Frame) (string, error) {
	tmp, err := os.CreateTemp("", "offsetsdb-staging-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	defer tmp.Close()

	cw := csv.NewWriter(tmp)
	if err := cw.Write(f.Columns()); err != nil {
		return "", fmt.Errorf("failed to write staging header: %w", err)
	}
	record := make([]string, len(f.Columns()))
	for i := 0; i < f.Len(); i++ {
		for j, name := range f.Columns() {
			cell, err := stageCell(f.Value(name, i))
			if err != nil {
				return "", fmt.Errorf("column %s row %d: %w", name, i, err)
			}
			record[j] = cell
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("failed to write staging row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush staging file: %w", err)
	}
	return tmp.Name(), nil
}

func stageCell(v frame.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	switch v.Type() {
	case frame.TypeTime:
		return v.Time().UTC().Format(timestampLayout), nil
	case frame.TypeStringList:
		b, err := json.Marshal(v.List())
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return v.Format(), nil
	}
}

func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
