package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/offsetsdb/offsetsdb/pkg/catalog"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

const termsFileName = "TERMS_OF_DATA_ACCESS.txt"

const defaultTerms = `OffsetsDB data is made available under the terms of the CC-BY-4.0
license. The data is provided as is, without warranty of any kind, and
aggregates records published by the underlying offset registries. Check
the registry of record before relying on any individual value.
`

// archiveEntry is one file inside a packaged archive, ordered.
type archiveEntry struct {
	name string
	body []byte
}

// buildArchive packages entries into a zip, prepending the terms file.
func buildArchive(terms []byte, entries []archiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	all := append([]archiveEntry{{name: termsFileName, body: terms}}, entries...)
	for _, entry := range all {
		f, err := w.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", entry.name, err)
		}
		if _, err := f.Write(entry.body); err != nil {
			return nil, fmt.Errorf("failed to write %s into archive: %w", entry.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// terms loads the packaged terms-of-access text.
func (r *Runner) terms(ctx context.Context) ([]byte, error) {
	if r.cfg.TermsPath == "" {
		return []byte(defaultTerms), nil
	}
	body, err := r.cfg.Store.Get(ctx, r.cfg.TermsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load terms of access: %w", err)
	}
	return body, nil
}

// publish writes the latest plain tables and the packaged archives.
func (r *Runner) publish(ctx context.Context, credits, projects *frame.Frame) error {
	tables := map[string]*frame.Frame{
		catalog.CreditsTable:  credits,
		catalog.ProjectsTable: projects,
	}
	for name, f := range tables {
		if err := r.cfg.DB.WriteParquet(ctx, f, r.cfg.Catalog.LatestPath(name+".parquet")); err != nil {
			return fmt.Errorf("failed to publish %s.parquet: %w", name, err)
		}
		if err := r.cfg.DB.WriteCSVFile(ctx, f, r.cfg.Catalog.LatestPath(name+".csv")); err != nil {
			return fmt.Errorf("failed to publish %s.csv: %w", name, err)
		}
	}

	terms, err := r.terms(ctx)
	if err != nil {
		return err
	}

	var csvEntries, parquetEntries []archiveEntry
	tmpDir, err := os.MkdirTemp("", "offsetsdb-archive-*")
	if err != nil {
		return fmt.Errorf("failed to create archive staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, name := range []string{catalog.CreditsTable, catalog.ProjectsTable} {
		f := tables[name]

		var buf bytes.Buffer
		if err := frame.WriteCSV(&buf, f); err != nil {
			return fmt.Errorf("failed to render %s.csv: %w", name, err)
		}
		csvEntries = append(csvEntries, archiveEntry{name: name + ".csv", body: buf.Bytes()})

		staged := filepath.Join(tmpDir, name+".parquet")
		if err := r.cfg.DB.WriteParquet(ctx, f, staged); err != nil {
			return fmt.Errorf("failed to stage %s.parquet: %w", name, err)
		}
		body, err := os.ReadFile(staged)
		if err != nil {
			return fmt.Errorf("failed to read staged %s.parquet: %w", name, err)
		}
		parquetEntries = append(parquetEntries, archiveEntry{name: name + ".parquet", body: body})
	}

	archives := map[string][]archiveEntry{
		"offsets-db.csv.zip":     csvEntries,
		"offsets-db.parquet.zip": parquetEntries,
	}
	for name, entries := range archives {
		body, err := buildArchive(terms, entries)
		if err != nil {
			return err
		}
		path := r.cfg.Catalog.LatestPath(name)
		if err := r.cfg.Store.Put(ctx, path, body); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
		r.log.Info("published archive", "path", path, "bytes", len(body))
	}
	return nil
}
