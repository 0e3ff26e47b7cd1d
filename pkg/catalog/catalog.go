// Package catalog locates dated pipeline snapshots and moves packaged
// artifacts in and out of object storage. Snapshots live under
// <base>/production/<YYYY-MM-DD>/{credits,projects}.parquet with the
// packaged archives under <base>/production/latest/.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/offsetsdb/offsetsdb/pkg/duck"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

const (
	CreditsTable  = "credits"
	ProjectsTable = "projects"

	dateLayout = "2006-01-02"
)

type Config struct {
	Log *slog.Logger
	DB  *duck.DB

	// Base is the snapshot root, either a local directory or an
	// s3://bucket[/prefix] URI.
	Base string
}

func (c *Config) Validate() error {
	if c.Log == nil {
		return fmt.Errorf("logger is required")
	}
	if c.DB == nil {
		return fmt.Errorf("database is required")
	}
	if c.Base == "" {
		return fmt.Errorf("base URI is required")
	}
	return nil
}

// Catalog reads dated credits/projects snapshots.
type Catalog struct {
	cfg Config
}

func New(cfg Config) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog config: %w", err)
	}
	return &Catalog{cfg: cfg}, nil
}

// SnapshotPath returns the parquet path of a table snapshot for a date.
func (c *Catalog) SnapshotPath(table string, date time.Time) string {
	return fmt.Sprintf("%s/production/%s/%s.parquet",
		strings.TrimSuffix(c.cfg.Base, "/"), date.UTC().Format(dateLayout), table)
}

// RegistryPath returns the parquet path of a single registry's slice
// of a table snapshot for a date.
func (c *Catalog) RegistryPath(table, registryName string, date time.Time) string {
	return fmt.Sprintf("%s/production/%s/registries/%s/%s.parquet",
		strings.TrimSuffix(c.cfg.Base, "/"), date.UTC().Format(dateLayout), registryName, table)
}

// LatestPath returns the path of a packaged artifact under production/latest.
func (c *Catalog) LatestPath(name string) string {
	return strings.TrimSuffix(c.cfg.Base, "/") + "/production/latest/" + name
}

// Snapshot reads a table snapshot for a date. A missing snapshot is an
// error; callers probing multiple look-back days treat it as a miss.
func (c *Catalog) Snapshot(ctx context.Context, table string, date time.Time) (*frame.Frame, error) {
	path := c.SnapshotPath(table, date)
	c.cfg.Log.Debug("reading snapshot", "table", table, "date", date.UTC().Format(dateLayout), "path", path)
	f, err := c.cfg.DB.ReadParquet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s snapshot for %s: %w",
			table, date.UTC().Format(dateLayout), err)
	}
	return f, nil
}

// WriteSnapshot writes a table snapshot for a date.
func (c *Catalog) WriteSnapshot(ctx context.Context, f *frame.Frame, table string, date time.Time) error {
	path := c.SnapshotPath(table, date)
	if err := c.cfg.DB.WriteParquet(ctx, f, path); err != nil {
		return fmt.Errorf("failed to write %s snapshot: %w", table, err)
	}
	c.cfg.Log.Info("wrote snapshot", "table", table, "rows", f.Len(), "path", path)
	return nil
}
