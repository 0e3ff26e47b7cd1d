// Package pipeline drives the end-to-end normalization run: raw
// registry downloads in, schema-valid credits and projects tables out,
// cross-checked against the prior day's snapshots and packaged into the
// published archives.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"

	"github.com/offsetsdb/offsetsdb/pkg/beneficiary"
	"github.com/offsetsdb/offsetsdb/pkg/catalog"
	"github.com/offsetsdb/offsetsdb/pkg/duck"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

const defaultWorkers = 4

type Config struct {
	Log     *slog.Logger
	DB      *duck.DB
	Catalog *catalog.Catalog
	Store   *catalog.Store

	// InputDir holds the raw downloads, one subdirectory per registry
	// with one file per download type.
	InputDir string

	// TermsPath optionally points at the terms-of-access text packaged
	// into every archive. The built-in text is used when empty.
	TermsPath string

	// Harmonizer is optional; when nil, beneficiary names pass through
	// unharmonized.
	Harmonizer *beneficiary.Harmonizer

	Clock   clockwork.Clock
	Workers int
}

func (c *Config) Validate() error {
	if c.Log == nil {
		return fmt.Errorf("logger is required")
	}
	if c.DB == nil {
		return fmt.Errorf("database is required")
	}
	if c.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	return nil
}

// Runner executes one pipeline run.
type Runner struct {
	cfg  Config
	log  *slog.Logger
	pool pond.ResultPool[*registryOutput]
}

func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Runner{
		cfg:  cfg,
		log:  cfg.Log,
		pool: pond.NewResultPool[*registryOutput](workers),
	}, nil
}

// registryOutput is the processed credits and projects of one registry.
type registryOutput struct {
	registry string
	credits  *frame.Frame
	projects *frame.Frame
}

// writeRegistrySlices writes one registry's credits and projects next
// to the combined snapshot so individual registries can be inspected.
func (r *Runner) writeRegistrySlices(ctx context.Context, out *registryOutput, runDate time.Time) error {
	for table, f := range map[string]*frame.Frame{
		catalog.CreditsTable:  out.credits,
		catalog.ProjectsTable: out.projects,
	} {
		if f == nil || f.Len() == 0 {
			continue
		}
		path := r.cfg.Catalog.RegistryPath(table, out.registry, runDate)
		if err := r.cfg.DB.WriteParquet(ctx, f, path); err != nil {
			return fmt.Errorf("failed to write %s %s slice: %w", out.registry, table, err)
		}
	}
	return nil
}

// Run processes every registry, validates the combined tables against
// prior snapshots, writes the dated snapshots, and publishes the
// latest artifacts.
func (r *Runner) Run(ctx context.Context) error {
	started := r.cfg.Clock.Now()
	runDate := started.UTC().Truncate(24 * time.Hour)
	r.log.Info("starting pipeline run", "date", runDate.Format("2006-01-02"))

	arbCredits, err := r.processARB(ctx)
	if err != nil {
		return fmt.Errorf("failed to process ARB data: %w", err)
	}

	outputs, err := r.processRegistries(ctx, arbCredits)
	if err != nil {
		return err
	}

	var creditParts, projectParts []*frame.Frame
	for _, out := range outputs {
		creditParts = append(creditParts, out.credits)
		projectParts = append(projectParts, out.projects)
	}
	credits := transform.SortCredits(frame.Concat(creditParts...))
	projects := frame.Concat(projectParts...).SortBy("project_id")

	if err := crossDayValidate(ctx, r.log, r.cfg.Catalog, runDate, credits, projects); err != nil {
		return err
	}

	if err := r.cfg.Catalog.WriteSnapshot(ctx, credits, catalog.CreditsTable, runDate); err != nil {
		return err
	}
	if err := r.cfg.Catalog.WriteSnapshot(ctx, projects, catalog.ProjectsTable, runDate); err != nil {
		return err
	}
	for _, out := range outputs {
		if err := r.writeRegistrySlices(ctx, out, runDate); err != nil {
			return err
		}
	}
	if err := r.publish(ctx, credits, projects); err != nil {
		return err
	}

	summarize(r.log, outputs, credits, projects)
	r.log.Info("pipeline run finished",
		"credits", credits.Len(), "projects", projects.Len(),
		"elapsed", r.cfg.Clock.Since(started).Round(time.Second))
	return nil
}

// processRegistries runs every registry adapter through the worker
// pool. Registry names unknown to the input directory still run; their
// adapters short-circuit on empty input.
func (r *Runner) processRegistries(ctx context.Context, arbCredits *frame.Frame) ([]*registryOutput, error) {
	registries := []string{
		registry.Verra,
		registry.AmericanCarbonRegistry,
		registry.ClimateActionReserve,
		registry.ARTTrees,
		registry.GoldStandard,
		registry.GlobalCarbonCouncil,
		registry.Cercarbono,
		registry.Isometric,
	}

	group := r.pool.NewGroupContext(ctx)
	for _, name := range registries {
		name := name
		group.SubmitErr(func() (*registryOutput, error) {
			out, err := r.processRegistry(ctx, name, arbCredits)
			if err != nil {
				return nil, fmt.Errorf("failed to process %s: %w", name, err)
			}
			return out, nil
		})
	}
	outputs, err := group.Wait()
	if err != nil {
		return nil, err
	}
	return outputs, nil
}
