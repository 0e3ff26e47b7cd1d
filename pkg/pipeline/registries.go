package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registries/apx"
	"github.com/offsetsdb/offsetsdb/pkg/registries/arb"
	"github.com/offsetsdb/offsetsdb/pkg/registries/cercarbono"
	"github.com/offsetsdb/offsetsdb/pkg/registries/gcc"
	"github.com/offsetsdb/offsetsdb/pkg/registries/goldstandard"
	"github.com/offsetsdb/offsetsdb/pkg/registries/isometric"
	"github.com/offsetsdb/offsetsdb/pkg/registries/verra"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
)

// readRaw loads one raw download, probing for a CSV first and an XLSX
// second. A missing file yields an empty frame so adapters can
// short-circuit instead of failing the run.
func (r *Runner) readRaw(ctx context.Context, registryName, downloadType string) (*frame.Frame, error) {
	base := filepath.Join(r.cfg.InputDir, registryName, downloadType)
	if _, err := os.Stat(base + ".csv"); err == nil {
		return r.cfg.DB.ReadCSVFile(ctx, base+".csv")
	}
	if _, err := os.Stat(base + ".xlsx"); err == nil {
		return r.cfg.DB.ReadXLSX(ctx, base+".xlsx")
	}
	r.log.Warn("raw download not found, treating as empty",
		"registry", registryName, "download_type", downloadType, "path", base)
	return frame.New(), nil
}

// processARB melts the ARB issuance workbook. Its output overrides
// registry data for compliance projects in every other adapter.
func (r *Runner) processARB(ctx context.Context) (*frame.Frame, error) {
	raw, err := r.readRaw(ctx, "arb", registry.DownloadTransactions)
	if err != nil {
		return nil, err
	}
	return arb.Process(r.log, raw)
}

func (r *Runner) processRegistry(ctx context.Context, name string, arbCredits *frame.Frame) (*registryOutput, error) {
	switch name {
	case registry.Verra:
		return r.processVerra(ctx, arbCredits)
	case registry.AmericanCarbonRegistry, registry.ClimateActionReserve, registry.ARTTrees:
		return r.processAPX(ctx, name, arbCredits)
	case registry.GoldStandard:
		return r.processGoldStandard(ctx, arbCredits)
	case registry.GlobalCarbonCouncil:
		return r.processGCC(ctx, arbCredits)
	case registry.Cercarbono:
		return r.processCercarbono(ctx)
	case registry.Isometric:
		return r.processIsometric(ctx)
	default:
		return nil, fmt.Errorf("unknown registry %q", name)
	}
}

func (r *Runner) processVerra(ctx context.Context, arbCredits *frame.Frame) (*registryOutput, error) {
	rawCredits, err := r.readRaw(ctx, registry.Verra, registry.DownloadTransactions)
	if err != nil {
		return nil, err
	}
	credits, err := verra.ProcessCredits(r.log, rawCredits, arbCredits)
	if err != nil {
		return nil, err
	}
	rawProjects, err := r.readRaw(ctx, registry.Verra, registry.DownloadProjects)
	if err != nil {
		return nil, err
	}
	projects, err := verra.ProcessProjects(r.log, rawProjects, credits)
	if err != nil {
		return nil, err
	}
	return &registryOutput{registry: registry.Verra, credits: credits, projects: projects}, nil
}

func (r *Runner) processAPX(ctx context.Context, name string, arbCredits *frame.Frame) (*registryOutput, error) {
	downloadTypes := []string{
		registry.DownloadIssuances,
		registry.DownloadRetirements,
		registry.DownloadCancellations,
	}
	var parts []*frame.Frame
	for _, downloadType := range downloadTypes {
		raw, err := r.readRaw(ctx, name, downloadType)
		if err != nil {
			return nil, err
		}
		if raw.Len() == 0 {
			continue
		}
		part, err := apx.ProcessCredits(ctx, r.log, raw, downloadType, name, arbCredits, r.cfg.Harmonizer)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", name, downloadType, err)
		}
		parts = append(parts, part)
	}
	credits := frame.Concat(parts...)

	rawProjects, err := r.readRaw(ctx, name, registry.DownloadProjects)
	if err != nil {
		return nil, err
	}
	projects, err := apx.ProcessProjects(r.log, rawProjects, credits, name)
	if err != nil {
		return nil, err
	}
	return &registryOutput{registry: name, credits: credits, projects: projects}, nil
}

func (r *Runner) processGoldStandard(ctx context.Context, arbCredits *frame.Frame) (*registryOutput, error) {
	var parts []*frame.Frame
	for _, downloadType := range []string{registry.DownloadIssuances, registry.DownloadRetirements} {
		raw, err := r.readRaw(ctx, registry.GoldStandard, downloadType)
		if err != nil {
			return nil, err
		}
		if raw.Len() == 0 {
			continue
		}
		part, err := goldstandard.ProcessCredits(r.log, raw, downloadType, arbCredits)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", registry.GoldStandard, downloadType, err)
		}
		parts = append(parts, part)
	}
	credits := frame.Concat(parts...)

	rawProjects, err := r.readRaw(ctx, registry.GoldStandard, registry.DownloadProjects)
	if err != nil {
		return nil, err
	}
	projects, err := goldstandard.ProcessProjects(r.log, rawProjects, credits)
	if err != nil {
		return nil, err
	}
	return &registryOutput{registry: registry.GoldStandard, credits: credits, projects: projects}, nil
}

func (r *Runner) processGCC(ctx context.Context, arbCredits *frame.Frame) (*registryOutput, error) {
	rawProjects, err := r.readRaw(ctx, registry.GlobalCarbonCouncil, registry.DownloadProjects)
	if err != nil {
		return nil, err
	}
	var parts []*frame.Frame
	for _, downloadType := range []string{registry.DownloadIssuances, registry.DownloadRetirements} {
		raw, err := r.readRaw(ctx, registry.GlobalCarbonCouncil, downloadType)
		if err != nil {
			return nil, err
		}
		if raw.Len() == 0 {
			continue
		}
		part, err := gcc.ProcessCredits(r.log, raw, rawProjects, downloadType, arbCredits)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", registry.GlobalCarbonCouncil, downloadType, err)
		}
		parts = append(parts, part)
	}
	credits := frame.Concat(parts...)

	projects, err := gcc.ProcessProjects(r.log, rawProjects, credits)
	if err != nil {
		return nil, err
	}
	return &registryOutput{registry: registry.GlobalCarbonCouncil, credits: credits, projects: projects}, nil
}

func (r *Runner) processCercarbono(ctx context.Context) (*registryOutput, error) {
	rawProjects, err := r.readRaw(ctx, registry.Cercarbono, registry.DownloadProjects)
	if err != nil {
		return nil, err
	}
	rawRetirements, err := r.readRaw(ctx, registry.Cercarbono, registry.DownloadRetirements)
	if err != nil {
		return nil, err
	}
	credits, err := cercarbono.ProcessCredits(r.log, rawProjects, rawRetirements)
	if err != nil {
		return nil, err
	}
	projects, err := cercarbono.ProcessProjects(r.log, rawProjects)
	if err != nil {
		return nil, err
	}
	return &registryOutput{registry: registry.Cercarbono, credits: credits, projects: projects}, nil
}

func (r *Runner) processIsometric(ctx context.Context) (*registryOutput, error) {
	rawProjects, err := r.readRaw(ctx, registry.Isometric, registry.DownloadProjects)
	if err != nil {
		return nil, err
	}
	shortCodes := shortCodesFromProjects(rawProjects)

	var parts []*frame.Frame
	for _, downloadType := range []string{registry.DownloadIssuances, registry.DownloadRetirements} {
		raw, err := r.readRaw(ctx, registry.Isometric, downloadType)
		if err != nil {
			return nil, err
		}
		if raw.Len() == 0 {
			continue
		}
		part, err := isometric.ProcessCredits(ctx, r.log, raw, downloadType, shortCodes, r.cfg.Harmonizer)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", registry.Isometric, downloadType, err)
		}
		parts = append(parts, part)
	}
	credits := frame.Concat(parts...)

	projects, err := isometric.ProcessProjects(r.log, rawProjects, credits)
	if err != nil {
		return nil, err
	}
	return &registryOutput{registry: registry.Isometric, credits: credits, projects: projects}, nil
}

// shortCodesFromProjects builds the internal-id to short-code map the
// credit exports need. Exports that already carry short codes have no
// id column and yield nil.
func shortCodesFromProjects(rawProjects *frame.Frame) map[string]string {
	if !rawProjects.HasColumn("id") || !rawProjects.HasColumn("short_code") {
		return nil
	}
	codes := make(map[string]string, rawProjects.Len())
	for row := 0; row < rawProjects.Len(); row++ {
		id := rawProjects.Value("id", row)
		code := rawProjects.Value("short_code", row)
		if id.IsNull() || code.IsNull() {
			continue
		}
		codes[strings.TrimSpace(id.Str())] = strings.TrimSpace(code.Str())
	}
	return codes
}
