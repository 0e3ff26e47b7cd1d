// Package isometric normalizes Isometric registry API exports. Credit
// exports key rows by an internal project id that must be mapped to the
// public short code before the ISO prefix is applied.
package isometric

import (
	"context"
	"log/slog"

	"github.com/offsetsdb/offsetsdb/pkg/beneficiary"
	"github.com/offsetsdb/offsetsdb/pkg/configs"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

// Prefix standardizes Isometric project ids.
const Prefix = "ISO"

// ProcessCredits normalizes an issuance or retirement export into
// canonical credit rows. shortCodes maps internal project ids to public
// short codes; pass nil when the export already carries short codes.
// A non-nil harmonizer rewrites retirement beneficiary fields.
func ProcessCredits(ctx context.Context, log *slog.Logger, raw *frame.Frame, downloadType string, shortCodes map[string]string, harmonizer *beneficiary.Harmonizer) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Credits.Validate(frame.Credits.Conform(frame.New()))
	}

	mapping, err := configs.CreditColumnMapping(registry.Isometric, downloadType)
	if err != nil {
		return nil, err
	}

	f := raw.Copy()
	if shortCodes != nil {
		for row := 0; row < f.Len(); row++ {
			id := f.Value("project_id", row)
			if id.IsNull() {
				continue
			}
			if code, ok := shortCodes[id.Str()]; ok {
				f.Set("project_id", row, frame.String(Prefix+code))
			} else {
				f.Set("project_id", row, frame.Null())
			}
		}
	}

	switch downloadType {
	case registry.DownloadIssuances:
		f.SetConst("transaction_type", frame.String(transform.TransactionIssuance))
	case registry.DownloadRetirements:
		// The retirement vintage is the year the removal was
		// sequestered, not the year it was retired.
		if f, err = transform.ConvertToDatetime(f, []string{"sequestered_on"}); err != nil {
			return nil, err
		}
		for row := 0; row < f.Len(); row++ {
			if v := f.Value("sequestered_on", row); !v.IsNull() {
				f.Set("sequestered_on", row, frame.Int(int64(v.Time().Year())))
			}
		}
		f.SetConst("transaction_type", frame.String(transform.TransactionRetirement))
	}

	f = transform.RenameColumns(f, mapping)
	f = transform.SetRegistry(f, registry.Isometric)
	f = transform.CleanNumericColumns(f, "quantity")
	if f, err = transform.ConvertToDatetime(f, []string{"transaction_date"}, transform.WithLayout("2006-01-02")); err != nil {
		return nil, err
	}

	f = frame.Credits.Conform(f)
	f, err = frame.Credits.Validate(f)
	if err != nil {
		return nil, err
	}

	if harmonizer != nil {
		if f, err = harmonizer.Harmonize(ctx, f, registry.Isometric, downloadType); err != nil {
			return nil, err
		}
		f = frame.Credits.Conform(f)
		return frame.Credits.Validate(f)
	}

	log.Debug("processed isometric credits", "download_type", downloadType, "rows", f.Len())
	return f, nil
}

// ProcessProjects normalizes the raw projects export. Isometric is a
// removals registry with no compliance program, so types flow through
// inference and the override table.
func ProcessProjects(log *slog.Logger, raw, credits *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Projects.Validate(frame.Projects.Conform(frame.New()))
	}

	mapping, err := configs.ProjectColumnMapping(registry.Isometric)
	if err != nil {
		return nil, err
	}
	protocols, err := configs.InvertedProtocolMapping()
	if err != nil {
		return nil, err
	}
	overrides, err := configs.BerkeleyProjectTypes()
	if err != nil {
		return nil, err
	}

	f := raw.Copy()
	f = transform.RenameColumns(f, mapping)
	f = transform.SetRegistry(f, registry.Isometric)
	for row := 0; row < f.Len(); row++ {
		if id := f.Value("project_id", row); !id.IsNull() {
			f.Set("project_id", row, frame.String(Prefix+id.Str()))
		}
		f.Set("project_url", row, f.Value("url", row))
	}
	if f, err = transform.HarmonizeCountryNames(f); err != nil {
		return nil, err
	}
	f = transform.HarmonizeStatusCodes(f)
	f = transform.MapProtocol(f, protocols)
	f = transform.InferProjectType(f)
	f = transform.OverrideProjectTypes(f, overrides, "berkeley")
	if f, err = transform.AddCategoryFromType(f); err != nil {
		return nil, err
	}
	if f, err = transform.MapProjectTypeToDisplayName(f); err != nil {
		return nil, err
	}
	f = transform.AddRetiredIssuedTotals(f, credits)
	f = transform.AddFirstIssuanceRetirementDates(f, credits)
	f = frame.Projects.Conform(f)
	if f, err = transform.ConvertToDatetime(f, []string{"listed_at", "first_issuance_at", "first_retirement_at"}); err != nil {
		return nil, err
	}

	log.Debug("processed isometric projects", "rows", f.Len())
	return frame.Projects.Validate(f)
}
