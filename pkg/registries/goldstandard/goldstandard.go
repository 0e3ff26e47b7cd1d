// Package goldstandard normalizes Gold Standard registry exports. The
// credits API nests the owning project as a serialized metadata dict,
// and the public project URL uses a different id than the SustainCert
// id carried on project rows.
package goldstandard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/offsetsdb/offsetsdb/pkg/configs"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

// Prefix distinguishes Gold Standard ids; the only two-character
// registry prefix in the canonical tables.
const Prefix = "GS"

var transactionTypes = map[string]string{
	registry.DownloadIssuances:   transform.TransactionIssuance,
	registry.DownloadRetirements: transform.TransactionRetirement,
}

// sustainCertID pulls sustaincert_id out of the serialized project
// metadata dict attached to each credit row. The field arrives either
// as JSON or as a Python literal with single quotes.
func sustainCertID(raw string) (string, error) {
	normalized := strings.TrimSpace(raw)
	candidates := []string{normalized, strings.ReplaceAll(strings.ReplaceAll(normalized, "'", `"`), "None", "null")}
	for _, candidate := range candidates {
		var meta map[string]any
		if err := json.Unmarshal([]byte(candidate), &meta); err != nil {
			continue
		}
		switch id := meta["sustaincert_id"].(type) {
		case string:
			return id, nil
		case float64:
			return strconv.FormatInt(int64(id), 10), nil
		case nil:
			return "", fmt.Errorf("project metadata has no sustaincert_id")
		}
	}
	return "", fmt.Errorf("unparseable project metadata %q", raw)
}

// ProcessCredits normalizes one Gold Standard credits export.
func ProcessCredits(log *slog.Logger, raw *frame.Frame, downloadType string, arb *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Credits.Validate(frame.Credits.Conform(frame.New()))
	}

	mapping, err := configs.CreditColumnMapping(registry.GoldStandard, downloadType)
	if err != nil {
		return nil, err
	}
	txType, ok := transactionTypes[downloadType]
	if !ok {
		return nil, fmt.Errorf("unknown download type %q", downloadType)
	}

	f := transform.RenameColumns(raw.Copy(), mapping)
	f = transform.SetRegistry(f, registry.GoldStandard)
	f.SetConst("transaction_type", frame.String(txType))

	ids := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		id, err := sustainCertID(f.Value("project", row).Str())
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		ids[row] = frame.String(Prefix + id)
	}
	f.SetColumn("project_id", ids)

	f = transform.CleanNumericColumns(f, "quantity")
	if f, err = transform.ConvertVintageToYear(f, "vintage"); err != nil {
		return nil, err
	}

	if downloadType == registry.DownloadIssuances {
		if f, err = transform.AggregateIssuances(f); err != nil {
			return nil, err
		}
	}
	if f, err = transform.ConvertToDatetime(f, []string{"transaction_date"}); err != nil {
		return nil, err
	}
	f = frame.Credits.Conform(f)
	if f, err = frame.Credits.Validate(f); err != nil {
		return nil, err
	}
	if arb != nil && arb.Len() > 0 {
		f = transform.MergeWithARB(f, arb)
	}
	log.Debug("processed credits", "registry", registry.GoldStandard, "download_type", downloadType, "rows", f.Len())
	return frame.Credits.Validate(frame.Credits.Conform(f))
}

// ProcessProjects normalizes one Gold Standard projects export.
func ProcessProjects(log *slog.Logger, raw, credits *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Projects.Validate(frame.Projects.Conform(frame.New()))
	}

	mapping, err := configs.ProjectColumnMapping(registry.GoldStandard)
	if err != nil {
		return nil, err
	}
	inverted, err := configs.InvertedProtocolMapping()
	if err != nil {
		return nil, err
	}

	f := transform.RenameColumns(raw.Copy(), mapping)
	f = transform.SetRegistry(f, registry.GoldStandard)

	// The public project page is keyed by the numeric registry id, not
	// the SustainCert id used for project_id.
	ids := make([]frame.Value, f.Len())
	urls := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		ids[row] = frame.String(Prefix + f.Value("project_id", row).Str())
		urls[row] = frame.String("https://registry.goldstandard.org/projects/details/" + f.Value("id", row).Str())
	}
	f.SetColumn("project_id", ids)
	f.SetColumn("project_url", urls)

	if f, err = transform.HarmonizeCountryNames(f); err != nil {
		return nil, err
	}
	f = transform.HarmonizeStatusCodes(f)
	f = transform.MapProtocol(f, inverted)
	if f, err = transform.AddCategoryFromProtocol(f); err != nil {
		return nil, err
	}
	f = transform.AddComplianceFlag(f)
	if credits != nil && credits.Len() > 0 {
		f = transform.AddRetiredIssuedTotals(f, credits)
		f = transform.AddFirstIssuanceRetirementDates(f, credits)
	}

	f = frame.Projects.Conform(f)
	if f, err = transform.ConvertToDatetime(f, []string{"listed_at"}); err != nil {
		return nil, err
	}
	log.Debug("processed projects", "registry", registry.GoldStandard, "rows", f.Len())
	return frame.Projects.Validate(f)
}
