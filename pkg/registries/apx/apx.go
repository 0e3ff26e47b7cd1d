// Package apx normalizes exports of the APX-hosted registries:
// American Carbon Registry, Climate Action Reserve and ART-TREES. The
// three share one raw shape and differ only in status handling and in
// ART-TREES having no methodology columns at all.
package apx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/offsetsdb/offsetsdb/pkg/beneficiary"
	"github.com/offsetsdb/offsetsdb/pkg/configs"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

var transactionTypes = map[string]string{
	registry.DownloadIssuances:     transform.TransactionIssuance,
	registry.DownloadRetirements:   transform.TransactionRetirement,
	registry.DownloadCancellations: transform.TransactionCancellation,
}

// ProcessCredits normalizes one APX credits export. arb may carry the
// authoritative ARB issuance table; when the harmonizer is non-nil,
// retirement beneficiary names are clustered through it.
func ProcessCredits(ctx context.Context, log *slog.Logger, raw *frame.Frame, downloadType, registryName string, arb *frame.Frame, harmonizer *beneficiary.Harmonizer) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Credits.Validate(frame.Credits.Conform(frame.New()))
	}

	mapping, err := configs.CreditColumnMapping(registryName, downloadType)
	if err != nil {
		return nil, err
	}
	txType, ok := transactionTypes[downloadType]
	if !ok {
		return nil, fmt.Errorf("unknown download type %q", downloadType)
	}

	f := raw.Copy()
	f = transform.SetRegistry(f, registryName)
	f.SetConst("transaction_type", frame.String(txType))
	f = transform.RenameColumns(f, mapping)

	// The exports mix date and datetime strings; keeping only the date
	// part makes parsing uniform.
	if f.HasColumn("transaction_date") {
		for row := 0; row < f.Len(); row++ {
			v := f.Value("transaction_date", row)
			if v.IsNull() || v.Type() != frame.TypeString {
				continue
			}
			if fields := strings.Fields(v.Str()); len(fields) > 0 {
				f.Set("transaction_date", row, frame.String(fields[0]))
			}
		}
	}
	if f, err = transform.ConvertToDatetime(f, []string{"transaction_date"}); err != nil {
		return nil, err
	}
	f = transform.CleanNumericColumns(f, "quantity")
	if f, err = transform.ConvertVintageToYear(f, "vintage"); err != nil {
		return nil, err
	}

	if downloadType == registry.DownloadIssuances {
		if f, err = transform.AggregateIssuances(f); err != nil {
			return nil, err
		}
	}

	f = frame.Credits.Conform(f)
	if f, err = frame.Credits.Validate(f); err != nil {
		return nil, err
	}

	if arb != nil && arb.Len() > 0 {
		f = transform.MergeWithARB(f, arb)
	}
	if harmonizer != nil {
		if f, err = harmonizer.Harmonize(ctx, f, registryName, downloadType); err != nil {
			return nil, err
		}
	}

	f = frame.Credits.Conform(f)
	log.Debug("processed credits", "registry", registryName, "download_type", downloadType, "rows", f.Len())
	return frame.Credits.Validate(f)
}

var acrComplianceStates = map[string]string{
	"Listed - Active ARB Project":        "active",
	"ARB Completed":                      "completed",
	"ARB Inactive":                       "completed",
	"Listed - Proposed Project":          "listed",
	"Listed - Active Registry Project":   "listed",
	"ARB Terminated":                     "completed",
	"Submitted":                          "listed",
	"Transferred ARB or Ecology Project": "active",
}

// The compliance status column uses assorted unicode dashes depending
// on export vintage; fold them all to ASCII before lookup.
var dashNormalizer = strings.NewReplacer(
	"–", "-", "—", "-", "‐", "-", "−", "-",
)

// harmonizeACRStatus folds ACR's two status columns into one. Projects
// outside the compliance program take their lowercased voluntary
// status; the rest map through the compliance state table.
func harmonizeACRStatus(compliance, voluntary frame.Value) string {
	if compliance.Str() == "Not ARB or Ecology Eligible" {
		return strings.ToLower(voluntary.Str())
	}
	key := strings.TrimSpace(dashNormalizer.Replace(compliance.Str()))
	if status, ok := acrComplianceStates[key]; ok {
		return status
	}
	return "unknown"
}

// ProcessProjects normalizes one APX projects export, enriching it with
// totals and dates from the already-processed credits.
func ProcessProjects(log *slog.Logger, raw, credits *frame.Frame, registryName string) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Projects.Validate(frame.Projects.Conform(frame.New()))
	}

	mapping, err := configs.ProjectColumnMapping(registryName)
	if err != nil {
		return nil, err
	}
	f := raw.Copy()

	if registryName == registry.AmericanCarbonRegistry {
		statuses := make([]frame.Value, f.Len())
		for row := 0; row < f.Len(); row++ {
			statuses[row] = frame.String(harmonizeACRStatus(
				f.Value("Compliance Program Status (ARB or Ecology)", row),
				f.Value("Voluntary Status", row)))
		}
		f.SetColumn("status", statuses)
	}

	f = transform.RenameColumns(f, mapping)

	if registryName == registry.ARTTrees {
		f.SetConst("protocol", frame.StringList([]string{"art-trees"}))
	} else {
		inverted, err := configs.InvertedProtocolMapping()
		if err != nil {
			return nil, err
		}
		f = transform.MapProtocol(f, inverted)
	}
	if registryName != registry.AmericanCarbonRegistry {
		f = transform.HarmonizeStatusCodes(f)
	}

	f = transform.SetRegistry(f, registryName)
	urls := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		urls[row] = frame.String(registry.ProjectURL(registryName, f.Value("project_id", row).Str()))
	}
	f.SetColumn("project_url", urls)

	if f, err = transform.HarmonizeCountryNames(f); err != nil {
		return nil, err
	}
	f = transform.InferProjectType(f)
	overrides, err := configs.BerkeleyProjectTypes()
	if err != nil {
		return nil, err
	}
	f = transform.OverrideProjectTypes(f, overrides, "berkeley")
	if f, err = transform.AddCategoryFromType(f); err != nil {
		return nil, err
	}
	if registryName == registry.ARTTrees {
		f.SetConst("category", frame.StringList([]string{"forest"}))
	}
	if f, err = transform.MapProjectTypeToDisplayName(f); err != nil {
		return nil, err
	}
	f = transform.AddComplianceFlag(f)
	f = transform.AddRetiredIssuedTotals(f, credits)
	f = transform.AddFirstIssuanceRetirementDates(f, credits)

	f = frame.Projects.Conform(f)
	if f, err = transform.ConvertToDatetime(f, []string{"listed_at"}); err != nil {
		return nil, err
	}
	log.Debug("processed projects", "registry", registryName, "rows", f.Len())
	return frame.Projects.Validate(f)
}
