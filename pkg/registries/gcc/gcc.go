// Package gcc normalizes Global Carbon Council exports. GCC credit
// exports carry no project ids, only project names, so ids are resolved
// by joining against the projects export, whose names in turn have to
// be scraped out of anchor-tag markup.
package gcc

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/offsetsdb/offsetsdb/pkg/configs"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

const Prefix = "GCC"

var (
	nameRe       = regexp.MustCompile(`>(.*)<`)
	internalIDRe = regexp.MustCompile(`/(\d+)<*`)
)

// projectName extracts the display name from the anchor-tag markup the
// export embeds in its project_url cells.
func projectName(rawURL string) string {
	if m := nameRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// projectPageURL rebuilds the public project page from the internal id
// inside the markup.
func projectPageURL(rawURL string) string {
	if m := internalIDRe.FindStringSubmatch(rawURL); m != nil {
		return "https://projects.globalcarboncouncil.com/project/" + m[1]
	}
	return ""
}

// swapPrefix turns submission numbers such as S00112 into GCC00112.
func swapPrefix(id string) string {
	return strings.ReplaceAll(id, "S", Prefix)
}

// ProcessCredits normalizes one GCC credits export. rawProjects is the
// unprocessed projects export used for the name to submission-number
// join.
func ProcessCredits(log *slog.Logger, raw, rawProjects *frame.Frame, downloadType string, arb *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Credits.Validate(frame.Credits.Conform(frame.New()))
	}

	f := raw.Copy()
	var err error
	if f, err = transform.ConvertVintageToYear(f, "vintage"); err != nil {
		return nil, err
	}

	switch downloadType {
	case registry.DownloadIssuances:
		f.SetConst("transaction_type", frame.String(transform.TransactionIssuance))
		// The export has no issuance dates.
		f.SetConst("transaction_date", frame.Null())
	case registry.DownloadRetirements:
		f.SetConst("transaction_type", frame.String(transform.TransactionRetirement))
		dates := make([]frame.Value, f.Len())
		for row := 0; row < f.Len(); row++ {
			v := f.Value("retirement_date", row)
			if v.IsNull() || v.Str() == "" {
				dates[row] = frame.Null()
				continue
			}
			ms, err := strconv.ParseInt(strings.TrimSpace(v.Str()), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: unparseable retirement timestamp %q", row, v.Str())
			}
			dates[row] = frame.Time(time.UnixMilli(ms).UTC())
		}
		f.SetColumn("transaction_date", dates)
	default:
		return nil, fmt.Errorf("unknown download type %q", downloadType)
	}

	f = transform.SetRegistry(f, registry.GlobalCarbonCouncil)

	// Resolve submission numbers through the project names.
	byName := make(map[string]string, rawProjects.Len())
	for row := 0; row < rawProjects.Len(); row++ {
		name := projectName(rawProjects.Value("project_url", row).Str())
		byName[name] = rawProjects.Value("project_submission_number", row).Str()
	}
	ids := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		if id, ok := byName[f.Value("project_name", row).Str()]; ok {
			ids[row] = frame.String(swapPrefix(id))
		}
	}
	f.SetColumn("project_id", ids)

	mapping, err := configs.CreditColumnMapping(registry.GlobalCarbonCouncil, downloadType)
	if err != nil {
		return nil, err
	}
	f = transform.RenameColumns(f, mapping)
	f = transform.CleanNumericColumns(f, "quantity")

	f = frame.Credits.Conform(f)
	if f, err = frame.Credits.Validate(f); err != nil {
		return nil, err
	}
	if arb != nil && arb.Len() > 0 {
		f = transform.MergeWithARB(f, arb)
		if f, err = frame.Credits.Validate(frame.Credits.Conform(f)); err != nil {
			return nil, err
		}
	}
	log.Debug("processed credits", "registry", registry.GlobalCarbonCouncil, "download_type", downloadType, "rows", f.Len())
	return f, nil
}

// ProcessProjects normalizes one GCC projects export.
func ProcessProjects(log *slog.Logger, raw, credits *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Projects.Validate(frame.Projects.Conform(frame.New()))
	}

	mapping, err := configs.ProjectColumnMapping(registry.GlobalCarbonCouncil)
	if err != nil {
		return nil, err
	}
	inverted, err := configs.InvertedProtocolMapping()
	if err != nil {
		return nil, err
	}

	f := transform.RenameColumns(raw.Copy(), mapping)
	f = transform.SetRegistry(f, registry.GlobalCarbonCouncil)

	names := make([]frame.Value, f.Len())
	urls := make([]frame.Value, f.Len())
	ids := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		rawURL := f.Value("project_url", row).Str()
		names[row] = frame.String(projectName(rawURL))
		urls[row] = frame.String(projectPageURL(rawURL))
		ids[row] = frame.String(swapPrefix(f.Value("project_id", row).Str()))
	}
	f.SetColumn("name", names)
	f.SetColumn("project_url", urls)
	f.SetColumn("project_id", ids)

	if f, err = transform.HarmonizeCountryNames(f); err != nil {
		return nil, err
	}
	f = transform.HarmonizeStatusCodes(f)
	f = transform.MapProtocol(f, inverted)
	if f, err = transform.AddCategoryFromProtocol(f); err != nil {
		return nil, err
	}
	f = transform.AddComplianceFlag(f)
	f = transform.AddRetiredIssuedTotals(f, credits)
	f = transform.AddFirstIssuanceRetirementDates(f, credits)

	f = frame.Projects.Conform(f)
	if f, err = transform.ConvertToDatetime(f, []string{"listed_at"}); err != nil {
		return nil, err
	}
	log.Debug("processed projects", "registry", registry.GlobalCarbonCouncil, "rows", f.Len())
	return frame.Projects.Validate(f)
}
