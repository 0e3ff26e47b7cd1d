// Package cercarbono normalizes EcoRegistry exports for the Cercarbono
// registry. Issuances are not published as a flat table; they live in a
// nested serials array on each project record and are exploded here.
package cercarbono

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

const (
	// Prefix standardizes retirement project ids, which the registry
	// publishes without the CDC code prefix.
	Prefix = "CDC"

	projectURLBase = "https://www.ecoregistry.io/projects"
)

// serial is one issuance batch nested under a project record.
type serial struct {
	IssuedQuantity   json.Number `json:"issued_quantity"`
	IssuanceDate     string      `json:"issuance_date"`
	VintageOfCredits string      `json:"vintage_of_credits"`
}

// location is one entry of a project's locations array.
type location struct {
	Country string `json:"country"`
}

// serialVintage extracts the vintage year from a credit period string
// such as "2019-01-01 / 2020-12-31", keeping the trailing date's year.
func serialVintage(raw string) (int64, error) {
	parts := strings.Split(raw, " / ")
	last := strings.TrimSpace(parts[len(parts)-1])
	if len(last) < 4 {
		return 0, fmt.Errorf("vintage period %q too short", raw)
	}
	year, err := strconv.ParseInt(last[:4], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vintage period %q: %w", raw, err)
	}
	return year, nil
}

// explodeIssuances flattens the serials array of every project record
// into one issuance row per batch.
func explodeIssuances(rawProjects *frame.Frame) (*frame.Frame, error) {
	out := frame.New("project_id", "quantity", "vintage", "date", "transaction_type")
	for row := 0; row < rawProjects.Len(); row++ {
		cell := rawProjects.Value("serials", row)
		if cell.IsNull() || cell.Str() == "" {
			continue
		}
		code := rawProjects.Value("code", row).Str()
		var serials []serial
		if err := json.Unmarshal([]byte(cell.Str()), &serials); err != nil {
			return nil, fmt.Errorf("parsing serials for project %q: %w", code, err)
		}
		for _, s := range serials {
			vintage, err := serialVintage(s.VintageOfCredits)
			if err != nil {
				return nil, fmt.Errorf("project %q: %w", code, err)
			}
			out.AppendRow(map[string]frame.Value{
				"project_id":       frame.String(code),
				"quantity":         frame.String(s.IssuedQuantity.String()),
				"vintage":          frame.Int(vintage),
				"date":             frame.String(s.IssuanceDate),
				"transaction_type": frame.String(transform.TransactionIssuance),
			})
		}
	}
	return out, nil
}

// ProcessCredits builds canonical credit rows from the raw projects
// export, which carries the nested issuance serials, and the raw
// retirements export.
func ProcessCredits(log *slog.Logger, rawProjects, rawRetirements *frame.Frame) (*frame.Frame, error) {
	if rawProjects.Len() == 0 && rawRetirements.Len() == 0 {
		return frame.Credits.Validate(frame.Credits.Conform(frame.New()))
	}

	issuances, err := explodeIssuances(rawProjects)
	if err != nil {
		return nil, err
	}

	retirements := rawRetirements.Copy()
	for row := 0; row < retirements.Len(); row++ {
		id := retirements.Value("project_id", row)
		if !id.IsNull() {
			retirements.Set("project_id", row, frame.String(Prefix+"-"+id.Str()))
		}
	}
	retirements.SetConst("transaction_type", frame.String(transform.TransactionRetirement))

	mapping, err := configs.CreditColumnMapping(registry.Cercarbono, registry.DownloadRetirements)
	if err != nil {
		return nil, err
	}

	f := frame.Concat(issuances, retirements)
	f = transform.SetRegistry(f, registry.Cercarbono)
	f = transform.RenameColumns(f, mapping)
	f = transform.CleanNumericColumns(f, "quantity", "vintage")
	if f, err = transform.ConvertToDatetime(f, []string{"transaction_date"}); err != nil {
		return nil, err
	}

	f = frame.Credits.Conform(f)
	log.Debug("processed cercarbono credits",
		"issuances", issuances.Len(), "retirements", retirements.Len())
	return frame.Credits.Validate(f)
}

// ProcessProjects normalizes the raw projects export. Protocol strings
// from EcoRegistry rarely match the known methodology index, so project
// types flow through inference and the override table rather than
// straight protocol categories.
func ProcessProjects(log *slog.Logger, raw *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Projects.Validate(frame.Projects.Conform(frame.New()))
	}

	mapping, err := configs.ProjectColumnMapping(registry.Cercarbono)
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

	// locations is a nested array; the first entry carries the country.
	countries := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		cell := f.Value("locations", row)
		if cell.IsNull() || cell.Str() == "" {
			countries[row] = frame.Null()
			continue
		}
		var locs []location
		if err := json.Unmarshal([]byte(cell.Str()), &locs); err != nil {
			return nil, fmt.Errorf("parsing locations row %d: %w", row, err)
		}
		if len(locs) == 0 {
			countries[row] = frame.Null()
			continue
		}
		countries[row] = frame.String(locs[0].Country)
	}
	f.SetColumn("country", countries)

	f = transform.RenameColumns(f, mapping)
	f = transform.SetRegistry(f, registry.Cercarbono)
	for row := 0; row < f.Len(); row++ {
		id := f.Value("project_id", row)
		if !id.IsNull() {
			f.Set("project_url", row, frame.String(projectURLBase+"/"+id.Str()))
		}
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
	f = transform.AddComplianceFlag(f)
	f = frame.Projects.Conform(f)
	if f, err = transform.ConvertToDatetime(f, []string{"listed_at", "first_issuance_at", "first_retirement_at"}); err != nil {
		return nil, err
	}

	log.Debug("processed cercarbono projects", "rows", f.Len())
	return frame.Projects.Validate(f)
}
