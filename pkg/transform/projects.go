package transform

import (
	"strings"

	"github.com/offsetsdb/offsetsdb/pkg/configs"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

// statusCodes folds the per-registry project states into the shared
// status vocabulary: listed, registered, active, completed, unknown.
// ACR is excluded; its status spans two columns and is harmonized in
// the adapter.
var statusCodes = map[string]string{
	// GCC
	"VERIFICATION":             "listed",
	"RFR CC INCOMPLETE":        "unknown",
	"GCC ASSESMENT":            "listed",
	"REGISTERED":               "registered",
	"REQUEST FOR REGISTRATION": "listed",

	// CAR
	"Registered":   "registered",
	"Completed":    "completed",
	"Listed":       "listed",
	"Transitioned": "unknown",

	// Verra
	"Under validation":                  "listed",
	"Under development":                 "listed",
	"Registration requested":            "listed",
	"Registration and verification approval requested":             "listed",
	"Withdrawn":                         "completed",
	"On Hold":                           "registered",
	"Units Transferred from Approved GHG Program":                  "unknown",
	"Rejected by Administrator":         "completed",
	"Crediting Period Renewal Requested": "registered",
	"Inactive":                          "completed",
	"Crediting Period Renewal and Verification Approval Requested": "registered",

	// Gold Standard
	"GOLD_STANDARD_CERTIFIED_PROJECT": "registered",
	"LISTED":                          "listed",
	"GOLD_STANDARD_CERTIFIED_DESIGN":  "registered",
}

// HarmonizeStatusCodes maps raw status values to the shared status
// vocabulary. Unrecognized values become "unknown". Frames without a
// status column pass through unchanged.
func HarmonizeStatusCodes(f *frame.Frame) *frame.Frame {
	if !f.HasColumn("status") {
		return f
	}
	for row := 0; row < f.Len(); row++ {
		v := f.Value("status", row)
		mapped, ok := statusCodes[strings.TrimSpace(v.Str())]
		if !ok {
			mapped = "unknown"
		}
		f.Set("status", row, frame.String(mapped))
	}
	return f
}

// HarmonizeCountryNames rewrites alternate country spellings to their
// canonical short names. Unmapped values pass through unchanged.
func HarmonizeCountryNames(f *frame.Frame) (*frame.Frame, error) {
	if !f.HasColumn("country") {
		return f, nil
	}
	altNames, err := configs.CountryAltNames()
	if err != nil {
		return nil, err
	}
	for row := 0; row < f.Len(); row++ {
		v := f.Value("country", row)
		if v.IsNull() {
			continue
		}
		raw := strings.TrimSpace(v.Str())
		if canonical, ok := altNames[raw]; ok {
			raw = canonical
		}
		f.Set("country", row, frame.String(raw))
	}
	return f, nil
}

// FindProtocol matches a raw methodology string against the known
// protocol strings. Unmatched strings pass through so they stay
// visible downstream until the mapping tables catch up.
func FindProtocol(searchString string, inverted map[string][]string) []string {
	trimmed := strings.TrimSpace(searchString)
	if trimmed == "" {
		return []string{"unknown"}
	}
	if match, ok := inverted[trimmed]; ok {
		return match
	}
	return []string{searchString}
}

// MapProtocol normalizes the original_protocol column into the
// protocol list column. Frames without an original_protocol column get
// a single-element unknown list, as do null cells.
func MapProtocol(f *frame.Frame, inverted map[string][]string) *frame.Frame {
	if !f.HasColumn("original_protocol") {
		f.SetConst("protocol", frame.StringList([]string{"unknown"}))
		return f
	}
	protocols := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		v := f.Value("original_protocol", row)
		if v.IsNull() {
			protocols[row] = frame.StringList([]string{"unknown"})
			continue
		}
		protocols[row] = frame.StringList(FindProtocol(v.Str(), inverted))
	}
	f.SetColumn("protocol", protocols)
	return f
}

// ProtocolCategories returns the deduplicated categories for a list of
// normalized protocol strings. Protocols missing from the vocabulary
// contribute "unknown".
func ProtocolCategories(protocols []string, mapping map[string]configs.ProtocolEntry) []string {
	var categories []string
	for _, p := range protocols {
		entry, ok := mapping[p]
		if !ok || entry.Category == "" {
			categories = append(categories, "unknown")
			continue
		}
		categories = append(categories, entry.Category)
	}
	return frame.SortedUnique(categories)
}

// AddCategoryFromProtocol derives the category list from the protocol
// column using the protocol vocabulary.
func AddCategoryFromProtocol(f *frame.Frame) (*frame.Frame, error) {
	mapping, err := configs.ProtocolMapping()
	if err != nil {
		return nil, err
	}
	categories := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		v := f.Value("protocol", row)
		if v.IsNull() {
			categories[row] = frame.StringList([]string{"unknown"})
			continue
		}
		categories[row] = frame.StringList(ProtocolCategories(v.List(), mapping))
	}
	f.SetColumn("category", categories)
	return f, nil
}

// AddCategoryFromType derives the category list from project_type
// using the type vocabulary. Adapters that carry project types call
// this after type inference so the category follows the type.
func AddCategoryFromType(f *frame.Frame) (*frame.Frame, error) {
	mapping, err := configs.TypeCategoryMapping()
	if err != nil {
		return nil, err
	}
	categories := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		v := f.Value("project_type", row)
		entry, ok := mapping[strings.ToLower(strings.TrimSpace(v.Str()))]
		if v.IsNull() || !ok || entry.Category == "" {
			categories[row] = frame.StringList([]string{"unknown"})
			continue
		}
		categories[row] = frame.StringList([]string{entry.Category})
	}
	f.SetColumn("category", categories)
	return f, nil
}

// typeRules map substrings of raw type and methodology strings to
// normalized project types. First match wins.
var typeRules = []struct {
	substring   string
	projectType string
}{
	{"improved forest", "improved forest management"},
	{"ifm", "improved forest management"},
	{"redd", "redd+"},
	{"vm0007", "redd+"},
	{"afforestation", "afforestation/reforestation"},
	{"reforestation", "afforestation/reforestation"},
	{"avoided conversion", "avoided conversion"},
	{"mangrove", "mangrove restoration"},
	{"wetland", "wetland restoration"},
	{"grassland", "grassland conservation"},
	{"agroforestry", "agroforestry"},
	{"soil", "soil carbon"},
	{"rice", "rice emission reductions"},
	{"livestock", "livestock methane"},
	{"manure", "manure management"},
	{"landfill", "landfill methane"},
	{"mine methane", "mine methane capture"},
	{"coal mine", "mine methane capture"},
	{"ozone", "ozone depleting substances"},
	{"oil and gas wells", "plugging oil & gas wells"},
	{"abandoned wells", "plugging oil & gas wells"},
	{"cookstove", "cookstoves"},
	{"cooking devices", "cookstoves"},
	{"water purification", "water purification"},
	{"safe water", "water purification"},
	{"wastewater", "wastewater treatment"},
	{"biochar", "biochar"},
	{"weathering", "enhanced weathering"},
	{"bio-oil", "bio-oil storage"},
	{"direct air", "direct air capture"},
	{"hydro", "hydropower"},
	{"solar", "renewable energy"},
	{"wind", "renewable energy"},
	{"renewable", "renewable energy"},
	{"bagasse", "renewable energy"},
	{"biogas", "renewable energy"},
	{"methane digester", "renewable energy"},
	{"fuel switch", "fuel switching"},
	{"energy efficiency", "energy efficiency"},
	{"energy industries", "renewable energy"},
}

// InferType maps a raw project type or methodology string to a
// normalized project type, or "unknown" when no rule matches.
func InferType(raw string) string {
	lowered := strings.ToLower(raw)
	for _, rule := range typeRules {
		if strings.Contains(lowered, rule.substring) {
			return rule.projectType
		}
	}
	return "unknown"
}

// InferProjectType derives project_type from the original_type column,
// falling back to original_protocol when the type column is absent or
// empty. Inferred rows carry the "carbonplan" source tag.
func InferProjectType(f *frame.Frame) *frame.Frame {
	types := make([]frame.Value, f.Len())
	sources := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		raw := f.Value("original_type", row)
		if raw.IsNull() || strings.TrimSpace(raw.Str()) == "" {
			raw = f.Value("original_protocol", row)
		}
		inferred := "unknown"
		if !raw.IsNull() {
			inferred = InferType(raw.Str())
		}
		types[row] = frame.String(inferred)
		sources[row] = frame.String("carbonplan")
	}
	f.SetColumn("project_type", types)
	f.SetColumn("project_type_source", sources)
	return f
}

// OverrideProjectTypes replaces inferred project types with curated
// overrides keyed by project id, tagging overridden rows with the
// override source.
func OverrideProjectTypes(f *frame.Frame, overrides map[string]string, source string) *frame.Frame {
	for row := 0; row < f.Len(); row++ {
		id := f.Value("project_id", row).Str()
		if projectType, ok := overrides[id]; ok {
			f.Set("project_type", row, frame.String(projectType))
			f.Set("project_type_source", row, frame.String(source))
		}
	}
	return f
}

// MapProjectTypeToDisplayName rewrites normalized project types to
// their display names. Types missing from the vocabulary pass through.
func MapProjectTypeToDisplayName(f *frame.Frame) (*frame.Frame, error) {
	mapping, err := configs.TypeCategoryMapping()
	if err != nil {
		return nil, err
	}
	for row := 0; row < f.Len(); row++ {
		v := f.Value("project_type", row)
		if v.IsNull() {
			continue
		}
		if entry, ok := mapping[strings.ToLower(strings.TrimSpace(v.Str()))]; ok && entry.DisplayName != "" {
			f.Set("project_type", row, frame.String(entry.DisplayName))
		}
	}
	return f, nil
}

// AddComplianceFlag marks projects whose protocol list contains any
// compliance protocol, identified by the "arb-" prefix.
func AddComplianceFlag(f *frame.Frame) *frame.Frame {
	flags := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		compliance := false
		if v := f.Value("protocol", row); !v.IsNull() {
			for _, p := range v.List() {
				if strings.HasPrefix(p, "arb-") {
					compliance = true
					break
				}
			}
		}
		flags[row] = frame.Bool(compliance)
	}
	f.SetColumn("is_compliance", flags)
	return f
}

// AddRetiredIssuedTotals sums credit quantities per project and pivots
// them into retired and issued columns. Projects without matching
// credits get zero totals. Retirement/cancellation hybrids count as
// retirements.
func AddRetiredIssuedTotals(projects, credits *frame.Frame) *frame.Frame {
	issued := make(map[string]int64)
	retired := make(map[string]int64)
	for row := 0; row < credits.Len(); row++ {
		id := credits.Value("project_id", row).Str()
		q := credits.Value("quantity", row)
		if q.IsNull() {
			continue
		}
		switch txType := credits.Value("transaction_type", row).Str(); {
		case txType == TransactionIssuance:
			issued[id] += q.Int()
		case strings.Contains(txType, TransactionRetirement):
			retired[id] += q.Int()
		}
	}
	issuedCol := make([]frame.Value, projects.Len())
	retiredCol := make([]frame.Value, projects.Len())
	for row := 0; row < projects.Len(); row++ {
		id := projects.Value("project_id", row).Str()
		issuedCol[row] = frame.Int(issued[id])
		retiredCol[row] = frame.Int(retired[id])
	}
	projects.SetColumn("issued", issuedCol)
	projects.SetColumn("retired", retiredCol)
	return projects
}

// AddFirstIssuanceRetirementDates attaches the earliest issuance and
// retirement transaction dates per project. Projects without matching
// credits keep null dates.
func AddFirstIssuanceRetirementDates(projects, credits *frame.Frame) *frame.Frame {
	firstIssuance := make(map[string]frame.Value)
	firstRetirement := make(map[string]frame.Value)
	for row := 0; row < credits.Len(); row++ {
		date := credits.Value("transaction_date", row)
		if date.IsNull() {
			continue
		}
		id := credits.Value("project_id", row).Str()
		txType := credits.Value("transaction_type", row).Str()
		switch {
		case txType == TransactionIssuance:
			if cur, ok := firstIssuance[id]; !ok || date.Time().Before(cur.Time()) {
				firstIssuance[id] = date
			}
		case strings.Contains(txType, TransactionRetirement):
			if cur, ok := firstRetirement[id]; !ok || date.Time().Before(cur.Time()) {
				firstRetirement[id] = date
			}
		}
	}
	issuanceCol := make([]frame.Value, projects.Len())
	retirementCol := make([]frame.Value, projects.Len())
	for row := 0; row < projects.Len(); row++ {
		id := projects.Value("project_id", row).Str()
		issuanceCol[row] = firstIssuance[id]
		retirementCol[row] = firstRetirement[id]
	}
	projects.SetColumn("first_issuance_at", issuanceCol)
	projects.SetColumn("first_retirement_at", retirementCol)
	return projects
}
