// Package registry holds the cross-registry vocabulary: canonical
// registry names, project-id prefixes, and per-registry project page
// URLs.
package registry

import "strings"

// Canonical registry names as they appear in output rows.
const (
	Verra                  = "verra"
	AmericanCarbonRegistry = "american-carbon-registry"
	ClimateActionReserve   = "climate-action-reserve"
	ARTTrees               = "art-trees"
	GoldStandard           = "gold-standard"
	GlobalCarbonCouncil    = "global-carbon-council"
	Cercarbono             = "cercarbono"
	Isometric              = "isometric"
)

// Download types a registry export can carry.
const (
	DownloadIssuances     = "issuances"
	DownloadRetirements   = "retirements"
	DownloadCancellations = "cancellations"
	DownloadTransactions  = "transactions"
	DownloadProjects      = "projects"
)

var prefixes = map[string]string{
	"vcs": Verra,
	"acr": AmericanCarbonRegistry,
	"car": ClimateActionReserve,
	"art": ARTTrees,
	"gcc": GlobalCarbonCouncil,
	"gld": GoldStandard,
	"cdc": Cercarbono,
	"iso": Isometric,
}

// FromProjectID resolves the registry that owns a prefixed project id.
// Gold Standard is the only registry with a two-character prefix, so it
// is checked first. Unknown prefixes return "".
func FromProjectID(projectID string) string {
	lowered := strings.ToLower(projectID)
	if strings.HasPrefix(lowered, "gs") {
		return GoldStandard
	}
	if len(lowered) < 3 {
		return ""
	}
	return prefixes[lowered[:3]]
}

// ProjectURL builds the public project page URL for a prefixed project
// id. GCC and Isometric pages are keyed by registry-internal ids, so
// their adapters build URLs from the raw export instead; they and any
// unknown registry return "".
func ProjectURL(registryName, projectID string) string {
	suffix := projectID
	if len(projectID) > 3 {
		suffix = projectID[3:]
	}
	switch registryName {
	case AmericanCarbonRegistry:
		return "https://acr2.apx.com/mymodule/reg/prjView.asp?id1=" + suffix
	case ClimateActionReserve:
		return "https://thereserve2.apx.com/mymodule/reg/prjView.asp?id1=" + suffix
	case ARTTrees:
		return "https://art.apx.com/mymodule/reg/prjView.asp?id1=" + suffix
	case Verra:
		return "https://registry.verra.org/app/projectDetail/VCS/" + suffix
	case GoldStandard:
		return "https://registry.goldstandard.org/projects/details/" + strings.TrimPrefix(projectID, "GS")
	case Cercarbono:
		return "https://www.ecoregistry.io/projects/" + projectID
	default:
		return ""
	}
}
