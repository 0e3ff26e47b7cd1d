// Package configs carries the embedded mapping tables that drive
// normalization: raw column mappings per registry, the protocol
// vocabulary, project type metadata, and beneficiary column lists.
package configs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed credits-raw-columns-mapping.json
var creditsRawColumnsJSON []byte

//go:embed projects-raw-columns-mapping.json
var projectsRawColumnsJSON []byte

//go:embed all-protocol-mapping.json
var protocolMappingJSON []byte

//go:embed type-category-mapping.json
var typeCategoryJSON []byte

//go:embed berkeley-project-types.json
var berkeleyProjectTypesJSON []byte

//go:embed beneficiary-mappings.json
var beneficiaryMappingsJSON []byte

//go:embed country-alt-names.json
var countryAltNamesJSON []byte

// ProtocolEntry describes one normalized protocol: the category it
// belongs to and the raw registry strings known to refer to it.
type ProtocolEntry struct {
	Category   string   `json:"category"`
	KnownNames []string `json:"known-names"`
}

// TypeEntry carries the category and display name for a normalized
// project type.
type TypeEntry struct {
	Category    string `json:"category"`
	DisplayName string `json:"display-name"`
}

var loadCreditColumns = sync.OnceValues(func() (map[string]map[string]map[string]string, error) {
	var m map[string]map[string]map[string]string
	if err := json.Unmarshal(creditsRawColumnsJSON, &m); err != nil {
		return nil, fmt.Errorf("parse credits column mapping: %w", err)
	}
	return m, nil
})

// CreditColumnMapping returns the canonical-to-raw column mapping for a
// registry's credit export of the given download type.
func CreditColumnMapping(registryName, downloadType string) (map[string]string, error) {
	all, err := loadCreditColumns()
	if err != nil {
		return nil, err
	}
	byType, ok := all[registryName]
	if !ok {
		return nil, fmt.Errorf("no credit column mapping for registry %q", registryName)
	}
	mapping, ok := byType[downloadType]
	if !ok {
		return nil, fmt.Errorf("no credit column mapping for registry %q download type %q", registryName, downloadType)
	}
	return mapping, nil
}

var loadProjectColumns = sync.OnceValues(func() (map[string]map[string]string, error) {
	var m map[string]map[string]string
	if err := json.Unmarshal(projectsRawColumnsJSON, &m); err != nil {
		return nil, fmt.Errorf("parse projects column mapping: %w", err)
	}
	return m, nil
})

// ProjectColumnMapping returns the canonical-to-raw column mapping for
// a registry's project export.
func ProjectColumnMapping(registryName string) (map[string]string, error) {
	all, err := loadProjectColumns()
	if err != nil {
		return nil, err
	}
	mapping, ok := all[registryName]
	if !ok {
		return nil, fmt.Errorf("no project column mapping for registry %q", registryName)
	}
	return mapping, nil
}

var loadProtocolMapping = sync.OnceValues(func() (map[string]ProtocolEntry, error) {
	var m map[string]ProtocolEntry
	if err := json.Unmarshal(protocolMappingJSON, &m); err != nil {
		return nil, fmt.Errorf("parse protocol mapping: %w", err)
	}
	return m, nil
})

// ProtocolMapping returns the full protocol vocabulary keyed by
// normalized protocol name.
func ProtocolMapping() (map[string]ProtocolEntry, error) {
	return loadProtocolMapping()
}

// InvertedProtocolMapping indexes the protocol vocabulary by known raw
// string. Known names are trimmed before indexing so lookups can use
// trimmed search strings.
func InvertedProtocolMapping() (map[string][]string, error) {
	mapping, err := loadProtocolMapping()
	if err != nil {
		return nil, err
	}
	inverted := make(map[string][]string)
	for name, entry := range mapping {
		for _, known := range entry.KnownNames {
			inverted[strings.TrimSpace(known)] = []string{name}
		}
	}
	return inverted, nil
}

var loadTypeCategory = sync.OnceValues(func() (map[string]TypeEntry, error) {
	var m map[string]TypeEntry
	if err := json.Unmarshal(typeCategoryJSON, &m); err != nil {
		return nil, fmt.Errorf("parse type category mapping: %w", err)
	}
	return m, nil
})

// TypeCategoryMapping returns category and display metadata keyed by
// normalized project type.
func TypeCategoryMapping() (map[string]TypeEntry, error) {
	return loadTypeCategory()
}

var loadBerkeleyTypes = sync.OnceValues(func() (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal(berkeleyProjectTypesJSON, &m); err != nil {
		return nil, fmt.Errorf("parse project type overrides: %w", err)
	}
	return m, nil
})

// BerkeleyProjectTypes returns the curated project type overrides keyed
// by project id.
func BerkeleyProjectTypes() (map[string]string, error) {
	return loadBerkeleyTypes()
}

var loadBeneficiaryMappings = sync.OnceValues(func() (map[string]map[string][]string, error) {
	var m map[string]map[string][]string
	if err := json.Unmarshal(beneficiaryMappingsJSON, &m); err != nil {
		return nil, fmt.Errorf("parse beneficiary mappings: %w", err)
	}
	return m, nil
})

// BeneficiaryColumns returns the ordered list of columns whose values
// feed beneficiary harmonization for a registry download. Registries
// without beneficiary data return nil.
func BeneficiaryColumns(registryName, downloadType string) ([]string, error) {
	all, err := loadBeneficiaryMappings()
	if err != nil {
		return nil, err
	}
	return all[registryName][downloadType], nil
}

var loadCountryAltNames = sync.OnceValues(func() (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal(countryAltNamesJSON, &m); err != nil {
		return nil, fmt.Errorf("parse country alt names: %w", err)
	}
	return m, nil
})

// CountryAltNames returns alternate country spellings keyed to their
// canonical short names.
func CountryAltNames() (map[string]string, error) {
	return loadCountryAltNames()
}
