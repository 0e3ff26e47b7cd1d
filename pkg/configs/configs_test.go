package configs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreditColumnMapping(t *testing.T) {
	mapping, err := CreditColumnMapping("american-carbon-registry", "issuances")
	require.NoError(t, err)
	require.Equal(t, "Project ID", mapping["project_id"])
	require.Equal(t, "Total Credits Issued", mapping["quantity"])

	_, err = CreditColumnMapping("american-carbon-registry", "bogus")
	require.Error(t, err)

	_, err = CreditColumnMapping("bogus", "issuances")
	require.Error(t, err)
}

func TestProjectColumnMapping(t *testing.T) {
	mapping, err := ProjectColumnMapping("verra")
	require.NoError(t, err)
	require.Equal(t, "ID", mapping["project_id"])
	require.Equal(t, "Country/Area", mapping["country"])
	require.Equal(t, "Project Registration Date", mapping["listed_at"])

	_, err = ProjectColumnMapping("bogus")
	require.Error(t, err)
}

func TestInvertedProtocolMapping(t *testing.T) {
	inverted, err := InvertedProtocolMapping()
	require.NoError(t, err)
	require.Equal(t, []string{"ams-i.d"}, inverted["AMS-I.D."])
	require.Equal(t, []string{"ar-acm0003"}, inverted["AR-ACM0003"])
	require.Equal(t, []string{"arb-mine-methane"}, inverted["mine methane capture"])
}

func TestProtocolMappingCategories(t *testing.T) {
	mapping, err := ProtocolMapping()
	require.NoError(t, err)
	for name, entry := range mapping {
		require.NotEmpty(t, entry.Category, "protocol %q has no category", name)
		require.NotEmpty(t, entry.KnownNames, "protocol %q has no known names", name)
	}
	require.Equal(t, "forest", mapping["vm0007"].Category)
}

func TestTypeCategoryMapping(t *testing.T) {
	mapping, err := TypeCategoryMapping()
	require.NoError(t, err)
	require.Equal(t, "forest", mapping["redd+"].Category)
	require.Equal(t, "REDD+", mapping["redd+"].DisplayName)
	require.Contains(t, mapping, "unknown")
}

func TestBerkeleyProjectTypes(t *testing.T) {
	overrides, err := BerkeleyProjectTypes()
	require.NoError(t, err)
	require.NotEmpty(t, overrides)
	require.Equal(t, "afforestation/reforestation", overrides["VCS2498"])
}

func TestBeneficiaryColumns(t *testing.T) {
	cols, err := BeneficiaryColumns("verra", "transactions")
	require.NoError(t, err)
	require.Equal(t, []string{"retirement_beneficiary", "retirement_reason", "retirement_note"}, cols)

	cols, err = BeneficiaryColumns("global-carbon-council", "retirements")
	require.NoError(t, err)
	require.Nil(t, cols)
}

func TestCountryAltNames(t *testing.T) {
	names, err := CountryAltNames()
	require.NoError(t, err)
	require.Equal(t, "Vietnam", names["Viet Nam"])
	require.Equal(t, "South Korea", names["Republic of Korea"])
}
