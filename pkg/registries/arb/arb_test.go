package arb

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func wideRow(oprID, vintage, issuance, issuedAt, vcm, firstCA string) map[string]frame.Value {
	cell := func(s string) frame.Value {
		if s == "" {
			return frame.Null()
		}
		return frame.String(s)
	}
	return map[string]frame.Value{
		"OPR Project ID":                     cell(oprID),
		"Vintage":                            cell(vintage),
		"ARB Offset Credits Issued":          cell(issuance),
		"Issuance Date":                      cell(issuedAt),
		"Project Type":                       frame.String("Livestock"),
		"Retired Voluntarily":                cell(vcm),
		"Retired 1st Compliance Period (CA)": cell(firstCA),
		"Retired 2nd Compliance Period (CA)": frame.Null(),
		"Retired 3rd Compliance Period (CA)": frame.Null(),
		"Retired 4th Compliance Period (CA)": frame.Null(),
		"Retired for Compliance in Quebec":   frame.Null(),
	}
}

func rowsByType(t *testing.T, f *frame.Frame, txType string) []map[string]frame.Value {
	t.Helper()
	var out []map[string]frame.Value
	for row := 0; row < f.Len(); row++ {
		if f.Value("transaction_type", row).Str() == txType {
			out = append(out, f.Row(row))
		}
	}
	return out
}

func TestProcessMeltsWideTable(t *testing.T) {
	raw := frame.New()
	raw.AppendRow(wideRow("CAR973", "2013", "10,000", "11/20/2014", "250", "1,500"))
	raw.AppendRow(wideRow("ACR202", "2014", "5000", "03/05/2015", "", ""))

	got, err := Process(testLogger(), raw)
	require.NoError(t, err)

	issuances := rowsByType(t, got, transform.TransactionIssuance)
	require.Len(t, issuances, 2)
	retirements := rowsByType(t, got, transform.TransactionRetirement)
	require.Len(t, retirements, 2, "zero-quantity retirement cells should be dropped")

	byProject := map[string]map[string]frame.Value{}
	for _, row := range issuances {
		byProject[row["project_id"].Str()] = row
	}
	require.Equal(t, int64(10000), byProject["CAR973"]["quantity"].Int())
	require.Equal(t, registry.ClimateActionReserve, byProject["CAR973"]["registry"].Str())
	require.Equal(t, time.Date(2014, 11, 20, 0, 0, 0, 0, time.UTC), byProject["CAR973"]["transaction_date"].Time())
	require.Equal(t, registry.AmericanCarbonRegistry, byProject["ACR202"]["registry"].Str())
}

func TestProcessCompliancePeriodDates(t *testing.T) {
	raw := frame.New()
	raw.AppendRow(wideRow("CAR973", "2013", "10000", "11/20/2014", "250", "1500"))

	got, err := Process(testLogger(), raw)
	require.NoError(t, err)

	for _, row := range rowsByType(t, got, transform.TransactionRetirement) {
		switch row["quantity"].Int() {
		case 250:
			require.True(t, row["transaction_date"].IsNull(), "voluntary retirements carry no date")
		case 1500:
			require.Equal(t, time.Date(2016, 3, 21, 0, 0, 0, 0, time.UTC), row["transaction_date"].Time())
		default:
			t.Fatalf("unexpected retirement quantity %d", row["quantity"].Int())
		}
	}
}

func TestProcessInterpolatesVintages(t *testing.T) {
	raw := frame.New()
	raw.AppendRow(wideRow("CAR1", "2012", "1", "01/15/2013", "", ""))
	raw.AppendRow(wideRow("CAR2", "", "2", "06/15/2013", "", ""))
	raw.AppendRow(wideRow("CAR3", "2014", "3", "01/15/2015", "", ""))
	raw.AppendRow(wideRow("CAR4", "", "4", "06/15/2015", "", ""))

	got, err := Process(testLogger(), raw)
	require.NoError(t, err)

	vintages := map[string]int64{}
	for _, row := range rowsByType(t, got, transform.TransactionIssuance) {
		vintages[row["project_id"].Str()] = row["vintage"].Int()
	}
	require.Equal(t, int64(2013), vintages["CAR2"], "gap between known vintages interpolates")
	require.Equal(t, int64(2014), vintages["CAR4"], "trailing gap repeats the last known vintage")
}

func TestProcessPrefixesBareProjectIDs(t *testing.T) {
	raw := frame.New()
	raw.AppendRow(wideRow("973", "2013", "100", "11/20/2014", "", ""))

	got, err := Process(testLogger(), raw)
	require.NoError(t, err)

	row := rowsByType(t, got, transform.TransactionIssuance)[0]
	require.Equal(t, "VCS973", row["project_id"].Str())
	require.Equal(t, registry.Verra, row["registry"].Str())
}

func TestProcessEmptyInput(t *testing.T) {
	got, err := Process(testLogger(), frame.New())
	require.NoError(t, err)
	require.Equal(t, 0, got.Len())
	require.True(t, got.HasColumn("transaction_type"))
}

func TestInterpolateVintagesLeadingNullsStayNull(t *testing.T) {
	values := []frame.Value{frame.Null(), frame.Int(2015), frame.Null(), frame.Null(), frame.Int(2018)}
	got := interpolateVintages(values)

	require.True(t, got[0].IsNull())
	require.Equal(t, int64(2016), got[2].Int())
	require.Equal(t, int64(2017), got[3].Int())
}
