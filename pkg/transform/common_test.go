package transform

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

func TestRenameColumns(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{
		"Project ID":           frame.String("ACR123"),
		"Total Credits Issued": frame.String("1,000"),
	})

	RenameColumns(f, map[string]string{
		"project_id": "Project ID",
		"quantity":   "Total Credits Issued",
		"vintage":    "Vintage",
	})

	require.True(t, f.HasColumn("project_id"))
	require.True(t, f.HasColumn("quantity"))
	require.False(t, f.HasColumn("Project ID"))
	require.Equal(t, "ACR123", f.Value("project_id", 0).Str())
}

func TestConvertToDatetimeMissingColumn(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{"project_id": frame.String("VCS1")})

	_, err := ConvertToDatetime(f, []string{"transaction_date"})
	var missing *frame.MissingColumnError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "transaction_date", missing.Column)
}

func TestConvertToDatetimeDayFirst(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{"transaction_date": frame.String("26/12/2022")})
	f.AppendRow(map[string]frame.Value{"transaction_date": frame.Null()})

	_, err := ConvertToDatetime(f, []string{"transaction_date"}, WithDayFirst())
	require.NoError(t, err)

	got := f.Value("transaction_date", 0)
	require.Equal(t, frame.TypeTime, got.Type())
	require.Equal(t, time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC), got.Time())
	require.True(t, f.Value("transaction_date", 1).IsNull())
}

func TestConvertToDatetimeExactLayout(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{"listed_at": frame.String("2009-06-15")})

	_, err := ConvertToDatetime(f, []string{"listed_at"}, WithLayout("2006-01-02"))
	require.NoError(t, err)
	require.Equal(t, 2009, f.Value("listed_at", 0).Time().Year())
}

func TestCleanNumericColumns(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{"quantity": frame.String("99,870")})
	f.AppendRow(map[string]frame.Value{"quantity": frame.String("not a number")})
	f.AppendRow(map[string]frame.Value{"quantity": frame.String("")})

	CleanNumericColumns(f, "quantity", "absent")

	require.Equal(t, int64(99870), f.Value("quantity", 0).Int())
	require.True(t, f.Value("quantity", 1).IsNull())
	require.True(t, f.Value("quantity", 2).IsNull())
}

func TestConvertVintageToYear(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{"vintage": frame.String("2019 - 2021")})
	f.AppendRow(map[string]frame.Value{"vintage": frame.String("2018")})
	f.AppendRow(map[string]frame.Value{"vintage": frame.Time(time.Date(2020, 11, 19, 0, 0, 0, 0, time.UTC))})

	_, err := ConvertVintageToYear(f, "vintage")
	require.NoError(t, err)
	require.Equal(t, int64(2021), f.Value("vintage", 0).Int())
	require.Equal(t, int64(2018), f.Value("vintage", 1).Int())
	require.Equal(t, int64(2020), f.Value("vintage", 2).Int())
}

func creditRow(projectID string, vintage int64, txType string, quantity int64, date time.Time) map[string]frame.Value {
	dateValue := frame.Null()
	if !date.IsZero() {
		dateValue = frame.Time(date)
	}
	return map[string]frame.Value{
		"project_id":       frame.String(projectID),
		"vintage":          frame.Int(vintage),
		"transaction_type": frame.String(txType),
		"quantity":         frame.Int(quantity),
		"transaction_date": dateValue,
		"registry":         frame.String("verra"),
	}
}

func TestAggregateIssuances(t *testing.T) {
	day := time.Date(2022, 3, 8, 0, 0, 0, 0, time.UTC)
	f := frame.New()
	f.AppendRow(creditRow("VCS1", 2020, TransactionIssuance, 10, day))
	f.AppendRow(creditRow("VCS1", 2020, TransactionIssuance, 5, day))
	f.AppendRow(creditRow("VCS1", 2020, TransactionRetirement, 3, day))
	f.AppendRow(creditRow("VCS2", 2019, TransactionIssuance, -7, day))

	agg, err := AggregateIssuances(f)
	require.NoError(t, err)

	require.Equal(t, 1, agg.Len())
	require.Equal(t, "VCS1", agg.Value("project_id", 0).Str())
	require.Equal(t, int64(15), agg.Value("quantity", 0).Int())
	require.Equal(t, TransactionIssuance, agg.Value("transaction_type", 0).Str())
}

func TestAggregateIssuancesMissingTransactionType(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{"project_id": frame.String("VCS1")})

	_, err := AggregateIssuances(f)
	var missing *frame.MissingColumnError
	require.True(t, errors.As(err, &missing))
}

func TestMergeWithARB(t *testing.T) {
	day := time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC)
	credits := frame.New()
	credits.AppendRow(creditRow("CAR1", 2015, TransactionIssuance, 100, day))
	credits.AppendRow(creditRow("VCS9", 2015, TransactionIssuance, 50, day))

	arb := frame.New()
	arb.AppendRow(creditRow("CAR1", 2015, TransactionIssuance, 120, day))
	arb.AppendRow(creditRow("ACR7", 2015, TransactionIssuance, 30, day))

	merged := MergeWithARB(credits, arb)

	var car1Quantity int64
	ids := UniqueProjectIDs(merged)
	for row := 0; row < merged.Len(); row++ {
		if merged.Value("project_id", row).Str() == "CAR1" {
			car1Quantity = merged.Value("quantity", row).Int()
		}
	}
	require.Equal(t, []string{"CAR1", "VCS9"}, ids)
	require.Equal(t, int64(120), car1Quantity, "registry row should be replaced by the ARB row")
}

func TestMergeWithARBNoOverlap(t *testing.T) {
	credits := frame.New()
	credits.AppendRow(creditRow("GS77", 2018, TransactionIssuance, 9, time.Time{}))

	arb := frame.New()
	arb.AppendRow(creditRow("ACR7", 2015, TransactionIssuance, 30, time.Time{}))

	merged := MergeWithARB(credits, arb)
	require.Equal(t, 1, merged.Len())
	require.Equal(t, "GS77", merged.Value("project_id", 0).Str())
}
