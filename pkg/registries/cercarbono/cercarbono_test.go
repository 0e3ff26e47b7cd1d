package cercarbono

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

func TestSerialVintage(t *testing.T) {
	year, err := serialVintage("2019-01-01 / 2020-12-31")
	require.NoError(t, err)
	require.Equal(t, int64(2020), year, "vintage comes from the trailing period date")

	year, err = serialVintage("2018-06-01")
	require.NoError(t, err)
	require.Equal(t, int64(2018), year)

	_, err = serialVintage("bad")
	require.Error(t, err)
}

func TestProcessCreditsExplodesSerials(t *testing.T) {
	rawProjects := frame.New()
	rawProjects.AppendRow(map[string]frame.Value{
		"code": frame.String("CDC1001"),
		"name": frame.String("Example REDD Project"),
		"serials": frame.String(`[
			{"issued_quantity": 5000, "issuance_date": "2021-06-01", "vintage_of_credits": "2019-01-01 / 2020-12-31"},
			{"issued_quantity": 1200, "issuance_date": "2022-02-15", "vintage_of_credits": "2021-01-01 / 2021-12-31"}
		]`),
	})

	rawRetirements := frame.New()
	rawRetirements.AppendRow(map[string]frame.Value{
		"project_id": frame.String("1001"),
		"quantity":   frame.String("300"),
		"vintage":    frame.String("2020"),
		"date":       frame.String("2022-08-01"),
	})

	got, err := ProcessCredits(testLogger(), rawProjects, rawRetirements)
	require.NoError(t, err)

	require.Equal(t, 3, got.Len())
	byType := map[string][]map[string]frame.Value{}
	for row := 0; row < got.Len(); row++ {
		txType := got.Value("transaction_type", row).Str()
		byType[txType] = append(byType[txType], got.Row(row))
	}

	issuances := byType[transform.TransactionIssuance]
	require.Len(t, issuances, 2)
	require.Equal(t, "CDC1001", issuances[0]["project_id"].Str())
	require.Equal(t, int64(5000), issuances[0]["quantity"].Int())
	require.Equal(t, int64(2020), issuances[0]["vintage"].Int())
	require.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), issuances[0]["transaction_date"].Time())

	retirements := byType[transform.TransactionRetirement]
	require.Len(t, retirements, 1)
	require.Equal(t, "CDC-1001", retirements[0]["project_id"].Str())
	require.Equal(t, registry.Cercarbono, retirements[0]["registry"].Str())
}

func TestProcessCreditsBadSerials(t *testing.T) {
	rawProjects := frame.New()
	rawProjects.AppendRow(map[string]frame.Value{
		"code":    frame.String("CDC1001"),
		"serials": frame.String("not json"),
	})

	_, err := ProcessCredits(testLogger(), rawProjects, frame.New())
	require.Error(t, err)
	require.Contains(t, err.Error(), "CDC1001")
}

func TestProcessCreditsEmptyInput(t *testing.T) {
	got, err := ProcessCredits(testLogger(), frame.New(), frame.New())
	require.NoError(t, err)
	require.Equal(t, 0, got.Len())
	require.True(t, got.HasColumn("registry"))
}

func TestProcessProjects(t *testing.T) {
	raw := frame.New()
	raw.AppendRow(map[string]frame.Value{
		"code":          frame.String("CDC1001"),
		"name":          frame.String("Example REDD Project"),
		"holder":        frame.String("Example Holder"),
		"methodology":   frame.String("Some EcoRegistry Methodology"),
		"activity":      frame.String("REDD Forestry"),
		"status":        frame.String("Registered"),
		"creation_date": frame.String("2020-03-10"),
		"locations":     frame.String(`[{"country": "Colombia"}, {"country": "Peru"}]`),
	})

	got, err := ProcessProjects(testLogger(), raw)
	require.NoError(t, err)

	require.Equal(t, 1, got.Len())
	require.Equal(t, "CDC1001", got.Value("project_id", 0).Str())
	require.Equal(t, "https://www.ecoregistry.io/projects/CDC1001", got.Value("project_url", 0).Str())
	require.Equal(t, "Colombia", got.Value("country", 0).Str(), "country comes from the first location")
	require.Equal(t, "registered", got.Value("status", 0).Str())
	require.Equal(t, "REDD+", got.Value("project_type", 0).Str())
	require.Equal(t, "carbonplan", got.Value("project_type_source", 0).Str())
	require.Equal(t, []string{"forest"}, got.Value("category", 0).List())
	require.Equal(t, time.Date(2020, 3, 10, 0, 0, 0, 0, time.UTC), got.Value("listed_at", 0).Time())
}

func TestProcessProjectsEmptyInput(t *testing.T) {
	got, err := ProcessProjects(testLogger(), frame.New())
	require.NoError(t, err)
	require.Equal(t, 0, got.Len())
}
