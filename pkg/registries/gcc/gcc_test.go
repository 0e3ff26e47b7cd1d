package gcc

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

const projectAnchor = `<a href="https://legacy.globalcarboncouncil.com/project/112" target="_blank">Example Solar Plant</a>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func rawProjectsFixture() *frame.Frame {
	f := frame.New()
	f.AppendRow(map[string]frame.Value{
		"project_submission_number": frame.String("S00112"),
		"project_url":               frame.String(projectAnchor),
		"project_owner":             frame.String("Example Owner"),
		"methodology":               frame.String("ACM0002"),
		"project_status":            frame.String("REGISTERED"),
		"project_country":           frame.String("Qatar"),
		"submission_date":           frame.String("2021-05-10"),
	})
	return f
}

func TestProjectNameAndPageURL(t *testing.T) {
	require.Equal(t, "Example Solar Plant", projectName(projectAnchor))
	require.Equal(t, "https://projects.globalcarboncouncil.com/project/112", projectPageURL(projectAnchor))
}

func TestSwapPrefix(t *testing.T) {
	require.Equal(t, "GCC00112", swapPrefix("S00112"))
}

func TestProcessCreditsIssuancesJoinProjectIDs(t *testing.T) {
	rawProjects := rawProjectsFixture()
	name := projectName(rawProjects.Value("project_url", 0).Str())

	raw := frame.New()
	raw.AppendRow(map[string]frame.Value{
		"project_name":        frame.String(name),
		"quantity_of_credits": frame.String("25,000"),
		"vintage":             frame.String("2019 - 2020"),
	})

	got, err := ProcessCredits(testLogger(), raw, rawProjects, registry.DownloadIssuances, nil)
	require.NoError(t, err)

	require.Equal(t, 1, got.Len())
	require.Equal(t, "GCC00112", got.Value("project_id", 0).Str())
	require.Equal(t, int64(2020), got.Value("vintage", 0).Int(), "range vintages keep the trailing year")
	require.Equal(t, int64(25000), got.Value("quantity", 0).Int())
	require.True(t, got.Value("transaction_date", 0).IsNull(), "issuance exports carry no dates")
	require.Equal(t, transform.TransactionIssuance, got.Value("transaction_type", 0).Str())
}

func TestProcessCreditsRetirementTimestamps(t *testing.T) {
	rawProjects := rawProjectsFixture()
	name := projectName(rawProjects.Value("project_url", 0).Str())

	raw := frame.New()
	raw.AppendRow(map[string]frame.Value{
		"project_name":        frame.String(name),
		"quantity_of_credits": frame.String("300"),
		"vintage":             frame.String("2020"),
		"retirement_date":     frame.String("1651363200000"),
		"retiree":             frame.String("Example Airline"),
	})

	got, err := ProcessCredits(testLogger(), raw, rawProjects, registry.DownloadRetirements, nil)
	require.NoError(t, err)

	require.Equal(t, 1, got.Len())
	require.Equal(t, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), got.Value("transaction_date", 0).Time(),
		"retirement dates are millisecond unix timestamps")
	require.Equal(t, "Example Airline", got.Value("retirement_beneficiary", 0).Str())
}

func TestProcessCreditsUnmatchedNameFailsValidation(t *testing.T) {
	raw := frame.New()
	raw.AppendRow(map[string]frame.Value{
		"project_name":        frame.String("Name Missing From Projects"),
		"quantity_of_credits": frame.String("300"),
		"vintage":             frame.String("2020"),
	})

	_, err := ProcessCredits(testLogger(), raw, frame.New(), registry.DownloadIssuances, nil)
	var violation *frame.SchemaValidationError
	require.ErrorAs(t, err, &violation)
}

func TestProcessCreditsEmptyInput(t *testing.T) {
	got, err := ProcessCredits(testLogger(), frame.New(), frame.New(), registry.DownloadIssuances, nil)
	require.NoError(t, err)
	require.Equal(t, 0, got.Len())
}

func TestProcessProjects(t *testing.T) {
	credits := frame.New()
	credits.AppendRow(map[string]frame.Value{
		"project_id":       frame.String("GCC00112"),
		"transaction_type": frame.String(transform.TransactionIssuance),
		"quantity":         frame.Int(25000),
		"transaction_date": frame.Null(),
	})

	got, err := ProcessProjects(testLogger(), rawProjectsFixture(), credits)
	require.NoError(t, err)

	require.Equal(t, 1, got.Len())
	require.Equal(t, "GCC00112", got.Value("project_id", 0).Str())
	require.Equal(t, "https://projects.globalcarboncouncil.com/project/112", got.Value("project_url", 0).Str())
	require.Equal(t, "registered", got.Value("status", 0).Str())
	require.Equal(t, []string{"acm0002"}, got.Value("protocol", 0).List())
	require.Equal(t, []string{"renewable-energy"}, got.Value("category", 0).List())
	require.Equal(t, int64(25000), got.Value("issued", 0).Int())
	require.Equal(t, registry.GlobalCarbonCouncil, got.Value("registry", 0).Str())
}
