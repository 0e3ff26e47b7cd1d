// Package verra normalizes Verra (VCS) registry exports. Verra ships a
// single transactions export with no transaction type column and with
// rolling partial issuances, so issuances have to be reconstructed from
// the running vintage totals.
package verra

import (
	"log/slog"
	"strings"

	"github.com/offsetsdb/offsetsdb/pkg/configs"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

const (
	retirementDateColumn = "Retirement/Cancellation Date"
	issuanceDateColumn   = "Issuance Date"
	vintageEndColumn     = "Vintage End"
	totalVintageColumn   = "Total Vintage Quantity"
	quantityIssuedColumn = "Quantity Issued"
)

// ProcessCredits normalizes the Verra transactions export. Rows with a
// retirement/cancellation date are retirements (the export does not
// distinguish cancellations); the rest are issuance snapshots that get
// deduplicated into one issuance per vintage total.
func ProcessCredits(log *slog.Logger, raw *frame.Frame, arb *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Credits.Validate(frame.Credits.Conform(frame.New()))
	}

	f := raw.Copy()
	f = transform.SetRegistry(f, registry.Verra)

	ids := make([]frame.Value, f.Len())
	txTypes := make([]frame.Value, f.Len())
	txDates := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		ids[row] = frame.String("VCS" + f.Value("ID", row).Str())
		retirementDate := f.Value(retirementDateColumn, row)
		if retirementDate.IsNull() || retirementDate.Str() == "" {
			txTypes[row] = frame.String(transform.TransactionIssuance)
			txDates[row] = f.Value(issuanceDateColumn, row)
		} else {
			txTypes[row] = frame.String(transform.TransactionRetirement)
			txDates[row] = retirementDate
		}
	}
	f.SetColumn("project_id", ids)
	f.SetColumn("transaction_type", txTypes)
	f.SetColumn("transaction_date", txDates)

	f = transform.CleanNumericColumns(f, totalVintageColumn, quantityIssuedColumn)

	var err error
	if f, err = transform.ConvertToDatetime(f, []string{vintageEndColumn}, transform.WithDayFirst()); err != nil {
		return nil, err
	}
	f.Rename(map[string]string{vintageEndColumn: "vintage"})
	if f, err = transform.ConvertVintageToYear(f, "vintage"); err != nil {
		return nil, err
	}
	if f, err = transform.ConvertToDatetime(f, []string{"transaction_date"}, transform.WithDayFirst()); err != nil {
		return nil, err
	}

	issuances := calculateIssuances(f)
	retirements := calculateRetirements(f)

	mapping, err := configs.CreditColumnMapping(registry.Verra, registry.DownloadTransactions)
	if err != nil {
		return nil, err
	}
	merged := transform.RenameColumns(frame.Concat(issuances, retirements), mapping)

	aggregated, err := transform.AggregateIssuances(merged)
	if err != nil {
		return nil, err
	}
	kept := merged.Filter(func(row int) bool {
		return strings.Contains(merged.Value("transaction_type", row).Str(), transform.TransactionRetirement)
	})

	out := frame.Credits.Conform(frame.Concat(aggregated, kept))
	if out, err = frame.Credits.Validate(out); err != nil {
		return nil, err
	}
	if arb != nil && arb.Len() > 0 {
		out = transform.MergeWithARB(out, arb)
	}
	log.Debug("processed credits", "registry", registry.Verra, "rows", out.Len())
	return frame.Credits.Validate(frame.Credits.Conform(out))
}

// calculateIssuances reconstructs issuance events from the rolling
// vintage totals: the earliest transaction per (vintage, project, total
// vintage quantity) marks the issuance of that total.
func calculateIssuances(f *frame.Frame) *frame.Frame {
	sorted := f.SortBy("transaction_date")
	seen := make(map[string]bool)
	deduped := sorted.Filter(func(row int) bool {
		key := sorted.Value("vintage", row).Format() + "\x00" +
			sorted.Value("project_id", row).Format() + "\x00" +
			sorted.Value(totalVintageColumn, row).Format()
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
	deduped.Drop(quantityIssuedColumn)
	deduped.Rename(map[string]string{totalVintageColumn: "quantity"})
	deduped.SetConst("transaction_type", frame.String(transform.TransactionIssuance))
	return deduped
}

func calculateRetirements(f *frame.Frame) *frame.Frame {
	retirements := f.Filter(func(row int) bool {
		return f.Value("transaction_type", row).Str() != transform.TransactionIssuance
	})
	retirements.Drop(totalVintageColumn)
	retirements.Rename(map[string]string{quantityIssuedColumn: "quantity"})
	return retirements
}

// compliancePortalProjects are two projects that exist only on Verra's
// mostly unused compliance registry portal and never appear in exports.
func compliancePortalProjects() []map[string]frame.Value {
	return []map[string]frame.Value{
		{
			"project_id":    frame.String("VCSOPR2"),
			"name":          frame.String("Corinth Abandoned Mine Methane Recovery Project"),
			"protocol":      frame.StringList([]string{"arb-mine-methane"}),
			"category":      frame.StringList([]string{"ghg-management"}),
			"proponent":     frame.String("Keyrock Energy LLC"),
			"country":       frame.String("United States"),
			"status":        frame.String("registered"),
			"is_compliance": frame.Bool(true),
			"registry":      frame.String(registry.Verra),
			"project_url":   frame.String("https://registry.verra.org/app/projectDetail/VCS/2265"),
		},
		{
			"project_id":    frame.String("VCSOPR10"),
			"name":          frame.String("Blue Source-Alford Improved Forest Management Project"),
			"protocol":      frame.StringList([]string{"arb-forest"}),
			"category":      frame.StringList([]string{"forest"}),
			"proponent":     frame.String("Ozark Regional Land Trust"),
			"country":       frame.String("United States"),
			"status":        frame.String("registered"),
			"is_compliance": frame.Bool(true),
			"registry":      frame.String(registry.Verra),
			"project_url":   frame.String("https://registry.verra.org/app/projectDetail/VCS/2271"),
		},
	}
}

// ProcessProjects normalizes the Verra projects export and appends the
// two compliance-portal projects.
func ProcessProjects(log *slog.Logger, raw, credits *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Projects.Validate(frame.Projects.Conform(frame.New()))
	}

	mapping, err := configs.ProjectColumnMapping(registry.Verra)
	if err != nil {
		return nil, err
	}
	inverted, err := configs.InvertedProtocolMapping()
	if err != nil {
		return nil, err
	}

	f := transform.RenameColumns(raw.Copy(), mapping)
	f = transform.SetRegistry(f, registry.Verra)

	ids := make([]frame.Value, f.Len())
	urls := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		id := "VCS" + f.Value("project_id", row).Str()
		ids[row] = frame.String(id)
		urls[row] = frame.String(registry.ProjectURL(registry.Verra, id))
	}
	f.SetColumn("project_id", ids)
	f.SetColumn("project_url", urls)

	if f, err = transform.HarmonizeCountryNames(f); err != nil {
		return nil, err
	}
	f = transform.HarmonizeStatusCodes(f)
	f = transform.MapProtocol(f, inverted)
	if f, err = transform.AddCategoryFromProtocol(f); err != nil {
		return nil, err
	}
	f = transform.AddProtocolVersions(f)
	f = transform.AddComplianceFlag(f)

	for _, project := range compliancePortalProjects() {
		f.AppendRow(project)
	}

	f = transform.AddRetiredIssuedTotals(f, credits)
	f = transform.AddFirstIssuanceRetirementDates(f, credits)

	f = frame.Projects.Conform(f)
	if f, err = transform.ConvertToDatetime(f, []string{"listed_at"}, transform.WithDayFirst()); err != nil {
		return nil, err
	}
	log.Debug("processed projects", "registry", registry.Verra, "rows", f.Len())
	return frame.Projects.Validate(f)
}
