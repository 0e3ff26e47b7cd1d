// Package arb normalizes the California Air Resources Board issuance
// table. The published workbook is wide, with one column per
// retirement bucket per row, and is melted into long transaction rows.
// ARB is authoritative for compliance projects, so its output overrides
// registry crediting data during the merge step.
package arb

import (
	"log/slog"
	"strings"
	"time"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

var renames = map[string]string{
	"OPR Project ID":                        "opr_id",
	"ARB Offset Credits Issued":             "issuance",
	"Project Type":                          "project_type",
	"Issuance Date":                         "issued_at",
	"Vintage":                               "vintage",
	"Retired Voluntarily":                   "vcm_retirement",
	"Retired 1st Compliance Period (CA)":    "first_compliance_ca",
	"Retired 2nd Compliance Period (CA)":    "second_compliance_ca",
	"Retired 3rd Compliance Period (CA)":    "third_compliance_ca",
	"Retired 4th Compliance Period (CA)":    "fourth_compliance_ca",
	"Retired for Compliance in Quebec":      "qc_compliance",
}

// creditColumns are melted into transaction rows, in this order.
var creditColumns = []string{
	"issuance",
	"vcm_retirement",
	"first_compliance_ca",
	"second_compliance_ca",
	"third_compliance_ca",
	"fourth_compliance_ca",
	"qc_compliance",
}

// California compliance period surrender deadlines. Voluntary and
// Quebec retirements have no usable date.
var compliancePeriodDates = map[string]frame.Value{
	"vcm_retirement":       frame.Null(),
	"qc_compliance":        frame.Null(),
	"first_compliance_ca":  frame.Time(time.Date(2016, 3, 21, 0, 0, 0, 0, time.UTC)),
	"second_compliance_ca": frame.Time(time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC)),
	"third_compliance_ca":  frame.Time(time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC)),
	"fourth_compliance_ca": frame.Time(time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC)),
}

// interpolateVintages linearly fills missing vintages. The workbook is
// ordered chronologically, so gaps left by zero-issuance reporting
// periods sit between known years; trailing gaps repeat the last known
// year and leading gaps stay null.
func interpolateVintages(values []frame.Value) []frame.Value {
	out := append([]frame.Value(nil), values...)
	lastKnown := -1
	for i, v := range out {
		if v.IsNull() {
			continue
		}
		if lastKnown >= 0 && i-lastKnown > 1 {
			lo := out[lastKnown].Int()
			hi := v.Int()
			span := int64(i - lastKnown)
			for k := lastKnown + 1; k < i; k++ {
				out[k] = frame.Int(lo + (hi-lo)*int64(k-lastKnown)/span)
			}
		}
		lastKnown = i
	}
	if lastKnown >= 0 {
		for k := lastKnown + 1; k < len(out); k++ {
			out[k] = out[lastKnown]
		}
	}
	return out
}

// prefixedProjectID assumes bare ids are Verra projects.
func prefixedProjectID(oprID string) string {
	for _, prefix := range []string{"CAR", "ACR", "VCS"} {
		if strings.HasPrefix(oprID, prefix) {
			return oprID
		}
	}
	return "VCS" + oprID
}

// Process melts the ARB issuance workbook into canonical credit rows.
func Process(log *slog.Logger, raw *frame.Frame) (*frame.Frame, error) {
	if raw.Len() == 0 {
		return frame.Credits.Validate(frame.Credits.Conform(frame.New()))
	}

	f := raw.Copy()
	f.Rename(renames)

	// The placeholder lands in the quantity columns for deferred
	// reforestation projects.
	for _, name := range f.Columns() {
		for row := 0; row < f.Len(); row++ {
			if f.Value(name, row).Str() == "reforest defer" {
				f.Set(name, row, frame.Null())
			}
		}
	}

	f = transform.CleanNumericColumns(f, append([]string{"vintage"}, creditColumns...)...)
	f.SetColumn("vintage", interpolateVintages(f.Column("vintage")))

	for row := 0; row < f.Len(); row++ {
		if v := f.Value("issuance", row); v.IsNull() {
			f.Set("issuance", row, frame.Int(0))
		}
		if v := f.Value("project_type", row); !v.IsNull() {
			f.Set("project_type", row, frame.String(strings.ToLower(v.Str())))
		}
	}

	var err error
	if f, err = transform.ConvertToDatetime(f, []string{"issued_at"}); err != nil {
		return nil, err
	}

	melted := frame.New("project_id", "vintage", "transaction_date", "transaction_type", "quantity", "registry")
	for _, column := range creditColumns {
		txType := transform.TransactionIssuance
		if column != "issuance" {
			txType = transform.TransactionRetirement
		}
		for row := 0; row < f.Len(); row++ {
			quantity := f.Value(column, row)
			if quantity.IsNull() {
				quantity = frame.Int(0)
			}
			if txType == transform.TransactionRetirement && quantity.Int() == 0 {
				// Zero retirements are artifacts of the wide layout.
				continue
			}
			date := f.Value("issued_at", row)
			if column != "issuance" {
				date = compliancePeriodDates[column]
			}
			id := prefixedProjectID(f.Value("opr_id", row).Str())
			melted.AppendRow(map[string]frame.Value{
				"project_id":       frame.String(id),
				"vintage":          f.Value("vintage", row),
				"transaction_date": date,
				"transaction_type": frame.String(txType),
				"quantity":         quantity,
				"registry":         frame.String(registry.FromProjectID(id)),
			})
		}
	}

	melted = frame.Credits.Conform(melted)
	log.Debug("processed ARB issuance table", "rows", melted.Len())
	return frame.Credits.Validate(melted)
}
