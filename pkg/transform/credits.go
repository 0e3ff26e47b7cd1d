package transform

import (
	"sort"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

// Transaction type values produced by the adapters.
const (
	TransactionIssuance     = "issuance"
	TransactionRetirement   = "retirement"
	TransactionCancellation = "cancellation"
)

// AggregateIssuances collapses issuance rows into one row per
// (project_id, transaction_date, vintage), summing quantities. Groups
// whose summed quantity is not positive are dropped. Non-issuance rows
// are excluded from the result. The transaction_type column must be
// present.
func AggregateIssuances(f *frame.Frame) (*frame.Frame, error) {
	if !f.HasColumn("transaction_type") {
		return nil, &frame.MissingColumnError{Column: "transaction_type"}
	}

	type group struct {
		projectID frame.Value
		date      frame.Value
		vintage   frame.Value
		quantity  int64
		registry  frame.Value
	}

	order := make([]string, 0)
	groups := make(map[string]*group)
	for row := 0; row < f.Len(); row++ {
		if f.Value("transaction_type", row).Str() != TransactionIssuance {
			continue
		}
		key := f.Value("project_id", row).Format() + "\x00" +
			f.Value("transaction_date", row).Format() + "\x00" +
			f.Value("vintage", row).Format()
		g, ok := groups[key]
		if !ok {
			g = &group{
				projectID: f.Value("project_id", row),
				date:      f.Value("transaction_date", row),
				vintage:   f.Value("vintage", row),
				registry:  f.Value("registry", row),
			}
			groups[key] = g
			order = append(order, key)
		}
		if q := f.Value("quantity", row); !q.IsNull() {
			g.quantity += q.Int()
		}
	}

	out := frame.New("project_id", "transaction_date", "vintage", "quantity", "registry", "transaction_type")
	for _, key := range order {
		g := groups[key]
		if g.quantity <= 0 {
			continue
		}
		out.AppendRow(map[string]frame.Value{
			"project_id":       g.projectID,
			"transaction_date": g.date,
			"vintage":          g.vintage,
			"quantity":         frame.Int(g.quantity),
			"registry":         g.registry,
			"transaction_type": frame.String(TransactionIssuance),
		})
	}
	return out.SortBy("project_id", "vintage", "transaction_date"), nil
}

// NonIssuances returns the rows whose transaction type is anything
// other than issuance.
func NonIssuances(f *frame.Frame) *frame.Frame {
	return f.Filter(func(row int) bool {
		return f.Value("transaction_type", row).Str() != TransactionIssuance
	})
}

// MergeWithARB replaces registry crediting data with the issuance
// table published by the California Air Resources Board, which is the
// authoritative record for compliance projects. Rows for any project
// present in both frames are dropped from the credits frame and the
// ARB rows for those projects are appended instead.
func MergeWithARB(credits, arb *frame.Frame) *frame.Frame {
	if arb == nil || arb.Len() == 0 {
		return credits
	}
	creditIDs := make(map[string]bool)
	for row := 0; row < credits.Len(); row++ {
		creditIDs[credits.Value("project_id", row).Str()] = true
	}
	overlap := make(map[string]bool)
	for row := 0; row < arb.Len(); row++ {
		if id := arb.Value("project_id", row).Str(); creditIDs[id] {
			overlap[id] = true
		}
	}
	if len(overlap) == 0 {
		return credits
	}
	kept := credits.Filter(func(row int) bool {
		return !overlap[credits.Value("project_id", row).Str()]
	})
	patch := arb.Filter(func(row int) bool {
		return overlap[arb.Value("project_id", row).Str()]
	})
	return frame.Concat(kept, patch)
}

// SortCredits orders credit rows by project id then vintage, matching
// the canonical output ordering.
func SortCredits(f *frame.Frame) *frame.Frame {
	return f.SortBy("project_id", "vintage")
}

// UniqueProjectIDs returns the sorted set of project ids in the frame.
func UniqueProjectIDs(f *frame.Frame) []string {
	seen := make(map[string]bool)
	var ids []string
	for row := 0; row < f.Len(); row++ {
		id := f.Value("project_id", row).Str()
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
