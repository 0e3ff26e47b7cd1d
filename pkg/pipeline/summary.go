package pipeline

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

// registryTotals are the per-registry numbers shown in the run summary.
type registryTotals struct {
	projects int
	issued   int64
	retired  int64
}

func tabulate(outputs []*registryOutput, credits *frame.Frame) map[string]registryTotals {
	totals := make(map[string]registryTotals, len(outputs))
	for _, out := range outputs {
		t := totals[out.registry]
		t.projects = len(transform.UniqueProjectIDs(out.projects))
		totals[out.registry] = t
	}
	for row := 0; row < credits.Len(); row++ {
		name := credits.Value("registry", row).Str()
		q := credits.Value("quantity", row)
		if q.IsNull() {
			continue
		}
		t := totals[name]
		switch txType := credits.Value("transaction_type", row).Str(); {
		case txType == transform.TransactionIssuance:
			t.issued += q.Int()
		case strings.Contains(txType, transform.TransactionRetirement):
			t.retired += q.Int()
		}
		totals[name] = t
	}
	return totals
}

// summarize renders the per-registry run totals as a table on the
// logger's output.
func summarize(log *slog.Logger, outputs []*registryOutput, credits, projects *frame.Frame) {
	totals := tabulate(outputs, credits)
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	var rendered strings.Builder
	table := tablewriter.NewWriter(&rendered)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Registry", "Projects", "Issued", "Retired"})

	var grand registryTotals
	for _, name := range names {
		t := totals[name]
		grand.projects += t.projects
		grand.issued += t.issued
		grand.retired += t.retired
		table.Append([]string{
			name,
			strconv.Itoa(t.projects),
			strconv.FormatInt(t.issued, 10),
			strconv.FormatInt(t.retired, 10),
		})
	}
	table.SetFooter([]string{
		"total",
		strconv.Itoa(grand.projects),
		strconv.FormatInt(grand.issued, 10),
		strconv.FormatInt(grand.retired, 10),
	})
	table.Render()

	log.Info("run summary",
		"registries", len(names),
		"projects", projects.Len(),
		"credits", credits.Len())
	for _, line := range strings.Split(strings.TrimRight(rendered.String(), "\n"), "\n") {
		log.Info(line)
	}
}
