package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/offsetsdb/offsetsdb/pkg/catalog"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

// maxLookbackDays bounds how far back a prior snapshot is probed for
// the shrinkage check.
const maxLookbackDays = 4

// minRatio is the floor on today's totals relative to a prior day.
// Registries only ever append transactions, so a real shrink means a
// broken download or a broken transform.
const minRatio = 0.99

// snapshotSource is the slice of the catalog the validator needs.
type snapshotSource interface {
	Snapshot(ctx context.Context, table string, date time.Time) (*frame.Frame, error)
}

// ValidationError reports output tables that shrank against every
// reachable prior snapshot.
type ValidationError struct {
	CreditsTotal  int64
	ProjectsCount int
	Attempts      []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output shrank against all prior snapshots (credits total %d, distinct projects %d): %s",
		e.CreditsTotal, e.ProjectsCount, strings.Join(e.Attempts, "; "))
}

func creditsTotal(f *frame.Frame) int64 {
	var total int64
	for row := 0; row < f.Len(); row++ {
		if q := f.Value("quantity", row); !q.IsNull() {
			total += q.Int()
		}
	}
	return total
}

func projectsCount(f *frame.Frame) int {
	return len(transform.UniqueProjectIDs(f))
}

// crossDayValidate checks today's totals against the prior 1 to 4
// days. The first reachable snapshot pair that today's output does not
// shrink against passes the run. A run with no reachable prior
// snapshots passes with a warning so the first ever run can seed the
// catalog.
func crossDayValidate(ctx context.Context, log *slog.Logger, source snapshotSource, runDate time.Time, credits, projects *frame.Frame) error {
	total := creditsTotal(credits)
	count := projectsCount(projects)

	var attempts []string
	for lookback := 1; lookback <= maxLookbackDays; lookback++ {
		prior := runDate.AddDate(0, 0, -lookback)

		priorCredits, err := source.Snapshot(ctx, catalog.CreditsTable, prior)
		if err != nil {
			log.Debug("prior credits snapshot unreachable", "lookback_days", lookback, "error", err)
			continue
		}
		priorProjects, err := source.Snapshot(ctx, catalog.ProjectsTable, prior)
		if err != nil {
			log.Debug("prior projects snapshot unreachable", "lookback_days", lookback, "error", err)
			continue
		}

		priorTotal := creditsTotal(priorCredits)
		priorCount := projectsCount(priorProjects)
		if float64(total) >= minRatio*float64(priorTotal) && float64(count) >= minRatio*float64(priorCount) {
			log.Info("output validated against prior snapshot",
				"lookback_days", lookback,
				"credits_total", total, "prior_credits_total", priorTotal,
				"projects", count, "prior_projects", priorCount)
			return nil
		}
		attempts = append(attempts, fmt.Sprintf(
			"%d day(s) back: credits %d vs %d, projects %d vs %d",
			lookback, total, priorTotal, count, priorCount))
	}

	if len(attempts) == 0 {
		log.Warn("no prior snapshots reachable, skipping cross-day validation")
		return nil
	}
	return &ValidationError{CreditsTotal: total, ProjectsCount: count, Attempts: attempts}
}
