package taskrunner

import (
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/emanator/internal/tasks"
)

// RenderSummaryLine returns the summary line printed after a run. Empty plans
// produce no summary.
func RenderSummaryLine(outcome tasks.RunOutcome) string {
	total := outcome.Plan.Len()
	if total == 0 {
		return ""
	}

	skipped := 0
	failed := 0
	for _, taskOutcome := range outcome.TaskOutcomes {
		if taskOutcome.Skipped {
			skipped++
		}
		if taskOutcome.Failed {
			failed++
		}
	}

	parts := []string{fmt.Sprintf("Summary: total.tasks=%d", total)}
	if len(outcome.RunIdentifier) > 0 {
		parts = append(parts, fmt.Sprintf("run=%s", outcome.RunIdentifier))
	}
	parts = append(parts, fmt.Sprintf("executed=%d", outcome.Executed))
	parts = append(parts, fmt.Sprintf("skipped=%d", skipped))
	parts = append(parts, fmt.Sprintf("failed=%d", failed))
	if failure, hasFailure := outcome.Failure(); hasFailure {
		parts = append(parts, fmt.Sprintf("failed_task=%s", failure.Identifier))
	}

	parts = append(parts, fmt.Sprintf("duration_human=%s", outcome.Duration.Round(time.Millisecond)))
	parts = append(parts, fmt.Sprintf("duration_ms=%d", outcome.Duration.Milliseconds()))

	return strings.Join(parts, " ")
}
