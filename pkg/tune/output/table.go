package output

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tunectl/tunectl/pkg/tune/phase"
	"github.com/tunectl/tunectl/pkg/tune/rollback"
)

// TableFormatter is the default human-facing formatter: lipgloss-styled
// sections with relative timestamps.
type TableFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, r *Report) error {
	if len(r.Runs) > 0 {
		f.writeRuns(w, r)
	}
	if r.Pipeline != nil {
		f.writePipeline(w, r.Pipeline)
	}
	if r.Rollback != nil {
		f.writeRollback(w, r.Rollback)
	}
	return nil
}

func (f *TableFormatter) writeRuns(w *bytes.Buffer, r *Report) {
	fmt.Fprintln(w, TitleStyle.Render("Run History"))
	fmt.Fprintf(w, "%s\n", HeaderStyle.Render(fmt.Sprintf("%-38s  %-16s  %8s", "RUN ID", "STARTED", "CHANGES")))
	for _, run := range r.Runs {
		fmt.Fprintf(w, "%-38s  %-16s  %8d\n",
			run.RunID,
			humanize.Time(run.StartedAt),
			run.Changes,
		)
	}
	fmt.Fprintln(w, MutedStyle.Render(fmt.Sprintf("%d run(s)", len(r.Runs))))
}

func (f *TableFormatter) writePipeline(w *bytes.Buffer, p *phase.PipelineResult) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Pipeline (%s): %s", p.Mode, styledState(p.State))))
	for _, pr := range p.Phases {
		fmt.Fprintf(w, "  %-12s  %-12s  exit=%-3d  %s\n",
			pr.Unit,
			styledState(pr.State),
			pr.ExitCode,
			pr.Duration.Round(time.Millisecond),
		)
	}
}

func (f *TableFormatter) writeRollback(w *bytes.Buffer, r *rollback.Result) {
	quality := SuccessStyle.Render(string(r.Quality))
	switch r.Quality {
	case rollback.QualityPartial:
		quality = WarningStyle.Render(string(r.Quality))
	case rollback.QualityNone:
		quality = ErrorStyle.Render(string(r.Quality))
	}
	fmt.Fprintln(w, TitleStyle.Render("Rollback: ")+quality)
	fmt.Fprintf(w, "  restored: %d  deleted: %d  failed: %d\n", r.Restored, r.Deleted, r.Failed)
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  %s\n", WarningStyle.Render(warning))
	}
}

func styledState(s phase.State) string {
	switch s {
	case phase.StateSucceeded:
		return SuccessStyle.Render(string(s))
	case phase.StateFailed, phase.StateTimedOut:
		return ErrorStyle.Render(string(s))
	default:
		return MutedStyle.Render(string(s))
	}
}

func init() {
	Register("table", func() Formatter {
		return &TableFormatter{}
	})
}

// Ensure TableFormatter implements Formatter.
var _ Formatter = (*TableFormatter)(nil)
