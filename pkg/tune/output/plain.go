package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"
)

// PlainFormatter formats the report as simple aligned text, suitable for
// scripting and piping. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(r.Runs) > 0 {
		fmt.Fprintln(tw, "RUN ID\tSTARTED\tCHANGES\tCONTEXT FILE")
		for _, run := range r.Runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
				run.RunID,
				run.StartedAt.UTC().Format(time.RFC3339),
				run.Changes,
				run.ContextFile,
			)
		}
	}

	if r.Pipeline != nil {
		fmt.Fprintf(tw, "pipeline\t%s\t%s\n", r.Pipeline.Mode, r.Pipeline.State)
		for _, p := range r.Pipeline.Phases {
			fmt.Fprintf(tw, "phase\t%s\t%s\texit=%d\t%s\n",
				p.Unit, p.State, p.ExitCode, p.Duration.Round(time.Millisecond))
		}
	}

	if r.Rollback != nil {
		fmt.Fprintf(tw, "rollback\t%s\trestored=%d\tdeleted=%d\tfailed=%d\n",
			r.Rollback.Quality, r.Rollback.Restored, r.Rollback.Deleted, r.Rollback.Failed)
		for _, warning := range r.Rollback.Warnings {
			fmt.Fprintf(tw, "warning\t%s\n", warning)
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
