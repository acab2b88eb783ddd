package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var outputJSON bool

// interruptible returns a context cancelled on SIGINT/SIGTERM. Sweeps stop
// between records and leave the phase log resumable.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

// printResult writes a sweep summary, as JSON with --json.
func printResult(out io.Writer, res *pipeline.BatchResult) error {
	if outputJSON {
		return writeJSON(out, res)
	}
	formatBatchResult(out, res)
	return nil
}

// formatBatchResult writes a sweep summary followed by its failures.
func formatBatchResult(out io.Writer, res *pipeline.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	if res.Phase != "" {
		_, _ = fmt.Fprintf(w, "Phase:\t%s\n", res.Phase)
	}
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", res.Processed)
	_, _ = fmt.Fprintf(w, "Succeeded:\t%d\n", res.Succeeded)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", res.Skipped)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", res.Failed)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", res.Duration.Round(1e6))

	outcomes := make([]string, 0, len(res.Outcomes))
	for k := range res.Outcomes {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	for _, k := range outcomes {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", k, res.Outcomes[k])
	}
	_ = w.Flush()

	if len(res.Failures) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ENTITY\tREASON")
	for _, f := range res.Failures {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", f.EntityID, f.Reason)
	}
	_ = w.Flush()
}

// formatPhaseHistory writes phase records newest first.
func formatPhaseHistory(out io.Writer, current model.Phase, recs []model.PhaseRecord) {
	if current == "" {
		_, _ = fmt.Fprintln(out, "Current phase: (none)")
	} else {
		_, _ = fmt.Fprintf(out, "Current phase: %s\n", current)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PHASE\tSTATUS\tRUN\tSTARTED\tDURATION\tERROR")
	for _, r := range recs {
		dur := "-"
		if r.EndedAt != nil {
			dur = r.Duration.Round(1e6).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Phase, r.Status, r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), dur, r.Error)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
}
