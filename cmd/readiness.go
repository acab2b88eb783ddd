package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/readiness"
)

var readinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Evaluate outreach readiness of valid companies",
	Long:  "Runs the readiness checks over every valid company, or evaluates a single company with --company without recording the result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if id, _ := cmd.Flags().GetString("company"); id != "" {
			verdict, err := env.Runner.EvaluateCompany(ctx, id)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(os.Stdout, verdict)
			}
			formatReadiness(verdict)
			return nil
		}

		res, err := env.Runner.Readiness(ctx)
		return finishSweep(ctx, res, err)
	},
}

func formatReadiness(r *readiness.Result) {
	fmt.Printf("Company: %s\nReady:   %t (%d/%d checks)\n", r.CompanyID, r.Ready, r.PassedChecks, r.TotalChecks)
	if r.Reason != "" {
		fmt.Printf("Reason:  %s\n", r.Reason)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nSLOT\tPERSON\tCHECK\tPASSED\tREASON")
	for _, s := range r.Slots {
		for _, c := range s.Checks {
			reason := ""
			if !c.Passed {
				reason = c.Reason
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", s.Slot, s.PersonID, c.Kind, c.Passed, reason)
		}
	}
	_ = w.Flush()
}

func init() {
	readinessCmd.Flags().String("company", "", "evaluate a single company without recording the verdict")
	rootCmd.AddCommand(readinessCmd)
}
