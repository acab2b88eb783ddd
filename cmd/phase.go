package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/phase"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Inspect and repair per-entity phase state",
}

var phaseStatusCmd = &cobra.Command{
	Use:   "status <entity-id>",
	Short: "Show the current phase and transition history of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		current, err := env.Tracker.Current(ctx, args[0])
		if err != nil {
			return err
		}
		recs, err := env.Tracker.History(ctx, args[0], limit)
		if err != nil {
			return err
		}

		if outputJSON {
			return writeJSON(os.Stdout, map[string]any{"entity_id": args[0], "current": current, "history": recs})
		}
		formatPhaseHistory(os.Stdout, current, recs)
		return nil
	},
}

var phaseRetryCmd = &cobra.Command{
	Use:   "retry <entity-id> <phase>",
	Short: "Move a failed phase back to running",
	Long:  "Marks a failed phase running again so the next sweep picks the entity up. Sweeps retry failed phases on their own; use this to re-open one entity by hand.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := parsePhase(args[1])
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Tracker.Retry(ctx, args[0], p); err != nil {
			return err
		}
		fmt.Printf("%s: %s running\n", args[0], p)
		return nil
	},
}

var phaseResetCmd = &cobra.Command{
	Use:   "reset <entity-id> <phase>",
	Short: "Reset a phase to not_started",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := parsePhase(args[1])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Tracker.Reset(ctx, args[0], p, reason); err != nil {
			return err
		}
		fmt.Printf("%s: %s reset\n", args[0], p)
		return nil
	},
}

func parsePhase(s string) (model.Phase, error) {
	p := model.Phase(s)
	if phase.Index(p) < 0 {
		return "", eris.Errorf("unknown phase %q (want one of %v)", s, model.Phases)
	}
	return p, nil
}

func init() {
	phaseStatusCmd.Flags().Int("limit", 50, "max history records to show")
	phaseResetCmd.Flags().String("reason", "manual reset", "reason recorded in the phase log")

	phaseCmd.AddCommand(phaseStatusCmd)
	phaseCmd.AddCommand(phaseRetryCmd)
	phaseCmd.AddCommand(phaseResetCmd)
	rootCmd.AddCommand(phaseCmd)
}
