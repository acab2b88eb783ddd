package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/signals"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Recompute signal weights from conversion outcomes",
	Long:  "Runs one optimizer pass over the lookback window and activates a new weight set version. Use the worker command for the scheduled run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := newOptimizer(env).Optimize(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(os.Stdout, report)
		}
		fmt.Printf("Weight set v%d -> v%d (%d changed, %d skipped)\n",
			report.PreviousVersion, report.NewVersion, report.Changed, report.Skipped)
		formatAdjustments(os.Stdout, report.Adjustments)
		return nil
	},
}

var optimizeSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Activate the initial weight set from the categories file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			file = cfg.Optimizer.CategoriesFile
		}
		weights, err := signals.LoadCategories(file)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		version, err := newOptimizer(env).Seed(ctx, weights)
		if err != nil {
			return err
		}
		fmt.Printf("Active weight set: v%d (%d signals in %s)\n", version, len(weights), file)
		return nil
	},
}

var optimizeRollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Re-activate a prior weight set version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		version, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "invalid version %q", args[0])
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ws, err := newOptimizer(env).Rollback(ctx, version)
		if err != nil {
			return err
		}
		fmt.Printf("Active weight set: v%d (%d signals)\n", ws.Version, len(ws.Weights))
		return nil
	},
}

var optimizeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List weight set versions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		sets, err := newOptimizer(env).History(ctx, limit)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(os.Stdout, sets)
		}
		formatWeightSets(os.Stdout, sets)
		return nil
	},
}

func newOptimizer(env *pipelineEnv) *signals.Optimizer {
	return signals.NewOptimizer(signals.NewPostgresStore(env.Store.Pool()), optimizerConfig())
}

func optimizerConfig() signals.Config {
	o := cfg.Optimizer
	return signals.Config{
		LookbackDays:              o.LookbackDays,
		MinSampleSize:             o.MinSampleSize,
		FundingDealThreshold:      o.FundingDealThreshold,
		EngagementVolumeThreshold: o.EngagementVolumeThreshold,
	}
}

func formatAdjustments(out io.Writer, adjs []signals.Adjustment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SIGNAL\tCATEGORY\tOLD\tNEW\tEVENTS\tRATE\tNOTE")
	for _, a := range adjs {
		note := ""
		if a.Skipped {
			note = "below min sample"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.3f\t%s\n",
			a.Signal, a.Category, a.OldWeight, a.NewWeight, a.Events, a.ConversionRate, note)
	}
	_ = w.Flush()
}

func formatWeightSets(out io.Writer, sets []model.WeightSet) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tACTIVE\tSIGNALS\tCREATED\tREASON")
	for _, ws := range sets {
		active := ""
		if ws.Active {
			active = "*"
		}
		_, _ = fmt.Fprintf(w, "v%d\t%s\t%d\t%s\t%s\n",
			ws.Version, active, len(ws.Weights), ws.CreatedAt.Format("2006-01-02 15:04"), ws.Reason)
	}
	_ = w.Flush()
}

func init() {
	optimizeSeedCmd.Flags().String("file", "", "signal categories YAML file (default from config)")
	optimizeHistoryCmd.Flags().Int("limit", 20, "max versions to list")

	optimizeCmd.AddCommand(optimizeSeedCmd)
	optimizeCmd.AddCommand(optimizeRollbackCmd)
	optimizeCmd.AddCommand(optimizeHistoryCmd)
	rootCmd.AddCommand(optimizeCmd)
}
