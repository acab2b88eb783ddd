package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/signals"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score companies that passed readiness, with their people",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		engine, err := scoringEngine()
		if err != nil {
			return err
		}

		var sigs pipeline.SignalSource
		if noSignals, _ := cmd.Flags().GetBool("no-signals"); !noSignals {
			sigs = signals.NewPostgresStore(env.Store.Pool())
		}

		res, err := env.Runner.Score(ctx, engine, sigs)
		return finishSweep(ctx, res, err)
	},
}

var scoreShowCmd = &cobra.Command{
	Use:   "show <entity-id>",
	Short: "Show the latest score and score history of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		latest, err := env.Store.LatestScore(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "score show")
		}
		if latest == nil {
			fmt.Fprintln(os.Stderr, "No scores found.")
			return nil
		}
		limit, _ := cmd.Flags().GetInt("trend")
		trend, err := env.Store.ScoreTrend(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "score show")
		}
		if outputJSON {
			return writeJSON(os.Stdout, scoreView{Latest: latest, History: trend})
		}
		fmt.Println("Current:")
		formatScores([]model.Score{*latest})
		if len(trend) > 0 {
			fmt.Println("\nHistory:")
			formatScores(trend)
		}
		return nil
	},
}

// scoreView is the JSON shape of score show.
type scoreView struct {
	Latest  *model.Score  `json:"latest"`
	History []model.Score `json:"history"`
}

func formatScores(scores []model.Score) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORED\tTOTAL\tSEGMENT\tCONTACT\tRICHNESS\tSENIORITY\tENGAGEMENT\tBASELINE\tTIER\tWEIGHTS")
	for _, s := range scores {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%s\tv%d\n",
			s.ScoredAt.Format("2006-01-02 15:04"), s.Total, s.Segment,
			s.Breakdown.ContactCompleteness, s.Breakdown.DataRichness,
			s.Breakdown.Seniority, s.Breakdown.Engagement,
			s.SignalBaseline, s.EngagementTier, s.WeightVersion)
	}
	_ = w.Flush()
}

func init() {
	scoreCmd.Flags().Bool("no-signals", false, "score without the active signal weight set")
	scoreShowCmd.Flags().Int("trend", 10, "number of historical scores to show")

	scoreCmd.AddCommand(scoreShowCmd)
	rootCmd.AddCommand(scoreCmd)
}
