package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push scored companies and their valid contacts to Salesforce",
	Long: `Push scored companies and their valid contacts to Salesforce.

Companies already pushed are skipped unless --force is given. Accounts are
matched on website and contacts on email (or name) within the account, so a
forced re-push updates records instead of duplicating them.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		force, _ := cmd.Flags().GetBool("force")
		res, err := env.Runner.Push(ctx, sf, pipeline.PushOptions{Force: force})
		return finishSweep(ctx, res, err)
	},
}

func init() {
	pushCmd.Flags().Bool("force", false, "re-push companies whose campaign phase already completed")
	rootCmd.AddCommand(pushCmd)
}
