package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify emails and enrich people through the provider",
	Long:  "Checks email deliverability for the selected people and records every attempt. With --enrich an enrichment lookup is recorded as well. Readiness reads the latest attempts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		client, err := initVerifier()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		company, _ := cmd.Flags().GetString("company")
		status, _ := cmd.Flags().GetString("status")
		enrich, _ := cmd.Flags().GetBool("enrich")

		res, err := env.Runner.Verify(ctx, client, pipeline.VerifyOptions{
			CompanyID: company,
			Status:    model.Status(status),
			Enrich:    enrich,
		})
		return finishSweep(ctx, res, err)
	},
}

func init() {
	verifyCmd.Flags().String("company", "", "only verify people of this company")
	verifyCmd.Flags().String("status", "", "only verify people with this status")
	verifyCmd.Flags().Bool("enrich", false, "also run an enrichment lookup per person")
	rootCmd.AddCommand(verifyCmd)
}
