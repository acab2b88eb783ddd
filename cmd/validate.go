package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run validation rules over companies or people",
}

var validateCompaniesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Validate companies and record failures",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		res, err := env.Runner.ValidateCompanies(ctx, model.Status(status))
		return finishSweep(ctx, res, err)
	},
}

var validatePeopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Validate people and record failures",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		company, _ := cmd.Flags().GetString("company")
		res, err := env.Runner.ValidatePeople(ctx, store.PersonFilter{
			CompanyID: company,
			Status:    model.Status(status),
		})
		return finishSweep(ctx, res, err)
	},
}

func init() {
	validateCompaniesCmd.Flags().String("status", "pending", "only validate companies with this status (empty for all)")
	validatePeopleCmd.Flags().String("status", "pending", "only validate people with this status (empty for all)")
	validatePeopleCmd.Flags().String("company", "", "only validate people of this company")

	validateCmd.AddCommand(validateCompaniesCmd)
	validateCmd.AddCommand(validatePeopleCmd)
	rootCmd.AddCommand(validateCmd)
}
