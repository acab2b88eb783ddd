package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/signals"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for the scheduled signal optimizer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		if err := cfg.Validate("temporal"); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return eris.Wrap(err, "temporal: dial")
		}
		defer tc.Close()

		w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
		w.RegisterWorkflow(signals.OptimizeWorkflow)
		w.RegisterActivity(&signals.Activities{Optimizer: newOptimizer(env)})

		if schedule, _ := cmd.Flags().GetBool("schedule"); schedule {
			run, err := signals.Schedule(ctx, tc, cfg.Temporal.TaskQueue, cfg.Optimizer.Schedule)
			if err != nil {
				return err
			}
			zap.L().Info("optimizer scheduled",
				zap.String("workflow_id", run.GetID()),
				zap.String("run_id", run.GetRunID()),
				zap.String("cron", cfg.Optimizer.Schedule),
			)
		}

		zap.L().Info("starting temporal worker",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)
		if err := w.Start(); err != nil {
			return eris.Wrap(err, "temporal: start worker")
		}
		<-ctx.Done()
		zap.L().Info("stopping temporal worker")
		w.Stop()
		return nil
	},
}

func init() {
	workerCmd.Flags().Bool("schedule", true, "start the cron-scheduled optimizer workflow if it is not running")
	rootCmd.AddCommand(workerCmd)
}
