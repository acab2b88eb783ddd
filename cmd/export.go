package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Send pending validation failures and match fallout to the review sink",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		sink, _ := cmd.Flags().GetString("sink")
		if sink == "" {
			sink = cfg.Export.Sink
		}
		exp, err := newExporter(sink)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		res, err := env.Runner.Review(ctx, exp, cfg.Export.BatchSize, limit)
		if res != nil {
			if outputJSON {
				if perr := writeJSON(os.Stdout, res); perr != nil {
					return perr
				}
			} else {
				fmt.Printf("Exported %d items in %d batches to %s (run %s)\n", res.Exported, res.Batches, res.Sink, res.RunID)
			}
		}
		return err
	},
}

var exportSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply reviewer fixes back to the store",
	Long:  "Reads resolved rows from the Notion review database, or from a reviewed spreadsheet with --file, and marks the matching validation failures resolved with their fixed value.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		file, _ := cmd.Flags().GetString("file")

		var syncFn func(export.Resolver) (int, error)
		if file != "" {
			syncFn = func(r export.Resolver) (int, error) { return export.SyncFile(ctx, file, r) }
		} else {
			client, err := initNotion()
			if err != nil {
				return err
			}
			ne := export.NewNotionExporter(client, cfg.Notion.ReviewDB)
			syncFn = func(r export.Resolver) (int, error) { return ne.Sync(ctx, r) }
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := syncFn(env.Store)
		zap.L().Info("review sync complete", zap.Int("resolved", n))
		fmt.Printf("Resolved %d validation failures\n", n)
		return err
	},
}

var exportEscalateCmd = &cobra.Command{
	Use:   "escalate <failure-id>",
	Short: "Escalate a validation failure that cannot be fixed in review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid failure id %q", args[0])
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.EscalateFailure(ctx, id); err != nil {
			return eris.Wrap(err, "export escalate")
		}
		fmt.Printf("Escalated failure %d\n", id)
		return nil
	},
}

// newExporter builds the exporter for a configured sink.
func newExporter(sink string) (export.Exporter, error) {
	switch sink {
	case "notion":
		client, err := initNotion()
		if err != nil {
			return nil, err
		}
		return export.NewNotionExporter(client, cfg.Notion.ReviewDB), nil
	case "xlsx":
		return export.NewXLSXExporter(cfg.Export.XLSXDir), nil
	case "", "none":
		return nil, eris.New("no review sink configured (set export.sink or --sink)")
	default:
		return nil, eris.Errorf("unsupported export sink: %s", sink)
	}
}

func init() {
	exportCmd.Flags().String("sink", "", "review sink: notion or xlsx (default from config)")
	exportCmd.Flags().Int("limit", 1000, "max failures and max fallout entries to export")
	exportSyncCmd.Flags().String("file", "", "reviewed spreadsheet to read instead of Notion")

	exportCmd.AddCommand(exportSyncCmd)
	exportCmd.AddCommand(exportEscalateCmd)
	rootCmd.AddCommand(exportCmd)
}
