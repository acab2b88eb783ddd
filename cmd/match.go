package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/ingest"
	"github.com/sells-group/outreach-cli/internal/match"
	"github.com/sells-group/outreach-cli/internal/model"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Resolve incoming records against existing companies and people",
	Long: `Reads records from a JSON, CSV or XLSX file (local, ftp://, or - for JSON on stdin),
links each to an existing entity or creates it, and routes near misses to the fallout queue.`,
}

var matchCompaniesCmd = &cobra.Command{
	Use:   "companies <source>",
	Short: "Resolve company records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := ingest.Companies(cmd.Context(), args[0], ingestOptions(cmd))
		if err != nil {
			return err
		}
		return runMatch(cmd, func(ctx context.Context, r *match.Resolver) matchSummary {
			return resolveAll(ctx, recs, r.ResolveCompany, func(c model.Company) string { return c.Name })
		})
	},
}

var matchPeopleCmd = &cobra.Command{
	Use:   "people <source>",
	Short: "Resolve person records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := ingest.People(cmd.Context(), args[0], ingestOptions(cmd))
		if err != nil {
			return err
		}
		return runMatch(cmd, func(ctx context.Context, r *match.Resolver) matchSummary {
			return resolveAll(ctx, recs, r.ResolvePerson, func(p model.Person) string { return p.DisplayName() })
		})
	},
}

// matchSummary tallies resolver outcomes for one input file.
type matchSummary struct {
	RunID    string   `json:"run_id"`
	Total    int      `json:"total"`
	Matched  int      `json:"matched"`
	Created  int      `json:"created"`
	Fallout  int      `json:"fallout"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
	Canceled bool     `json:"canceled,omitempty"`
}

func runMatch(cmd *cobra.Command, fn func(context.Context, *match.Resolver) matchSummary) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	env, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	resolver := match.NewResolver(env.Store, env.Audit, match.Config{
		CompanyThreshold: cfg.Match.CompanyThreshold,
		PersonThreshold:  cfg.Match.PersonThreshold,
		CandidateLimit:   cfg.Match.CandidateLimit,
	}, env.Runner.RunID())

	sum := fn(ctx, resolver)
	sum.RunID = env.Runner.RunID()
	if outputJSON {
		if err := writeJSON(os.Stdout, sum); err != nil {
			return err
		}
	} else {
		formatMatchSummary(os.Stdout, sum)
	}
	if sum.Canceled {
		return eris.Wrap(ctx.Err(), "match: interrupted")
	}
	return nil
}

// resolveAll resolves recs in order. A failed record is counted and the
// run continues.
func resolveAll[T any](ctx context.Context, recs []T, resolve func(context.Context, T) (*match.Outcome, error), name func(T) string) matchSummary {
	var sum matchSummary
	for _, rec := range recs {
		if ctx.Err() != nil {
			sum.Canceled = true
			break
		}
		sum.Total++
		out, err := resolve(ctx, rec)
		switch {
		case err != nil:
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", name(rec), err))
			zap.L().Warn("match: record failed", zap.String("name", name(rec)), zap.Error(err))
		case out.Fallout != nil:
			sum.Fallout++
		case out.Created:
			sum.Created++
		default:
			sum.Matched++
		}
	}
	return sum
}

func ingestOptions(cmd *cobra.Command) ingest.Options {
	format, _ := cmd.Flags().GetString("format")
	sheet, _ := cmd.Flags().GetString("sheet")
	encoding, _ := cmd.Flags().GetString("encoding")
	return ingest.Options{Format: ingest.Format(format), Sheet: sheet, Encoding: encoding}
}

func formatMatchSummary(out io.Writer, s matchSummary) {
	_, _ = fmt.Fprintf(out, "Run %s: %d records, %d matched, %d created, %d fallout, %d failed\n",
		s.RunID, s.Total, s.Matched, s.Created, s.Fallout, s.Failed)
	for _, e := range s.Errors {
		_, _ = fmt.Fprintf(out, "  %s\n", e)
	}
}

func init() {
	for _, c := range []*cobra.Command{matchCompaniesCmd, matchPeopleCmd} {
		c.Flags().String("format", "", "input format: json, csv or xlsx (default: from extension)")
		c.Flags().String("sheet", "", "XLSX sheet name (default: first sheet)")
		c.Flags().String("encoding", "", "CSV character encoding, e.g. windows-1252")
	}
	matchCmd.AddCommand(matchCompaniesCmd)
	matchCmd.AddCommand(matchPeopleCmd)
	rootCmd.AddCommand(matchCmd)
}
