package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dataqa/internal/session"
)

var (
	driftPrevious     []string
	driftBaseline     string
	driftIDColumn     string
	driftIDCandidates []string
	driftKeys         []string
	driftFormat       string
	driftOutput       string
	driftConcurrency  int
)

var driftCmd = &cobra.Command{
	Use:   "drift <files...>",
	Short: "Compare a file set against an earlier version",
	Long: `Runs the full quality audit on the given files, plus a drift
comparison against either a second file set (--previous, repeatable) or
a stored baseline (--baseline). The report lists tables that appeared
or disappeared and, per common table, column set changes and fill-rate
movement (worst regressions first).

Examples:
  # Compare this month's export against last month's files
  dataqa drift --previous feb/permits.zip mar/permits.zip

  # Compare against a saved baseline, no old files needed
  dataqa drift --baseline february permits.zip`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(driftPrevious) == 0 && driftBaseline == "" {
			return eris.New("drift: either --previous or --baseline is required")
		}
		if len(driftPrevious) > 0 && driftBaseline != "" {
			return eris.New("drift: --previous and --baseline are mutually exclusive")
		}

		ctx := cmd.Context()

		results, err := ingestPaths(ctx, args, driftConcurrency)
		if err != nil {
			return err
		}

		sess := session.New(identifierStrategy(driftIDColumn, driftIDCandidates), driftKeys)
		for _, res := range results {
			sess.AddResult(res)
		}

		if driftBaseline != "" {
			if err := cfg.Validate("snapshot"); err != nil {
				return err
			}
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.GetSnapshot(ctx, driftBaseline)
			if err != nil {
				return err
			}
			sess.SetBaseline(snap.Tables)
		} else {
			previous, err := ingestPaths(ctx, driftPrevious, driftConcurrency)
			if err != nil {
				return err
			}
			for _, res := range previous {
				sess.AddPrevious(res)
			}
		}

		rep, err := sess.Run()
		if err != nil {
			return err
		}

		return writeRunReport(rep, driftFormat, driftOutput)
	},
}

func init() {
	driftCmd.Flags().StringSliceVar(&driftPrevious, "previous", nil, "previous version files (repeatable)")
	driftCmd.Flags().StringVar(&driftBaseline, "baseline", "", "stored baseline name to compare against")
	driftCmd.Flags().StringVar(&driftIDColumn, "id-column", "", "exact identifier column name (overrides candidates)")
	driftCmd.Flags().StringSliceVar(&driftIDCandidates, "id-candidates", nil, "identifier candidate columns in priority order (default from config)")
	driftCmd.Flags().StringSliceVar(&driftKeys, "keys", nil, "duplicate audit key columns (default: identifier column, else whole row)")
	driftCmd.Flags().StringVar(&driftFormat, "format", "", "output format: markdown, json, or yaml (default from config)")
	driftCmd.Flags().StringVar(&driftOutput, "output", "", "write report to file (default: stdout)")
	driftCmd.Flags().IntVar(&driftConcurrency, "concurrency", 4, "max payloads to ingest concurrently")
	rootCmd.AddCommand(driftCmd)
}
