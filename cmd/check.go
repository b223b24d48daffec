package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dataqa/internal/identify"
	"github.com/sells-group/dataqa/internal/ingest"
	"github.com/sells-group/dataqa/internal/report"
	"github.com/sells-group/dataqa/internal/session"
)

var (
	checkIDColumn     string
	checkIDCandidates []string
	checkKeys         []string
	checkFormat       string
	checkOutput       string
	checkConcurrency  int
)

var checkCmd = &cobra.Command{
	Use:   "check <files...>",
	Short: "Audit quality of tabular files and archives",
	Long: `Ingests every argument (a tabular file, an XLSX workbook, or a ZIP
archive of such files), audits each resulting table for duplicate keys,
reconciles identifier sets across tables, and prints one run report.

Malformed archive entries never abort the run; they surface in the
report's diagnostics section.

Examples:
  # Audit one archive with the configured identifier candidates
  dataqa check permits_2024.zip

  # Machine-readable output, explicit identifier column
  dataqa check --format json --id-column "Permit Number" a.csv b.csv

  # Duplicate audit on a composite key
  dataqa check --keys "Permit Number,Address" permits.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		results, err := ingestPaths(ctx, args, checkConcurrency)
		if err != nil {
			return err
		}

		sess := session.New(identifierStrategy(checkIDColumn, checkIDCandidates), checkKeys)
		for _, res := range results {
			sess.AddResult(res)
		}

		rep, err := sess.Run()
		if err != nil {
			return err
		}

		return writeRunReport(rep, checkFormat, checkOutput)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkIDColumn, "id-column", "", "exact identifier column name (overrides candidates)")
	checkCmd.Flags().StringSliceVar(&checkIDCandidates, "id-candidates", nil, "identifier candidate columns in priority order (default from config)")
	checkCmd.Flags().StringSliceVar(&checkKeys, "keys", nil, "duplicate audit key columns (default: identifier column, else whole row)")
	checkCmd.Flags().StringVar(&checkFormat, "format", "", "output format: markdown, json, or yaml (default from config)")
	checkCmd.Flags().StringVar(&checkOutput, "output", "", "write report to file (default: stdout)")
	checkCmd.Flags().IntVar(&checkConcurrency, "concurrency", 4, "max payloads to ingest concurrently")
	rootCmd.AddCommand(checkCmd)
}

// identifierStrategy builds the resolution strategy from flags, falling
// back to config. An explicit column beats a candidate list.
func identifierStrategy(idColumn string, idCandidates []string) identify.Strategy {
	if idColumn != "" {
		return identify.NamedColumn(idColumn)
	}
	if len(idCandidates) > 0 {
		return identify.FixedCandidates(idCandidates...)
	}
	if cfg.Identifier.Column != "" {
		return identify.NamedColumn(cfg.Identifier.Column)
	}
	return identify.FixedCandidates(cfg.Identifier.Candidates...)
}

// ingestPaths reads and ingests payload files concurrently, preserving
// argument order in the returned results. A payload is named after its
// file's base name.
func ingestPaths(ctx context.Context, paths []string, concurrency int) ([]*ingest.Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]*ingest.Result, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read payload %s", path)
			}
			results[i] = ingest.Payload(filepath.Base(path), data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// writeRunReport renders rep and writes it to the output file or stdout.
// An empty format falls back to the configured default.
func writeRunReport(rep *session.RunReport, format, output string) error {
	if format == "" {
		format = cfg.Report.Format
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}

	rendered, err := report.Render(rep, f)
	if err != nil {
		return err
	}

	if output != "" {
		if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
			return eris.Wrap(err, "write report file")
		}
		zap.L().Info("report written", zap.String("path", output))
		return nil
	}

	_, err = os.Stdout.WriteString(rendered)
	return err
}
