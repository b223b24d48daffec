package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dataqa/internal/drift"
	"github.com/sells-group/dataqa/internal/identify"
	"github.com/sells-group/dataqa/internal/session"
	"github.com/sells-group/dataqa/internal/store"
)

var snapshotConcurrency int

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage stored drift baselines",
	Long:  "Commands for saving, listing, and deleting named table-profile baselines used by drift comparisons.",
}

// -- snapshot save --

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <name> <files...>",
	Short: "Profile files and store them as a named baseline",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("snapshot"); err != nil {
			return err
		}

		ctx := cmd.Context()
		name, paths := args[0], args[1:]

		results, err := ingestPaths(ctx, paths, snapshotConcurrency)
		if err != nil {
			return err
		}

		// The session only merges here: repeated table names keep the
		// last decoded version, same as a check run would see.
		sess := session.New(identify.FixedCandidates(), nil)
		for _, res := range results {
			sess.AddResult(res)
		}
		tables := sess.Tables()

		profiles := make([]drift.TableProfile, 0, len(tables))
		for _, t := range tables {
			profiles = append(profiles, drift.Profile(t))
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := st.SaveSnapshot(ctx, name, profiles)
		if err != nil {
			return err
		}

		zap.L().Info("baseline saved",
			zap.String("name", snap.Name),
			zap.String("id", snap.ID),
			zap.Int("tables", len(snap.Tables)),
		)
		fmt.Printf("Saved baseline %q with %d table(s)\n", snap.Name, len(snap.Tables))
		return nil
	},
}

// -- snapshot list --

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored baselines, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("snapshot"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snaps, err := st.ListSnapshots(ctx)
		if err != nil {
			return err
		}

		if len(snaps) == 0 {
			fmt.Fprintln(os.Stderr, "No baselines found.")
			return nil
		}

		formatSnapshotList(os.Stdout, snaps)
		return nil
	},
}

// -- snapshot delete --

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete all baselines stored under a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("snapshot"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.DeleteSnapshots(ctx, args[0])
		if err != nil {
			return err
		}

		if n == 0 {
			fmt.Fprintln(os.Stderr, "No baselines matched.")
			return nil
		}
		fmt.Printf("Deleted %d baseline(s) named %q\n", n, args[0])
		return nil
	},
}

func init() {
	snapshotSaveCmd.Flags().IntVar(&snapshotConcurrency, "concurrency", 4, "max payloads to ingest concurrently")

	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// openStore opens the configured snapshot store and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Snapshot.Driver, cfg.Snapshot.DatabaseURL)
}

// formatSnapshotList writes a tabular list of baselines to w.
func formatSnapshotList(out io.Writer, snaps []store.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTABLES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------")

	for _, s := range snaps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			truncateID(s.ID),
			s.Name,
			len(s.Tables),
			s.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
