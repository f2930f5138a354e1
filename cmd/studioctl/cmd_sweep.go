package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kuitang/plextera-e2e/internal/cleanup"
	"github.com/kuitang/plextera-e2e/internal/ledger"
)

var (
	sweepLedgerPath string
	sweepDryRun     bool
)

func init() {
	sweepCmd.Flags().StringVar(&sweepLedgerPath, "ledger", "", "ledger file (overrides PLEXTERA_LEDGER_PATH)")
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "list pending resources without deleting them")
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete resources earlier runs could not clean up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		defer c.close()

		path := sweepLedgerPath
		if path == "" {
			path = c.cfg.LedgerPath
		}
		l, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer l.Close()

		out := cmd.OutOrStdout()
		if sweepDryRun {
			pending, err := l.Pending(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range pending {
				fmt.Fprintf(out, "%s\trole=%s\ttest=%s\t%s\n", r.Key(), r.Role, r.Test, r.LastError)
			}
			fmt.Fprintf(out, "%d pending\n", len(pending))
			return nil
		}

		report, err := cleanup.Sweep(cmd.Context(), l, c.deleter())
		if err != nil {
			return err
		}
		for _, key := range report.Deleted {
			fmt.Fprintf(out, "deleted\t%s\n", key)
		}
		failed := make([]string, 0, len(report.Failed))
		for key := range report.Failed {
			failed = append(failed, key)
		}
		sort.Strings(failed)
		for _, key := range failed {
			fmt.Fprintf(out, "failed\t%s\t%v\n", key, report.Failed[key])
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d resources could not be deleted", len(failed))
		}
		return nil
	},
}
