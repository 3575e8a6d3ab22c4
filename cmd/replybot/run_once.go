package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunOnceCmd(flags *rootFlags) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single responder cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			limiter, release := a.limiter()
			defer release()

			store, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			b, err := a.newBot(cmd.OutOrStdout(), limiter, store)
			if err != nil {
				return err
			}
			labelID, svc, err := b.Prepare(ctx)
			if err != nil {
				return err
			}
			res := svc.RunCycle(ctx, labelID)

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cycle %s: seen=%d replied=%d archived=%d failed=%d skipped=%d\n",
				res.CycleID, res.Seen, res.Replied, res.Archived, res.Failed, res.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the cycle result as JSON")
	return cmd
}
