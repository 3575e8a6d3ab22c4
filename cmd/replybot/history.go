package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/replybot/internal/ledger"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently handled messages from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			store, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no ledger configured (set ledger.path or REPLYBOT_LEDGER)")
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print entries as JSON")
	return cmd
}

func printHistory(out io.Writer, entries []ledger.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLED\tMESSAGE\tATTEMPT\tTO\tSUBJECT\tSENT\tARCHIVED\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\t%t\t%s\n",
			e.HandledAt.Local().Format(time.DateTime),
			e.MessageID,
			e.Attempt,
			e.To,
			e.Subject,
			e.Sent,
			e.Archived,
			e.Error,
		)
	}
	return w.Flush()
}
