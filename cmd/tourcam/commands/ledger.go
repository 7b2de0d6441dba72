package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bowerhall/tourcam/internal/ledger"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the local publish ledger",
	}

	cmd.AddCommand(ledgerHistoryCmd(), ledgerDuplicatesCmd(), ledgerPruneCmd())
	return cmd
}

func withLedger(fn func(*ledger.Store) error) error {
	s := &services{}
	if err := s.openLedger(); err != nil {
		return err
	}
	defer s.Close()
	return fn(s.ledger)
}

func ledgerHistoryCmd() *cobra.Command {
	var listing string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show publish attempts for a listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(func(l *ledger.Store) error {
				attempts, err := l.ForListing(listing)
				if err != nil {
					return err
				}
				printAttempts(cmd.OutOrStdout(), attempts)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&listing, "listing", "", "listing identifier (required)")
	cmd.MarkFlagRequired("listing")
	return cmd
}

func ledgerDuplicatesCmd() *cobra.Command {
	var listing string

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List publishes that followed a failed attempt and may have left a duplicate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(func(l *ledger.Store) error {
				attempts, err := l.PossibleDuplicates(listing)
				if err != nil {
					return err
				}
				if len(attempts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no possible duplicates")
					return nil
				}
				printAttempts(cmd.OutOrStdout(), attempts)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&listing, "listing", "", "limit to one listing")
	return cmd
}

func ledgerPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete ledger entries older than LEDGER_RETENTION_DAYS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(func(l *ledger.Store) error {
				n, err := l.Prune(time.Now().Add(-retention()))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", n)
				return nil
			})
		},
	}
}

func printAttempts(out io.Writer, attempts []ledger.Attempt) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tLISTING\tARTIFACT\tATTEMPT\tSTATUS\tDUPLICATE?\tDETAIL")
	for _, a := range attempts {
		detail := a.URL
		if a.Status == ledger.StatusFailed {
			detail = a.Error
		}
		dup := ""
		if a.DuplicateRisk {
			dup = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			a.CreatedAt.Format("2006-01-02 15:04:05"), a.ListingID, shortID(a.ArtifactID), a.Number, a.Status, dup, detail)
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
