package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/bitap"
)

func newMatchCmd() *cobra.Command {
	var maxErrors int

	cmd := &cobra.Command{
		Use:   "match <haystack> <needle>",
		Short: "Run the bitap matcher on two strings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := bitap.Search(args[0], args[1], maxErrors)
			if !m.Found() {
				fmt.Fprintln(cmd.OutOrStdout(), "no match")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q errors=%d\n", m.Substring, m.Errors)
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxErrors, "max-errors", "e", 0, "Edit budget")
	return cmd
}
