package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var (
		file       string
		jsonOutput bool
		vocabulary bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, described, err := buildIndex(cmd.Context(), opts, file)
			if err != nil {
				return err
			}
			stats := idx.Stats()
			out := cmd.OutOrStdout()

			if jsonOutput {
				payload := map[string]any{
					"source": described,
					"stats":  stats,
				}
				if vocabulary {
					payload["vocabulary"] = idx.Vocabulary()
				}
				return json.NewEncoder(out).Encode(payload)
			}

			fmt.Fprintf(out, "Source:    %s\n", described)
			fmt.Fprintf(out, "Documents: %d\n", stats.Documents)
			fmt.Fprintf(out, "Terms:     %d\n", stats.Terms)
			fmt.Fprintf(out, "Postings:  %d\n", stats.Postings)
			if vocabulary {
				fmt.Fprintln(out)
				for _, entry := range idx.Entries() {
					fmt.Fprintf(out, "%-24s %d\n", entry.Term, len(entry.Postings))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document file, one document per line")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&vocabulary, "vocabulary", false, "List every term with its posting count")
	return cmd
}
