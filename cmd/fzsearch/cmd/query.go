package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/query"
)

func newQueryCmd(opts *globalOptions) *cobra.Command {
	var (
		file       string
		maxErrors  int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: "Print the documents matching a query",
		Long: `Build the index and print every matching document, one per line.

A single word runs a one-word query, which lists a document once per
occurrence of each matching term. Several words run a free-text query,
which lists each matching document once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := buildIndex(cmd.Context(), opts, file)
			if err != nil {
				return err
			}
			engine := query.New(idx, maxErrors)
			raw := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if jsonOutput {
				result, err := engine.Execute(cmd.Context(), parser.Parse(raw))
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			lines, err := engine.Handle(raw)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(out, strings.TrimRight(line, "\r\n"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document file, one document per line (.gz and .zst are decompressed)")
	cmd.Flags().IntVarP(&maxErrors, "max-errors", "e", 0, "Edit budget per query term")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full result as JSON")
	return cmd
}
