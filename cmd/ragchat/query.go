package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd(c *cli) *cobra.Command {
	var (
		docs    []string
		k       int
		results bool
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Print the assembled context for a query over the given documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(c.cfg, c.log)
			if err != nil {
				return err
			}
			if _, err := a.ingestAll(cmd.Context(), c.log, docs); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if results {
				hits, err := a.svc.Search(cmd.Context(), args[0], k)
				if err != nil {
					return err
				}
				for i, h := range hits {
					fmt.Fprintf(out, "%d. %.4f  %s #%d\n", i+1, h.Similarity, h.File, h.Index)
				}
				return nil
			}
			text, err := a.svc.Context(cmd.Context(), args[0], k)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&docs, "docs", "d", nil, "Documents (or glob patterns) to ingest before querying")
	cmd.Flags().IntVarP(&k, "k", "k", 3, "Number of chunks to retrieve")
	cmd.Flags().BoolVar(&results, "results", false, "List ranked chunks instead of the assembled context")
	return cmd
}
