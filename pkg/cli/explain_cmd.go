package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newExplainCmd(root *rootFlags) *cobra.Command {
	var (
		table      string
		metrics    []string
		dimensions []string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show the plan for a metric query without running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := parseQueryRequest(table, metrics, dimensions)
			if err != nil {
				return err
			}
			service, cleanup, err := buildService(root)
			if err != nil {
				return err
			}
			defer cleanup()

			explanation, err := service.Explain(req)
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(explanation)
			}

			fmt.Printf("Strategy: %s\n\n", explanation.Strategy)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONNECTION\tTABLE\tSQL")
			for _, q := range explanation.Queries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", q.Connection, q.Table, q.SQL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "default table for metrics without one")
	cmd.Flags().StringArrayVar(&metrics, "metric", nil, "metric to compute (repeatable)")
	cmd.Flags().StringArrayVar(&dimensions, "dimension", nil, "dimension as table.name[:granularity] (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	return cmd
}
