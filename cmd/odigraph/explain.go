package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Print the resolved graph of every request",
		Long: `Print the resolved graph of every request.

Each node is listed once with its key, producer, origin, scope, execution
context and owning component; later references use its #number.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			defer a.shutdown(ctx)

			_, res, err := a.build(ctx)
			if err != nil {
				return a.report(cmd, res, err)
			}
			out := cmd.OutOrStdout()
			for i, g := range res.Graphs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				renderGraph(out, g)
			}
			return nil
		},
	}
}
