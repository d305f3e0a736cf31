package main

import (
	"github.com/spf13/cobra"

	"github.com/sghaida/odigraph/internal/emit"
)

func newGenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a Go composition root",
		Long: `Generate a Go composition root from the manifest.

Nothing is written unless every request resolves. Use -o - to write to
standard output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			defer a.shutdown(ctx)

			p, res, err := a.build(ctx)
			if err != nil {
				return a.report(cmd, res, err)
			}
			src, err := emit.Generate(p.Manifest, res.Graphs, emit.Options{Package: a.cfg.Package})
			if err != nil {
				return err
			}
			if a.cfg.Out == "-" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if err := emit.WriteFile(a.cfg.Out, src); err != nil {
				return err
			}
			a.log.Info("generated", "out", a.cfg.Out, "requests", len(res.Graphs))
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "output file, - for stdout (default wiring.gen.go)")
	cmd.Flags().String("package", "", "package of the generated file (default: manifest package, then wiring)")
	return cmd
}
