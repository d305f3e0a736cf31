package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sghaida/odigraph/internal/manifest"
)

func newConvertCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Rewrite the manifest in another format",
		Long: `Rewrite the manifest in another format (yaml, json or toml).

The manifest is decoded strictly and version-checked first, so convert also
normalizes field order and drops comments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.shutdown(cmd.Context())

			m, err := manifest.Load(a.cfg.Manifest)
			if err != nil {
				return &exitError{Code: exitInput, Err: err}
			}
			raw, err := manifest.Encode(m, manifest.Format(to))
			if err != nil {
				return &exitError{Code: exitInput, Err: err}
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", string(manifest.FormatYAML), "target format: yaml, json or toml")
	cmd.Flags().StringP("out", "o", "-", "output file, - for stdout")
	return cmd
}
