package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sghaida/odigraph/internal/watch"
)

func newCheckCmd(a *app) *cobra.Command {
	var watchMode bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve the manifest and report diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			defer a.shutdown(ctx)
			if watchMode {
				return a.watch(ctx, cmd)
			}
			return a.check(ctx, cmd)
		},
	}
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "re-check whenever the manifest changes")
	cmd.Flags().Duration("debounce", 0, "quiet period before a re-check in watch mode (default 300ms)")
	return cmd
}

func (a *app) check(ctx context.Context, cmd *cobra.Command) error {
	_, res, err := a.build(ctx)
	if err != nil {
		return a.report(cmd, res, err)
	}
	renderOK(cmd.OutOrStdout(), a.cfg.Manifest, res)
	return nil
}

// watch checks once, then again after every manifest change, until ctx is
// cancelled. Failed checks are printed and do not end the loop.
func (a *app) watch(ctx context.Context, cmd *cobra.Command) error {
	w, err := watch.New(watch.Config{
		Path:     a.cfg.Manifest,
		Debounce: a.cfg.Watch.Debounce,
		OnError: func(err error) {
			a.log.Warn("watch error", "err", err)
		},
	})
	if err != nil {
		return err
	}
	a.log.Info("watching", "manifest", a.cfg.Manifest, "debounce", a.cfg.Watch.Debounce)
	return w.Run(ctx, func(ctx context.Context) error {
		return a.check(ctx, cmd)
	}, func(err error) {
		a.log.Debug("check failed", "err", err)
	})
}
