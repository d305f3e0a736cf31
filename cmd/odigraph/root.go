package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sghaida/odigraph/di"
	"github.com/sghaida/odigraph/internal/config"
	"github.com/sghaida/odigraph/internal/logging"
	"github.com/sghaida/odigraph/internal/manifest"
	"github.com/sghaida/odigraph/internal/tracing"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfgFile string
	cfg     config.Config
	log     *log.Logger
	tracing *tracing.Provider
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "odigraph",
		Short: "Resolve dependency manifests and generate composition roots",
		Long: titleStyle.Render("odigraph") + mutedStyle.Render(" - compile-time dependency resolution") + `

odigraph reads a manifest of types, components, producers and requests,
picks exactly one producer for every request and validates the resulting
graph: cycles, scopes, ambiguity and execution contexts. A graph that
resolves can be explained or turned into a Go composition root.

` + mutedStyle.Render("Examples:") + `
  odigraph check -m odigraph.yaml           Resolve and report diagnostics
  odigraph check --watch                    Re-check on every save
  odigraph explain -m odigraph.yaml         Print the resolved graphs
  odigraph gen -m odigraph.yaml -o wiring.gen.go
  odigraph convert -m odigraph.yaml --to toml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./.odigraph.yaml, then ~/.config/odigraph/config.yaml)")
	pf.StringP("manifest", "m", "", "manifest file (.yaml, .yml, .json or .toml)")
	pf.Int("max-depth", 0, "maximum resolution depth (default 64)")
	pf.Int("parallelism", 0, "component trees built concurrently (default 4)")
	pf.String("log-level", "", "debug, info, warn or error (default info)")
	pf.Bool("trace", false, "record build spans")

	root.AddCommand(
		newCheckCmd(a),
		newExplainCmd(a),
		newGenCmd(a),
		newConvertCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and builds the logger and tracer.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{File: a.cfgFile, Flags: cmd.Flags()})
	if err != nil {
		return &exitError{Code: exitInput, Err: err}
	}
	a.cfg = cfg

	if a.log, err = logging.New(cmd.ErrOrStderr(), cfg.Log.Level); err != nil {
		return &exitError{Code: exitInput, Err: err}
	}
	a.tracing, err = tracing.NewProvider(tracing.Config{
		Enabled:  cfg.Trace.Enabled,
		Exporter: cfg.Trace.Exporter,
		Writer:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return &exitError{Code: exitInput, Err: err}
	}
	if cfg.File != "" {
		a.log.Debug("config loaded", "file", cfg.File)
	}
	return nil
}

// shutdown flushes spans; it is deferred by every command that builds.
func (a *app) shutdown(ctx context.Context) {
	if a.tracing == nil {
		return
	}
	if err := a.tracing.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.log.Warn("trace shutdown failed", "err", err)
	}
}

// load reads and compiles the configured manifest.
func (a *app) load() (*manifest.Project, error) {
	m, err := manifest.Load(a.cfg.Manifest)
	if err != nil {
		return nil, err
	}
	return manifest.Compile(m, di.WithAssignCacheSize(a.cfg.AssignCacheSize))
}

// build resolves every request of the configured manifest. The returned
// error is an input error when res is nil and a resolution error otherwise.
func (a *app) build(ctx context.Context) (*manifest.Project, *di.Result, error) {
	p, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	a.log.Debug("manifest loaded", "path", p.Manifest.Path, "requests", len(p.Requests), "sha256", p.Manifest.Hash)
	res, err := p.Build(ctx,
		di.WithMaxDepth(a.cfg.MaxDepth),
		di.WithParallelism(a.cfg.Parallelism),
		di.WithLogger(a.log),
		di.WithTracer(a.tracing.Tracer()),
	)
	return p, res, err
}

// report prints the outcome of a build and maps it to an exit error.
func (a *app) report(cmd *cobra.Command, res *di.Result, err error) error {
	out := cmd.OutOrStdout()
	switch {
	case err == nil:
		return nil
	case res == nil || len(res.Diagnostics) == 0:
		renderError(out, err)
		return &exitError{Code: exitInput, Err: err}
	default:
		renderDiagnostics(out, a.cfg.Manifest, res.Diagnostics)
		return &exitError{Code: exitResolution, Err: fmt.Errorf("%s: resolution failed", a.cfg.Manifest)}
	}
}
