package di

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// TracerName is the instrumentation name of the engine's spans.
const TracerName = "github.com/sghaida/odigraph/di"

// DefaultParallelism bounds concurrently running component-tree builds.
const DefaultParallelism = 4

// ErrNilInput is returned when a Session is created without a universe,
// catalog or hierarchy.
var ErrNilInput = errors.New("di: nil universe, catalog or hierarchy")

// Session is an immutable resolution snapshot: a universe, a sealed catalog
// and a component hierarchy. Builds on one Session may run concurrently.
type Session struct {
	universe *Universe
	catalog  *Catalog
	comps    *Hierarchy

	maxDepth    int
	parallelism int
	log         *log.Logger
	tracer      trace.Tracer

	invalid []Diagnostic
}

// Option configures a Session.
type Option func(*Session)

// WithMaxDepth bounds the resolution stack of every build.
func WithMaxDepth(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithParallelism bounds the number of component trees built at once.
func WithParallelism(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithLogger sets the debug logger. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTracer sets the tracer used for build spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewSession seals c and validates the declarations of the snapshot.
// Declaration problems do not fail NewSession; they are reported by every
// Build and by Validate.
func NewSession(u *Universe, c *Catalog, h *Hierarchy, opts ...Option) (*Session, error) {
	if u == nil || c == nil || h == nil {
		return nil, ErrNilInput
	}
	s := &Session{
		universe:    u,
		catalog:     c,
		comps:       h,
		maxDepth:    DefaultMaxDepth,
		parallelism: DefaultParallelism,
		log:         log.New(io.Discard),
		tracer:      otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	c.seal()
	s.invalid = s.validate()
	return s, nil
}

func (s *Session) validate() []Diagnostic {
	out := s.universe.Validate()
	for _, p := range s.catalog.Producers() {
		if p.Component != "" && !s.comps.Has(p.Component) {
			out = append(out, Diagnostic{Kind: UnknownComponent, Component: p.Component, Producer: p.ID})
		}
	}
	return dedupeDiagnostics(out)
}

// Validate returns the declaration problems of the snapshot.
func (s *Session) Validate() []Diagnostic { return append([]Diagnostic(nil), s.invalid...) }

// Universe returns the session's type universe.
func (s *Session) Universe() *Universe { return s.universe }

// Catalog returns the session's sealed catalog.
func (s *Session) Catalog() *Catalog { return s.catalog }

// Hierarchy returns the session's component hierarchy.
func (s *Session) Hierarchy() *Hierarchy { return s.comps }

// Result is the outcome of one Build.
type Result struct {
	ID uuid.UUID
	// Graphs holds one graph per request, in request order. It is nil
	// whenever Diagnostics is not empty.
	Graphs      []*Graph
	Diagnostics []Diagnostic
}

// Err returns a *BuildError when the build produced diagnostics.
func (r *Result) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	return &BuildError{Diagnostics: append([]Diagnostic(nil), r.Diagnostics...)}
}

// Build resolves reqs.
//
// Requests are grouped by the root of their component's tree; each group is
// built by its own Builder and groups run concurrently. Within a group
// requests share nodes. The returned error is the context's error if ctx is
// done before every group ran, otherwise Result.Err().
func (s *Session) Build(ctx context.Context, reqs ...Request) (*Result, error) {
	res := &Result{ID: uuid.New()}
	ctx, span := s.tracer.Start(ctx, "di.Build", trace.WithAttributes(
		attribute.String("odigraph.session", res.ID.String()),
		attribute.Int("odigraph.requests", len(reqs)),
	))
	defer span.End()
	s.log.Debug("build started", "session", res.ID, "requests", len(reqs))

	var (
		order  []string
		groups = map[string][]int{}
	)
	for i, r := range reqs {
		root := s.comps.Root(r.Component)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	graphs := make([]*Graph, len(reqs))
	diags := make([][]Diagnostic, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, root := range order {
		idx := groups[root]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, gspan := s.tracer.Start(gctx, "di.BuildTree", trace.WithAttributes(
				attribute.String("odigraph.root", root),
				attribute.Int("odigraph.requests", len(idx)),
			))
			defer gspan.End()
			s.log.Debug("building component tree", "session", res.ID, "root", root, "requests", len(idx))

			b := NewBuilder(s.catalog, s.comps, WithBuilderMaxDepth(s.maxDepth), WithBuilderLogger(s.log))
			failed := 0
			for _, i := range idx {
				graphs[i], diags[i] = b.Build(reqs[i])
				if len(diags[i]) > 0 {
					failed++
				}
			}
			gspan.SetAttributes(attribute.Int("odigraph.failed", failed))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	all := append([]Diagnostic(nil), s.invalid...)
	for _, d := range diags {
		all = append(all, d...)
	}
	res.Diagnostics = dedupeDiagnostics(all)
	if len(res.Diagnostics) == 0 {
		res.Graphs = graphs
	}
	s.log.Debug("build finished", "session", res.ID, "graphs", len(res.Graphs), "diagnostics", len(res.Diagnostics))

	if err := res.Err(); err != nil {
		span.SetStatus(codes.Error, "resolution failed")
		span.SetAttributes(attribute.StringSlice("odigraph.kinds", kindNamesOf(res.Diagnostics)))
		return res, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func kindNamesOf(ds []Diagnostic) []string {
	set := map[string]struct{}{}
	for _, d := range ds {
		set[d.Kind.String()] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
