package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixture collects declarations for one test and builds sessions from them.
type fixture struct {
	u     *Universe
	c     *Catalog
	comps []Component
}

func newFixture(decls ...ClassifierDecl) *fixture {
	u := NewUniverse().MustDeclare(decls...)
	return &fixture{u: u, c: NewCatalog(u)}
}

func (f *fixture) k(s string) Key { return f.u.MustParseKey(s) }

func (f *fixture) dep(name, typ string) Dependency {
	return Dependency{Name: name, Key: f.k(typ)}
}

func (f *fixture) provide(id, typ string, deps ...Dependency) *Producer {
	p := &Producer{ID: id, Key: f.k(typ), Params: deps}
	f.c.MustRegister(p)
	return p
}

func (f *fixture) add(ps ...*Producer) *fixture {
	f.c.MustRegister(ps...)
	return f
}

func (f *fixture) component(id, parent string, scopes ...string) *fixture {
	f.comps = append(f.comps, Component{ID: id, Parent: parent, Scopes: scopes})
	return f
}

func (f *fixture) hierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	comps := f.comps
	if len(comps) == 0 {
		comps = []Component{{ID: "app"}}
	}
	h, err := NewHierarchy(comps...)
	require.NoError(t, err)
	return h
}

func (f *fixture) session(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(f.u, f.c, f.hierarchy(t), opts...)
	require.NoError(t, err)
	return s
}

func (f *fixture) builder(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(f.c, f.hierarchy(t))
}

func (f *fixture) req(typ, comp string) Request {
	return Request{Name: typ, Key: f.k(typ), Component: comp}
}

// build runs one session build and returns the result.
func (f *fixture) build(t *testing.T, reqs ...Request) *Result {
	t.Helper()
	res, _ := f.session(t).Build(context.Background(), reqs...)
	require.NotNil(t, res)
	return res
}

func kindsOf(ds []Diagnostic) []ErrorKind {
	out := make([]ErrorKind, len(ds))
	for i, d := range ds {
		out[i] = d.Kind
	}
	return out
}
