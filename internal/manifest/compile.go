package manifest

import (
	"context"
	"errors"

	"github.com/sghaida/odigraph/di"
)

// DefaultComponent is used when a manifest declares no components.
const DefaultComponent = "app"

// Project is a compiled manifest: engine input ready for a Session.
type Project struct {
	Manifest  *Manifest
	Universe  *di.Universe
	Catalog   *di.Catalog
	Hierarchy *di.Hierarchy
	Requests  []di.Request
}

// Compile converts m into engine data. Every malformed declaration is
// reported, each as an *Error joined into the returned error; resolution
// problems are left to the build.
func Compile(m *Manifest, opts ...di.UniverseOption) (*Project, error) {
	var errs []error
	fail := func(w string, err error) {
		errs = append(errs, &Error{Path: m.Path, Where: w, Err: err})
	}

	u := di.NewUniverse(opts...)
	for i, t := range m.Types {
		d, err := classifier(t)
		if err == nil {
			err = u.Declare(d)
		}
		if err != nil {
			fail(where("types", i, t.Name), err)
		}
	}

	comps := make([]di.Component, 0, len(m.Components))
	for _, c := range m.Components {
		comps = append(comps, di.Component{ID: c.ID, Parent: c.Parent, Scopes: c.Scopes})
	}
	if len(comps) == 0 {
		comps = append(comps, di.Component{ID: DefaultComponent})
	}
	h, err := di.NewHierarchy(comps...)
	if err != nil {
		fail("components", err)
	}

	c := di.NewCatalog(u)
	for i, a := range m.Aggregates {
		kind, err := di.ParseContributionKind(a.Kind)
		if err != nil {
			fail(where("aggregates", i, a.Type), err)
			continue
		}
		k, err := u.ParseKey(a.Type)
		if err == nil {
			err = c.DeclareAggregate(k, kind)
		}
		if err != nil {
			fail(where("aggregates", i, a.Type), err)
		}
	}
	for i, pd := range m.Producers {
		p, err := producer(u, pd)
		if err == nil {
			err = c.Register(p)
		}
		if err != nil {
			fail(where("producers", i, pd.ID), err)
		}
	}

	reqs := make([]di.Request, 0, len(m.Requests))
	for i, r := range m.Requests {
		k, err := u.ParseKey(r.Type)
		if err != nil {
			fail(where("requests", i, r.Name), err)
			continue
		}
		comp := r.Component
		if comp == "" {
			comp = comps[0].ID
		}
		name := r.Name
		if name == "" {
			name = r.Type
		}
		reqs = append(reqs, di.Request{Name: name, Key: k, Component: comp, Optional: r.Optional})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Project{Manifest: m, Universe: u, Catalog: c, Hierarchy: h, Requests: reqs}, nil
}

// Session seals the project's catalog into a Session.
func (p *Project) Session(opts ...di.Option) (*di.Session, error) {
	return di.NewSession(p.Universe, p.Catalog, p.Hierarchy, opts...)
}

// Build runs every manifest request in one session.
func (p *Project) Build(ctx context.Context, opts ...di.Option) (*di.Result, error) {
	s, err := p.Session(opts...)
	if err != nil {
		return nil, err
	}
	return s.Build(ctx, p.Requests...)
}

func classifier(t TypeDecl) (di.ClassifierDecl, error) {
	d := di.ClassifierDecl{Name: t.Name, Universal: t.Universal}
	params, err := typeParams(t.Params)
	if err != nil {
		return d, err
	}
	d.TypeParams = params
	for _, s := range t.Supertypes {
		e, err := di.ParseTypeExpr(s)
		if err != nil {
			return d, err
		}
		d.Supertypes = append(d.Supertypes, e)
	}
	if t.Alias != "" {
		e, err := di.ParseTypeExpr(t.Alias)
		if err != nil {
			return d, err
		}
		d.AliasOf = &e
	}
	return d, nil
}

func typeParams(decls []TypeParamDecl) ([]di.TypeParam, error) {
	var out []di.TypeParam
	for _, tp := range decls {
		p := di.TypeParam{Name: tp.Name}
		for _, b := range tp.Bounds {
			e, err := di.ParseTypeExpr(b)
			if err != nil {
				return nil, err
			}
			p.Bounds = append(p.Bounds, e)
		}
		out = append(out, p)
	}
	return out, nil
}

func producer(u *di.Universe, pd ProducerDecl) (*di.Producer, error) {
	p := &di.Producer{ID: pd.ID, Scope: pd.Scope, Component: pd.Component}
	var err error
	if p.Kind, err = di.ParseProducerKind(pd.Kind); err != nil {
		return nil, err
	}
	if p.Origin, err = di.ParseOrigin(pd.Origin); err != nil {
		return nil, err
	}
	if p.Context, err = di.ParseExecContext(pd.Context); err != nil {
		return nil, err
	}
	if p.Body, err = di.ParseExecContext(pd.Body); err != nil {
		return nil, err
	}
	if p.Policy, err = di.ParseOverridePolicy(pd.Policy); err != nil {
		return nil, err
	}

	tps, err := typeParams(pd.TypeParams)
	if err != nil {
		return nil, err
	}
	if p.TypeParams, err = u.TypeParams(tps...); err != nil {
		return nil, err
	}
	pattern := func(s string) (di.Key, error) {
		e, err := di.ParseTypeExpr(s)
		if err != nil {
			return di.Key{}, err
		}
		return u.PatternOf(e, p.TypeParams...)
	}
	if p.Key, err = pattern(pd.Type); err != nil {
		return nil, err
	}

	for _, dd := range pd.Params {
		d := di.Dependency{Name: dd.Name, Optional: dd.Optional}
		if d.Key, err = pattern(dd.Type); err != nil {
			return nil, err
		}
		if d.Edge, err = di.ParseEdgeKind(dd.Edge); err != nil {
			return nil, err
		}
		if d.Elements, err = di.ParseEdgeKind(dd.Elements); err != nil {
			return nil, err
		}
		p.Params = append(p.Params, d)
	}

	if cd := pd.Contributes; cd != nil {
		if p.Contribution.Kind, err = di.ParseContributionKind(cd.Kind); err != nil {
			return nil, err
		}
		if p.Contribution.Aggregate, err = u.ParseKey(cd.Aggregate); err != nil {
			return nil, err
		}
		p.Contribution.EntryKey = cd.Entry
	}

	meta := map[string]string{}
	if pd.Call != "" {
		meta[MetaCall] = pd.Call
	}
	if pd.Go != "" {
		meta[MetaGoType] = pd.Go
	}
	if len(meta) > 0 {
		p.Meta = meta
	}
	return p, nil
}

// Producer metadata keys set by Compile.
const (
	MetaCall   = "call"
	MetaGoType = "go"
)
