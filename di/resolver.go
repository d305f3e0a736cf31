package di

import "strconv"

// Selection is the outcome of resolving one key for one component.
type Selection struct {
	Producer *Producer
	// Key is the produced key, instantiated for generic producers.
	Key   Key
	Subst map[string]Key
	// Owner is the component that owns a scoped instance, empty otherwise.
	Owner  string
	Exact  bool
	Absent bool
}

// Resolver picks exactly one producer per (key, component).
type Resolver struct {
	catalog *Catalog
	comps   *Hierarchy
}

// NewResolver returns a resolver over a catalog and a component hierarchy.
func NewResolver(c *Catalog, h *Hierarchy) *Resolver {
	return &Resolver{catalog: c, comps: h}
}

var originAmbiguity = [...]ErrorKind{
	OriginExplicit:         MultipleExplicitBindings,
	OriginImplicitInternal: MultipleInternalImplicitBindings,
	OriginImplicitExternal: MultipleExternalImplicitBindings,
}

// Resolve selects the producer for k requested from comp.
//
// The exact tier (produced key equal to k) is consulted first; only if it is
// empty are assignable producers considered. Within the surviving tier
// explicit producers win, then implicit internal ones, then implicit
// external ones; more than one candidate at the deciding origin is an
// ambiguity. With no candidate at all an optional or nullable request
// resolves to absent. A scoped winner must be reachable from comp.
func (r *Resolver) Resolve(k Key, comp string, optional bool) (Selection, error) {
	if !r.comps.Has(comp) {
		return Selection{}, Diagnostic{Kind: UnknownComponent, Component: comp, Key: k}
	}

	var (
		sel   Selection
		found bool
		err   error
	)
	if exact := r.catalog.exact(k); len(exact) > 0 {
		cands := make([]candidate, len(exact))
		for i, p := range exact {
			cands[i] = candidate{producer: p, key: p.Key}
		}
		sel, found, err = pickByOrigin(cands, k, comp)
		sel.Exact = true
	} else {
		sel, found, err = pickByOrigin(r.catalog.assignable(k), k, comp)
	}
	if err != nil {
		return Selection{}, err
	}
	if !found {
		if optional || k.nullable {
			return Selection{Absent: true, Key: k}, nil
		}
		return Selection{}, Diagnostic{Kind: NoBindingFound, Key: k, Component: comp}
	}

	if scope := sel.Producer.Scope; scope != "" {
		owner, ok := r.comps.Owner(comp, scope)
		if !ok {
			return Selection{}, Diagnostic{
				Kind:      ScopeMismatch,
				Key:       k,
				Component: comp,
				Producer:  sel.Producer.ID,
				Detail:    "scope " + strconv.Quote(scope) + " is not reachable",
			}
		}
		sel.Owner = owner
	}
	return sel, nil
}

func pickByOrigin(cands []candidate, k Key, comp string) (Selection, bool, error) {
	for _, origin := range []Origin{OriginExplicit, OriginImplicitInternal, OriginImplicitExternal} {
		var tier []candidate
		for _, c := range cands {
			if c.producer.Origin == origin {
				tier = append(tier, c)
			}
		}
		switch len(tier) {
		case 0:
			continue
		case 1:
			return Selection{Producer: tier[0].producer, Key: tier[0].key, Subst: tier[0].subst}, true, nil
		default:
			ps := make([]*Producer, len(tier))
			for i, c := range tier {
				ps[i] = c.producer
			}
			return Selection{}, false, Diagnostic{
				Kind:       originAmbiguity[origin],
				Key:        k,
				Component:  comp,
				Candidates: sortedIDs(ps),
			}
		}
	}
	return Selection{}, false, nil
}
