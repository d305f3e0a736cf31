package di

import "sort"

// Component is a named scope boundary. A component satisfies its own ID as a
// scope, its declared Scopes and every scope of its ancestors.
type Component struct {
	ID     string
	Parent string
	Scopes []string
}

// Hierarchy is a validated, immutable forest of components.
type Hierarchy struct {
	comps    map[string]Component
	order    []string
	ancestry map[string][]string
}

// NewHierarchy validates cs and builds the hierarchy.
//
// Unknown parents fail with UnknownComponent, repeated IDs with
// DuplicateDeclaration and parent cycles with CircularDependency.
func NewHierarchy(cs ...Component) (*Hierarchy, error) {
	h := &Hierarchy{
		comps:    make(map[string]Component, len(cs)),
		ancestry: make(map[string][]string, len(cs)),
	}
	for _, c := range cs {
		if c.ID == "" {
			return nil, Diagnostic{Kind: UnknownComponent, Detail: "empty component id"}
		}
		if _, dup := h.comps[c.ID]; dup {
			return nil, Diagnostic{Kind: DuplicateDeclaration, Component: c.ID}
		}
		c.Scopes = append([]string(nil), c.Scopes...)
		h.comps[c.ID] = c
		h.order = append(h.order, c.ID)
	}

	var diags []Diagnostic
	for _, id := range h.order {
		c := h.comps[id]
		if c.Parent != "" {
			if _, ok := h.comps[c.Parent]; !ok {
				diags = append(diags, Diagnostic{Kind: UnknownComponent, Component: c.Parent, Detail: "parent of " + id})
			}
		}
	}
	if len(diags) > 0 {
		return nil, &BuildError{Diagnostics: diags}
	}

	for _, id := range h.order {
		chain, cyc := h.walk(id)
		if cyc != nil {
			return nil, Diagnostic{Kind: CircularDependency, Component: id, Path: cyc}
		}
		h.ancestry[id] = chain
	}
	return h, nil
}

// MustHierarchy is NewHierarchy that panics on error.
func MustHierarchy(cs ...Component) *Hierarchy {
	h, err := NewHierarchy(cs...)
	if err != nil {
		panic(err)
	}
	return h
}

// walk returns the root-first ancestry of id, or the cycle it runs into.
func (h *Hierarchy) walk(id string) ([]string, []string) {
	var chain []string
	pos := map[string]int{}
	for cur := id; cur != ""; cur = h.comps[cur].Parent {
		if i, seen := pos[cur]; seen {
			cyc := append([]string(nil), chain[i:]...)
			return nil, append(cyc, cur)
		}
		pos[cur] = len(chain)
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Has reports whether id is a declared component.
func (h *Hierarchy) Has(id string) bool {
	_, ok := h.comps[id]
	return ok
}

// Get returns the component declared as id.
func (h *Hierarchy) Get(id string) (Component, bool) {
	c, ok := h.comps[id]
	return c, ok
}

// IDs returns the component IDs in declaration order.
func (h *Hierarchy) IDs() []string { return append([]string(nil), h.order...) }

// Ancestry returns id's chain from the root down to id itself.
func (h *Hierarchy) Ancestry(id string) []string {
	return append([]string(nil), h.ancestry[id]...)
}

// Root returns the root of id's tree, or "" for an unknown component.
func (h *Hierarchy) Root(id string) string {
	a := h.ancestry[id]
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

// ReachableScopes returns the sorted scope set id satisfies.
func (h *Hierarchy) ReachableScopes(id string) []string {
	set := map[string]struct{}{}
	for _, a := range h.ancestry[id] {
		set[a] = struct{}{}
		for _, s := range h.comps[a].Scopes {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Reaches reports whether scope is in id's reachable scope set.
func (h *Hierarchy) Reaches(id, scope string) bool {
	_, ok := h.Owner(id, scope)
	return ok
}

// Owner returns the nearest ancestor-or-self of id providing scope.
func (h *Hierarchy) Owner(id, scope string) (string, bool) {
	a := h.ancestry[id]
	for i := len(a) - 1; i >= 0; i-- {
		c := h.comps[a[i]]
		if c.ID == scope {
			return c.ID, true
		}
		for _, s := range c.Scopes {
			if s == scope {
				return c.ID, true
			}
		}
	}
	return "", false
}
