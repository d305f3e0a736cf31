package di

import (
	"errors"
	"sort"
	"strconv"
)

// AggregateEntry is one winning contribution of a map or set aggregate.
// ID is the map key for maps and the element identity for sets.
type AggregateEntry struct {
	ID       string
	Producer *Producer
}

// Aggregator merges aggregate contributions along a component's ancestry.
type Aggregator struct {
	catalog *Catalog
	comps   *Hierarchy
}

// NewAggregator returns an aggregator over a catalog and a component hierarchy.
func NewAggregator(c *Catalog, h *Hierarchy) *Aggregator {
	return &Aggregator{catalog: c, comps: h}
}

// elementID is the entry identity of a contribution.
func elementID(p *Producer) string {
	if p.Contribution.EntryKey != "" {
		return p.Contribution.EntryKey
	}
	return p.ID
}

// Aggregate merges the contributions to k visible from comp.
//
// Root-level contributions come first, then each component of the ancestry
// from the root down to comp. Every contribution is merged with its own
// policy: PolicyFail reports an entry that is already present, PolicyOverride
// replaces it in place, PolicyDrop keeps the earlier one. Entries keep the
// position of their first insertion.
func (a *Aggregator) Aggregate(k Key, comp string) (ContributionKind, []AggregateEntry, []Diagnostic) {
	kind, ok := a.catalog.IsAggregate(k)
	if !ok {
		return ContributeSingle, nil, []Diagnostic{{Kind: NoBindingFound, Key: k, Component: comp, Detail: "not an aggregate"}}
	}
	if !a.comps.Has(comp) {
		return kind, nil, []Diagnostic{{Kind: UnknownComponent, Component: comp, Key: k}}
	}

	byLevel := map[string][]*Producer{}
	for _, p := range a.catalog.Contributions(k) {
		byLevel[p.Component] = append(byLevel[p.Component], p)
	}
	levels := append([]string{""}, a.comps.Ancestry(comp)...)

	var (
		entries []AggregateEntry
		pos     = map[string]int{}
		diags   []Diagnostic
	)
	for _, level := range levels {
		for _, p := range byLevel[level] {
			id := elementID(p)
			i, present := pos[id]
			var existing *Producer
			if present {
				existing = entries[i].Producer
			}
			kept, took, err := ApplyPolicy(existing, present, p, p.Policy)
			if errors.Is(err, ErrDuplicateEntry) {
				diags = append(diags, Diagnostic{
					Kind:       DuplicateMultiBindingEntry,
					Key:        k,
					Component:  comp,
					Producer:   p.ID,
					Candidates: sortedIDs([]*Producer{existing, p}),
					Detail:     "entry " + strconv.Quote(id),
				})
				continue
			}
			if !took {
				continue
			}
			if present {
				entries[i].Producer = kept
				continue
			}
			pos[id] = len(entries)
			entries = append(entries, AggregateEntry{ID: id, Producer: kept})
		}
	}
	if len(diags) > 0 {
		return kind, nil, diags
	}
	return kind, entries, nil
}

// EntryIDs returns the entry identities of es, sorted.
func EntryIDs(es []AggregateEntry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	sort.Strings(out)
	return out
}
