package di

import (
	"errors"
	"sort"
	"strconv"
)

// ErrCatalogSealed is returned when registering into a catalog owned by a Session.
var ErrCatalogSealed = errors.New("di: catalog is sealed")

// AggregateConflictError is returned when an aggregate is declared with two shapes.
type AggregateConflictError struct {
	Key  Key
	Have ContributionKind
	Got  ContributionKind
}

// Error implements the error interface.
func (e AggregateConflictError) Error() string {
	// Example: di: aggregate "Map<String, Plugin>" declared as map and set
	return "di: aggregate " + strconv.Quote(e.Key.String()) + " declared as " + e.Have.String() + " and " + e.Got.String()
}

// Catalog indexes producers by the keys they can satisfy.
//
// Every producer is indexed under its produced key; contributions are also
// indexed under their aggregate key. Ambiguity is not rejected here: two
// explicit producers for one key are legal until something requests that key.
type Catalog struct {
	u *Universe

	seq           map[*Producer]int
	next          int
	ids           map[string]*Producer
	singles       []*Producer
	byKey         map[string][]*Producer
	contributions map[string][]*Producer
	aggregates    map[string]ContributionKind
	sealed        bool
}

// NewCatalog returns an empty catalog over u.
func NewCatalog(u *Universe) *Catalog {
	return &Catalog{
		u:             u,
		seq:           map[*Producer]int{},
		ids:           map[string]*Producer{},
		byKey:         map[string][]*Producer{},
		contributions: map[string][]*Producer{},
		aggregates:    map[string]ContributionKind{},
	}
}

// Universe returns the type universe the catalog matches against.
func (c *Catalog) Universe() *Universe { return c.u }

// Register adds p.
//
// A single producer colliding with an existing producer of the same key and
// origin is subject to p.Policy: PolicyOverride replaces the existing one in
// place, PolicyDrop ignores p, PolicyFail keeps both and leaves the
// ambiguity to resolution. A contribution's policy applies to aggregate
// entries only, so contributions never replace or drop one another here.
func (c *Catalog) Register(p *Producer) error {
	if c.sealed {
		return ErrCatalogSealed
	}
	if p == nil {
		return Diagnostic{Kind: UnresolvedType, Detail: "nil producer"}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if _, dup := c.ids[p.ID]; dup {
		return Diagnostic{Kind: DuplicateDeclaration, Producer: p.ID, Key: p.Key}
	}

	if p.IsContribution() {
		agg := p.Contribution.Aggregate.id
		if have, ok := c.aggregates[agg]; ok && have != p.Contribution.Kind {
			return AggregateConflictError{Key: p.Contribution.Aggregate, Have: have, Got: p.Contribution.Kind}
		}
		c.aggregates[agg] = p.Contribution.Kind
		c.add(p)
		c.contributions[agg] = append(c.contributions[agg], p)
		c.index(p)
		return nil
	}

	existing := c.byKey[p.Key.id]
	for i, e := range existing {
		if e.Origin != p.Origin || e.IsContribution() {
			continue
		}
		kept, took, err := ApplyPolicy(e, true, p, p.Policy)
		if err != nil {
			break
		}
		if !took {
			return nil
		}
		c.replace(i, e, kept)
		return nil
	}
	c.add(p)
	c.index(p)
	return nil
}

// index makes p a candidate for its produced key.
func (c *Catalog) index(p *Producer) {
	c.singles = append(c.singles, p)
	c.byKey[p.Key.id] = append(c.byKey[p.Key.id], p)
}

// MustRegister registers every p and returns the catalog for chaining.
// It panics on the first failing registration.
func (c *Catalog) MustRegister(ps ...*Producer) *Catalog {
	for _, p := range ps {
		if err := c.Register(p); err != nil {
			panic(err)
		}
	}
	return c
}

// DeclareAggregate declares a map or set aggregate key that may have no
// contributions.
func (c *Catalog) DeclareAggregate(k Key, kind ContributionKind) error {
	if c.sealed {
		return ErrCatalogSealed
	}
	if k.IsZero() || k.HasTypeParams() {
		return Diagnostic{Kind: UnresolvedType, Key: k, Detail: "invalid aggregate key"}
	}
	if kind != ContributeMapEntry && kind != ContributeSetElement {
		return InvalidEnumError{Enum: "aggregate", Value: kind.String()}
	}
	if have, ok := c.aggregates[k.id]; ok && have != kind {
		return AggregateConflictError{Key: k, Have: have, Got: kind}
	}
	c.aggregates[k.id] = kind
	return nil
}

func (c *Catalog) add(p *Producer) {
	c.seq[p] = c.next
	c.next++
	c.ids[p.ID] = p
}

func (c *Catalog) replace(i int, old, p *Producer) {
	c.seq[p] = c.seq[old]
	delete(c.seq, old)
	delete(c.ids, old.ID)
	c.ids[p.ID] = p
	c.byKey[p.Key.id][i] = p
	for j, s := range c.singles {
		if s == old {
			c.singles[j] = p
			break
		}
	}
}

func (c *Catalog) seal() { c.sealed = true }

// Producer returns the registered producer with id.
func (c *Catalog) Producer(id string) (*Producer, bool) {
	p, ok := c.ids[id]
	return p, ok
}

// Producers returns every registered producer in registration order.
func (c *Catalog) Producers() []*Producer {
	out := make([]*Producer, 0, len(c.ids))
	for _, p := range c.ids {
		out = append(out, p)
	}
	c.sortBySeq(out)
	return out
}

// IsAggregate reports whether k is a declared or contributed aggregate and its shape.
func (c *Catalog) IsAggregate(k Key) (ContributionKind, bool) {
	kind, ok := c.aggregates[k.id]
	return kind, ok
}

// Contributions returns the contributions to aggregate k in registration order.
func (c *Catalog) Contributions(k Key) []*Producer {
	return append([]*Producer(nil), c.contributions[k.id]...)
}

// Lookup returns the producers able to satisfy k: exact matches first,
// then assignable ones, each in registration order. Ranking is the
// resolver's job.
func (c *Catalog) Lookup(k Key) []*Producer {
	out := c.exact(k)
	for _, cand := range c.assignable(k) {
		out = append(out, cand.producer)
	}
	return out
}

// exact returns producers whose key is k, or the non-null form of a nullable k.
func (c *Catalog) exact(k Key) []*Producer {
	out := append([]*Producer(nil), c.byKey[k.id]...)
	if k.nullable {
		out = append(out, c.byKey[k.NonNull().id]...)
		c.sortBySeq(out)
	}
	return out
}

type candidate struct {
	producer *Producer
	subst    map[string]Key
	key      Key
}

// assignable returns non-exact producers assignable to k, instantiating
// generic producers against it.
func (c *Catalog) assignable(k Key) []candidate {
	var out []candidate
	for _, p := range c.singles {
		if !p.IsGeneric() {
			if p.Key.id == k.id || (k.nullable && p.Key.id == k.NonNull().id) {
				continue
			}
			if c.u.IsAssignable(p.Key, k) {
				out = append(out, candidate{producer: p, key: p.Key})
			}
			continue
		}
		if cand, ok := c.instantiate(p, k); ok {
			out = append(out, cand)
		}
	}
	return out
}

func (c *Catalog) instantiate(p *Producer, k Key) (candidate, bool) {
	subst := map[string]Key{}
	if !c.u.unify(p.Key, k, subst, 0) {
		return candidate{}, false
	}
	for _, tp := range p.TypeParams {
		v, ok := subst[tp.classifier]
		if !ok {
			continue
		}
		for _, b := range tp.bounds {
			sb, complete := substitute(b, subst)
			if complete && !c.u.IsSubtypeOf(v, sb) {
				return candidate{}, false
			}
		}
	}
	inst, complete := substitute(p.Key, subst)
	if !complete || !c.u.IsAssignable(inst, k) {
		return candidate{}, false
	}
	return candidate{producer: p, subst: subst, key: inst}, true
}

func (c *Catalog) sortBySeq(ps []*Producer) {
	sort.SliceStable(ps, func(i, j int) bool { return c.seq[ps[i]] < c.seq[ps[j]] })
}
