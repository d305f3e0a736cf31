package di

import (
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/log"
)

// DefaultMaxDepth bounds the resolution stack of one build.
const DefaultMaxDepth = 64

// ResolvedNode is the resolution of one key for one component.
//
// Exactly one of Producer, Absent or Aggregate describes the node. Nodes are
// shared: every request for the same (key, component) pair, and every request
// reaching the same scoped producer owner, yields the same pointer. Graphs
// closed by deferred edges contain pointer cycles.
type ResolvedNode struct {
	Key       Key
	Component string
	Producer  *Producer
	// TypeArgs binds the type parameters of a generic producer.
	TypeArgs  map[string]Key
	Absent    bool
	Aggregate ContributionKind
	Deps      []Edge
	Entries   []Entry
	Context   ExecContext
}

// Scoped reports whether n is a scoped producer instance.
func (n *ResolvedNode) Scoped() bool { return n.Producer != nil && n.Producer.Scope != "" }

// Edge connects a consumer to the node resolved for one of its dependencies.
type Edge struct {
	Dependency Dependency
	Node       *ResolvedNode
}

// Entry is one member of an aggregate node.
type Entry struct {
	ID   string
	Node *ResolvedNode
}

// Request is a top-level point where a value of Key is needed.
type Request struct {
	Name      string
	Key       Key
	Component string
	Optional  bool
}

// Graph is the resolved dependency graph of one request.
type Graph struct {
	Request Request
	Root    *ResolvedNode
}

type slotState int

const (
	stateInProgress slotState = iota + 1
	stateResolved
	stateFailed
)

type slot struct {
	state slotState
	node  *ResolvedNode
	diags []Diagnostic
	// consumers are the slots that took this slot's node as a dependency or
	// entry. A resolved consumer fails when this slot fails after the fact,
	// which happens to nodes resolved over a deferred edge into a slot still
	// in progress.
	consumers []*slot
}

type frame struct {
	id       string
	slot     *slot
	key      Key
	producer *Producer
	via      Dependency
}

// Builder resolves requests into graphs.
//
// A Builder owns the visitation state of one build and is not safe for
// concurrent use; independent builds each take their own Builder over the
// same read-only catalog and hierarchy.
type Builder struct {
	catalog  *Catalog
	comps    *Hierarchy
	resolver *Resolver
	agg      *Aggregator
	maxDepth int
	log      *log.Logger

	slots map[string]*slot
	stack []frame
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderMaxDepth bounds the resolution stack.
func WithBuilderMaxDepth(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.maxDepth = n
		}
	}
}

// WithBuilderLogger sets the debug logger.
func WithBuilderLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBuilder returns a Builder with fresh visitation state.
func NewBuilder(c *Catalog, h *Hierarchy, opts ...BuilderOption) *Builder {
	b := &Builder{
		catalog:  c,
		comps:    h,
		resolver: NewResolver(c, h),
		agg:      NewAggregator(c, h),
		maxDepth: DefaultMaxDepth,
		log:      log.New(io.Discard),
		slots:    map[string]*slot{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves req. Diagnostics are returned instead of a graph when any
// part of the request cannot be resolved.
func (b *Builder) Build(req Request) (*Graph, []Diagnostic) {
	if req.Key.IsZero() || req.Key.HasTypeParams() {
		return nil, []Diagnostic{{Kind: UnresolvedType, Key: req.Key, Component: req.Component, Detail: "request " + strconv.Quote(req.Name)}}
	}
	if !b.comps.Has(req.Component) {
		return nil, []Diagnostic{{Kind: UnknownComponent, Component: req.Component, Key: req.Key}}
	}
	via := Dependency{Name: req.Name, Key: req.Key, Optional: req.Optional}
	node, diags := b.resolve(req.Key, req.Component, via)
	if len(diags) > 0 {
		if !via.Absorbs() || !onlyKind(diags, NoBindingFound) {
			return nil, dedupeDiagnostics(diags)
		}
		node = &ResolvedNode{Key: req.Key, Component: req.Component, Absent: true}
	}
	return &Graph{Request: req, Root: node}, nil
}

func slotID(k Key, comp string) string { return k.id + "\x00" + comp }

// scopedSlotID identifies the one instance of a scoped producer owned by owner.
func scopedSlotID(p *Producer, k Key, owner string) string {
	return "scoped:" + p.ID + "\x00" + k.id + "\x00" + owner
}

func (b *Builder) resolve(k Key, comp string, via Dependency) (*ResolvedNode, []Diagnostic) {
	id := slotID(k, comp)
	if node, diags, done := b.visit(id, via); done {
		return node, diags
	}
	if len(b.stack) >= b.maxDepth {
		return nil, []Diagnostic{{Kind: DivergentResolution, Key: k, Component: comp, Path: b.path(0, k), Detail: "resolution depth exceeds " + strconv.Itoa(b.maxDepth)}}
	}

	if kind, ok := b.catalog.IsAggregate(k); ok {
		return b.resolveAggregate(id, k, comp, kind, via)
	}

	sel, err := b.resolver.Resolve(k, comp, false)
	if err != nil {
		d := asDiagnostic(err, k.String())
		b.slots[id] = &slot{state: stateFailed, diags: []Diagnostic{d}}
		return nil, []Diagnostic{d}
	}
	if sel.Absent {
		b.log.Debug("binding absent", "key", k.String(), "component", comp)
		node := &ResolvedNode{Key: k, Component: comp, Absent: true}
		b.slots[id] = &slot{state: stateResolved, node: node}
		return node, nil
	}
	if sel.Owner == "" {
		return b.produce(id, sel, comp, via)
	}
	owned := scopedSlotID(sel.Producer, sel.Key, sel.Owner)
	node, diags := b.produce(owned, sel, sel.Owner, via)
	if s, ok := b.slots[owned]; ok && s.state != stateInProgress {
		b.slots[id] = s
	}
	return node, diags
}

// visit short-circuits on a slot that was already entered.
func (b *Builder) visit(id string, via Dependency) (*ResolvedNode, []Diagnostic, bool) {
	s, ok := b.slots[id]
	if !ok {
		return nil, nil, false
	}
	b.consumedBy(s)
	switch s.state {
	case stateResolved:
		return s.node, nil, true
	case stateFailed:
		return nil, s.diags, true
	default:
		node, diags := b.closeCycle(id, s, via)
		return node, diags, true
	}
}

// closeCycle handles an edge back into the in-progress slot id. The cycle is
// legal if any of its edges is deferred.
func (b *Builder) closeCycle(id string, s *slot, via Dependency) (*ResolvedNode, []Diagnostic) {
	start := len(b.stack) - 1
	for ; start >= 0; start-- {
		if b.stack[start].id == id {
			break
		}
	}
	if start < 0 {
		return nil, []Diagnostic{{Kind: CircularDependency, Key: via.Key, Detail: "cycle entry not on stack"}}
	}
	deferred := via.Deferred()
	for _, f := range b.stack[start+1:] {
		if f.via.Deferred() {
			deferred = true
		}
	}
	path := b.path(start, b.stack[start].key)
	if !deferred {
		return nil, []Diagnostic{{Kind: CircularDependency, Key: b.stack[start].key, Component: s.node.Component, Path: path}}
	}
	b.log.Debug("deferred edge closes cycle", "path", path)
	return s.node, nil
}

// path renders the stack from frame start, closed by last.
func (b *Builder) path(start int, last Key) []string {
	out := make([]string, 0, len(b.stack)-start+1)
	for _, f := range b.stack[start:] {
		out = append(out, f.key.String())
	}
	return append(out, last.String())
}

// consumedBy records the frame on top of the stack as a consumer of s.
func (b *Builder) consumedBy(s *slot) {
	if n := len(b.stack); n > 0 {
		s.consumers = append(s.consumers, b.stack[n-1].slot)
	}
}

func (b *Builder) push(id string, s *slot, k Key, p *Producer, via Dependency) {
	b.consumedBy(s)
	b.slots[id] = s
	b.stack = append(b.stack, frame{id: id, slot: s, key: k, producer: p, via: via})
}

func (b *Builder) pop(s *slot, diags []Diagnostic) []Diagnostic {
	b.stack = b.stack[:len(b.stack)-1]
	if len(diags) == 0 {
		s.state = stateResolved
		return nil
	}
	diags = dedupeDiagnostics(diags)
	s.state = stateFailed
	s.diags = diags
	b.poison(s)
	return diags
}

// poison fails every resolved slot that reaches the failed slot s through
// consumer edges. Slots still in progress see the failure through their own
// dependency results.
func (b *Builder) poison(s *slot) {
	queue := append([]*slot(nil), s.consumers...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c.state != stateResolved {
			continue
		}
		c.state = stateFailed
		c.diags = s.diags
		queue = append(queue, c.consumers...)
	}
}

func (b *Builder) produce(id string, sel Selection, comp string, via Dependency) (*ResolvedNode, []Diagnostic) {
	if node, diags, done := b.visit(id, via); done {
		return node, diags
	}
	p := sel.Producer
	if p.IsGeneric() {
		if d, ok := b.diverges(p, sel.Key, comp); ok {
			return nil, []Diagnostic{d}
		}
		b.log.Debug("instantiating generic producer", "producer", p.ID, "key", sel.Key.String())
	}

	node := &ResolvedNode{
		Key:       sel.Key,
		Component: comp,
		Producer:  p,
		TypeArgs:  sel.Subst,
		Context:   p.Context.effective(),
	}
	s := &slot{state: stateInProgress, node: node}
	b.push(id, s, sel.Key, p, via)

	var diags []Diagnostic
	for _, param := range p.Params {
		dep := param
		if p.IsGeneric() {
			k, complete := substitute(param.Key, sel.Subst)
			if !complete {
				diags = append(diags, Diagnostic{Kind: UnresolvedType, Key: sel.Key, Component: comp, Producer: p.ID, Detail: "unbound type parameter in " + strconv.Quote(param.Key.String())})
				continue
			}
			dep.Key = k
		}
		child, cd := b.resolve(dep.Key, comp, dep)
		if len(cd) > 0 {
			if !dep.Absorbs() || !onlyKind(cd, NoBindingFound) {
				diags = append(diags, cd...)
				continue
			}
			b.log.Debug("optional dependency absent", "producer", p.ID, "key", dep.Key.String())
			child = &ResolvedNode{Key: dep.Key, Component: comp, Absent: true}
		}
		node.Deps = append(node.Deps, Edge{Dependency: dep, Node: child})
	}
	if len(diags) == 0 {
		diags = checkContexts(node)
	}
	if diags = b.pop(s, diags); len(diags) > 0 {
		return nil, diags
	}
	return node, nil
}

func (b *Builder) resolveAggregate(id string, k Key, comp string, kind ContributionKind, via Dependency) (*ResolvedNode, []Diagnostic) {
	if singles := b.catalog.exact(k); len(singles) > 0 {
		d := Diagnostic{
			Kind:       MultipleExplicitBindings,
			Key:        k,
			Component:  comp,
			Candidates: sortedIDs(singles),
			Detail:     "key is also a " + kind.String() + " aggregate",
		}
		b.slots[id] = &slot{state: stateFailed, diags: []Diagnostic{d}}
		return nil, []Diagnostic{d}
	}
	_, entries, diags := b.agg.Aggregate(k, comp)
	if len(diags) > 0 {
		b.slots[id] = &slot{state: stateFailed, diags: diags}
		return nil, diags
	}

	node := &ResolvedNode{Key: k, Component: comp, Aggregate: kind, Context: ContextPlain}
	s := &slot{state: stateInProgress, node: node}
	b.push(id, s, k, nil, via)
	for _, e := range entries {
		p := e.Producer
		sel := Selection{Producer: p, Key: p.Key}
		target := comp
		if p.Scope != "" {
			owner, ok := b.comps.Owner(comp, p.Scope)
			if !ok {
				diags = append(diags, Diagnostic{
					Kind:      ScopeMismatch,
					Key:       k,
					Component: comp,
					Producer:  p.ID,
					Detail:    "scope " + strconv.Quote(p.Scope) + " is not reachable",
				})
				continue
			}
			target, sel.Owner = owner, owner
		}
		elem := Dependency{Name: e.ID, Key: p.Key, Edge: via.Elements}
		entryID := "entry:" + p.ID + "\x00" + target
		if sel.Owner != "" {
			entryID = scopedSlotID(p, p.Key, sel.Owner)
		}
		child, cd := b.produce(entryID, sel, target, elem)
		if len(cd) > 0 {
			diags = append(diags, cd...)
			continue
		}
		node.Entries = append(node.Entries, Entry{ID: e.ID, Node: child})
	}
	if diags = b.pop(s, diags); len(diags) > 0 {
		return nil, diags
	}
	return node, nil
}

// diverges detects unproductive recursive instantiation of a generic
// producer: the same producer already on the stack with a smaller key that
// uses every classifier the new key uses.
func (b *Builder) diverges(p *Producer, k Key, comp string) (Diagnostic, bool) {
	set := map[string]struct{}{}
	k.classifierSet(set)
	for i, f := range b.stack {
		if f.producer != p || f.key.Complexity() >= k.Complexity() {
			continue
		}
		prev := map[string]struct{}{}
		f.key.classifierSet(prev)
		covered := true
		for c := range set {
			if _, ok := prev[c]; !ok {
				covered = false
				break
			}
		}
		if covered {
			return Diagnostic{
				Kind:      DivergentResolution,
				Key:       k,
				Component: comp,
				Producer:  p.ID,
				Path:      b.path(i, k),
			}, true
		}
	}
	return Diagnostic{}, false
}

func onlyKind(ds []Diagnostic, kind ErrorKind) bool {
	for _, d := range ds {
		if d.Kind != kind {
			return false
		}
	}
	return len(ds) > 0
}

// Walk visits every node reachable from root once, parents before children,
// dependencies in declaration order and aggregate entries in entry order.
func Walk(root *ResolvedNode, fn func(*ResolvedNode)) {
	seen := map[*ResolvedNode]bool{}
	var visit func(n *ResolvedNode)
	visit = func(n *ResolvedNode) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		fn(n)
		for _, e := range n.Deps {
			visit(e.Node)
		}
		for _, e := range n.Entries {
			visit(e.Node)
		}
	}
	visit(root)
}

// Nodes returns the nodes reachable from root in Walk order.
func Nodes(root *ResolvedNode) []*ResolvedNode {
	var out []*ResolvedNode
	Walk(root, func(n *ResolvedNode) { out = append(out, n) })
	return out
}

// TypeArgNames returns the bound type-parameter names of n, sorted.
func (n *ResolvedNode) TypeArgNames() []string {
	out := make([]string, 0, len(n.TypeArgs))
	for name := range n.TypeArgs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
