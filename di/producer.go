package di

import (
	"strconv"
	"strings"
)

// Origin ranks where a producer was declared.
type Origin int

const (
	// OriginExplicit is a producer declared by the user for this graph.
	OriginExplicit Origin = iota
	// OriginImplicitInternal is an implicitly available producer of the same module.
	OriginImplicitInternal
	// OriginImplicitExternal is an implicitly available producer of a dependency module.
	OriginImplicitExternal
)

func (o Origin) String() string {
	switch o {
	case OriginExplicit:
		return "explicit"
	case OriginImplicitInternal:
		return "implicit-internal"
	case OriginImplicitExternal:
		return "implicit-external"
	default:
		return "Origin(" + strconv.Itoa(int(o)) + ")"
	}
}

// ParseOrigin parses explicit, implicit-internal (or internal) and
// implicit-external (or external). The empty string is explicit.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "explicit":
		return OriginExplicit, nil
	case "implicit-internal", "implicit_internal", "internal":
		return OriginImplicitInternal, nil
	case "implicit-external", "implicit_external", "external":
		return OriginImplicitExternal, nil
	default:
		return 0, InvalidEnumError{Enum: "origin", Value: s}
	}
}

// ExecContext is the calling convention a producer body requires.
type ExecContext int

const (
	// ContextInherit means "same as the producer's declared context" on a
	// body, and plain on a producer.
	ContextInherit ExecContext = iota
	ContextPlain
	ContextSuspending
	ContextReactive
)

func (c ExecContext) String() string {
	switch c {
	case ContextInherit:
		return "inherit"
	case ContextPlain:
		return "plain"
	case ContextSuspending:
		return "suspending"
	case ContextReactive:
		return "reactive"
	default:
		return "ExecContext(" + strconv.Itoa(int(c)) + ")"
	}
}

// ParseExecContext parses inherit, plain, suspending or reactive.
func ParseExecContext(s string) (ExecContext, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inherit":
		return ContextInherit, nil
	case "plain":
		return ContextPlain, nil
	case "suspending", "suspend":
		return ContextSuspending, nil
	case "reactive":
		return ContextReactive, nil
	default:
		return 0, InvalidEnumError{Enum: "context", Value: s}
	}
}

func (c ExecContext) effective() ExecContext {
	if c == ContextInherit {
		return ContextPlain
	}
	return c
}

// OverridePolicy decides what happens when a binding collides with an existing one.
type OverridePolicy int

const (
	// PolicyFail reports the collision.
	PolicyFail OverridePolicy = iota
	// PolicyOverride replaces the existing binding.
	PolicyOverride
	// PolicyDrop keeps the existing binding and ignores the newcomer.
	PolicyDrop
)

func (p OverridePolicy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	case PolicyOverride:
		return "override"
	case PolicyDrop:
		return "drop"
	default:
		return "OverridePolicy(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParseOverridePolicy accepts fail|error, override|overwrite and drop|ignore.
func ParseOverridePolicy(s string) (OverridePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail", "error":
		return PolicyFail, nil
	case "override", "overwrite":
		return PolicyOverride, nil
	case "drop", "ignore":
		return PolicyDrop, nil
	default:
		return 0, InvalidEnumError{Enum: "policy", Value: s}
	}
}

// ContributionKind distinguishes single bindings from aggregate contributions.
type ContributionKind int

const (
	ContributeSingle ContributionKind = iota
	ContributeMapEntry
	ContributeSetElement
)

func (k ContributionKind) String() string {
	switch k {
	case ContributeSingle:
		return "single"
	case ContributeMapEntry:
		return "map"
	case ContributeSetElement:
		return "set"
	default:
		return "ContributionKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseContributionKind parses single, map (or map-entry) and set (or set-element).
func ParseContributionKind(s string) (ContributionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return ContributeSingle, nil
	case "map", "map-entry", "mapentry":
		return ContributeMapEntry, nil
	case "set", "set-element", "setelement":
		return ContributeSetElement, nil
	default:
		return 0, InvalidEnumError{Enum: "contribution", Value: s}
	}
}

// EdgeKind is how a dependency is handed to its consumer.
type EdgeKind int

const (
	// EdgeDirect passes the value itself.
	EdgeDirect EdgeKind = iota
	// EdgeProvider passes a factory invoked on demand.
	EdgeProvider
	// EdgeLazy passes a memoizing handle.
	EdgeLazy
)

func (e EdgeKind) String() string {
	switch e {
	case EdgeDirect:
		return "direct"
	case EdgeProvider:
		return "provider"
	case EdgeLazy:
		return "lazy"
	default:
		return "EdgeKind(" + strconv.Itoa(int(e)) + ")"
	}
}

// Deferred reports whether the edge breaks eager recursion.
func (e EdgeKind) Deferred() bool { return e != EdgeDirect }

// ParseEdgeKind parses direct, provider (or deferred) and lazy.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return EdgeDirect, nil
	case "provider", "deferred":
		return EdgeProvider, nil
	case "lazy":
		return EdgeLazy, nil
	default:
		return 0, InvalidEnumError{Enum: "edge", Value: s}
	}
}

// ProducerKind is the declaration shape a producer was discovered from.
// It does not influence resolution.
type ProducerKind int

const (
	KindFunction ProducerKind = iota
	KindConstructor
	KindProperty
	KindInstance
)

func (k ProducerKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindConstructor:
		return "constructor"
	case KindProperty:
		return "property"
	case KindInstance:
		return "instance"
	default:
		return "ProducerKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseProducerKind parses function, constructor, property or instance.
func ParseProducerKind(s string) (ProducerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "function", "func":
		return KindFunction, nil
	case "constructor", "ctor":
		return KindConstructor, nil
	case "property":
		return KindProperty, nil
	case "instance", "value":
		return KindInstance, nil
	default:
		return 0, InvalidEnumError{Enum: "kind", Value: s}
	}
}

// InvalidEnumError is returned by the Parse* helpers.
type InvalidEnumError struct {
	Enum  string
	Value string
}

// Error implements the error interface.
func (e InvalidEnumError) Error() string {
	// Example: di: invalid edge "eager"
	return "di: invalid " + e.Enum + " " + strconv.Quote(e.Value)
}

// Dependency is one parameter of a producer.
//
// For aggregate keys, Elements selects how every entry is handed over
// (direct, provider or lazy values) while Edge applies to the collection.
type Dependency struct {
	Name     string
	Key      Key
	Edge     EdgeKind
	Optional bool
	Elements EdgeKind
}

// Deferred reports whether the dependency may close a cycle.
func (d Dependency) Deferred() bool { return d.Edge.Deferred() }

// Absorbs reports whether a missing binding resolves to absent.
func (d Dependency) Absorbs() bool { return d.Optional || d.Key.nullable }

// Contribution marks a producer as an entry of a map or set aggregate.
type Contribution struct {
	Kind      ContributionKind
	Aggregate Key
	EntryKey  string
}

// Producer is one way to obtain a value for Key.
//
// Producers are immutable once registered. Generic producers list their
// type-parameter nodes in TypeParams; Key and the parameter keys are then
// patterns over those nodes.
type Producer struct {
	ID         string
	Kind       ProducerKind
	Key        Key
	TypeParams []Key
	Origin     Origin
	// Scope is the component ID or scope name owning the instance.
	// Empty means a fresh instance per use.
	Scope   string
	Params  []Dependency
	Context ExecContext
	// Body is the context the producer body invokes its direct
	// dependencies in; ContextInherit means Context.
	Body         ExecContext
	Policy       OverridePolicy
	Contribution Contribution
	// Component is the declaring component for contributions. Empty means
	// root level, applied before any component.
	Component string
	Meta      map[string]string
}

// IsGeneric reports whether p declares type parameters.
func (p *Producer) IsGeneric() bool { return len(p.TypeParams) > 0 }

// IsContribution reports whether p contributes to an aggregate.
func (p *Producer) IsContribution() bool { return p.Contribution.Kind != ContributeSingle }

// BodyContext is the context the producer's direct dependencies are invoked in.
func (p *Producer) BodyContext() ExecContext {
	if p.Body == ContextInherit {
		return p.Context.effective()
	}
	return p.Body
}

// Validate checks the producer is well formed on its own.
func (p *Producer) Validate() error {
	if p.ID == "" {
		return Diagnostic{Kind: UnresolvedType, Key: p.Key, Detail: "producer without id"}
	}
	if p.Key.IsZero() {
		return Diagnostic{Kind: UnresolvedType, Producer: p.ID, Detail: "producer without key"}
	}
	bound := make(map[string]struct{}, len(p.TypeParams))
	for _, tp := range p.TypeParams {
		if !tp.param {
			return Diagnostic{Kind: UnresolvedType, Producer: p.ID, Type: tp.String(), Detail: "not a type parameter"}
		}
		bound[tp.classifier] = struct{}{}
	}
	check := func(k Key) error {
		if free := freeParam(k, bound); free != "" {
			return Diagnostic{Kind: UnresolvedType, Producer: p.ID, Key: k, Detail: "free type parameter " + strconv.Quote(free)}
		}
		return nil
	}
	if err := check(p.Key); err != nil {
		return err
	}
	for _, d := range p.Params {
		if d.Key.IsZero() {
			return Diagnostic{Kind: UnresolvedType, Producer: p.ID, Detail: "parameter " + strconv.Quote(d.Name) + " without key"}
		}
		if err := check(d.Key); err != nil {
			return err
		}
	}
	switch p.Contribution.Kind {
	case ContributeSingle:
	case ContributeMapEntry, ContributeSetElement:
		if p.IsGeneric() {
			return Diagnostic{Kind: UnresolvedType, Producer: p.ID, Key: p.Key, Detail: "generic contribution"}
		}
		if p.Contribution.Aggregate.IsZero() {
			return Diagnostic{Kind: UnresolvedType, Producer: p.ID, Key: p.Key, Detail: "contribution without aggregate key"}
		}
		if p.Contribution.Kind == ContributeMapEntry && p.Contribution.EntryKey == "" {
			return Diagnostic{Kind: UnresolvedType, Producer: p.ID, Key: p.Key, Detail: "map entry without entry key"}
		}
	default:
		return InvalidEnumError{Enum: "contribution", Value: p.Contribution.Kind.String()}
	}
	return nil
}

// freeParam returns the name of a type-parameter node of k not in bound.
func freeParam(k Key, bound map[string]struct{}) string {
	if k.param {
		if _, ok := bound[k.classifier]; !ok {
			return k.classifier
		}
		return ""
	}
	for _, a := range k.args {
		if f := freeParam(a, bound); f != "" {
			return f
		}
	}
	return ""
}
