package di

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrorKind classifies a resolution failure.
//
// ErrorKind implements error so a Diagnostic can be matched with errors.Is:
//
//	if errors.Is(err, di.NoBindingFound) { ... }
type ErrorKind int

const (
	// UnresolvedType: a declaration references a placeholder type or a free type parameter.
	UnresolvedType ErrorKind = iota + 1
	// NoBindingFound: no candidate at any tier for a non-optional request.
	NoBindingFound
	// MultipleExplicitBindings: more than one explicit candidate in the winning tier.
	MultipleExplicitBindings
	// MultipleInternalImplicitBindings: more than one internal implicit candidate.
	MultipleInternalImplicitBindings
	// MultipleExternalImplicitBindings: more than one external implicit candidate.
	MultipleExternalImplicitBindings
	// CircularDependency: a cycle without any deferred edge.
	CircularDependency
	// ScopeMismatch: the chosen producer's scope is unreachable from the requester.
	ScopeMismatch
	// DuplicateMultiBindingEntry: an aggregate entry collision under the Fail policy.
	DuplicateMultiBindingEntry
	// ContextMismatch: incompatible execution contexts combined directly.
	ContextMismatch
	// DivergentResolution: unproductive recursive generic instantiation or depth overflow.
	DivergentResolution
	// UnknownComponent: a request or component parent names an undeclared component.
	UnknownComponent
	// DuplicateDeclaration: a component or classifier is declared twice.
	DuplicateDeclaration
)

var kindNames = map[ErrorKind]string{
	UnresolvedType:                   "UnresolvedType",
	NoBindingFound:                   "NoBindingFound",
	MultipleExplicitBindings:         "MultipleExplicitBindings",
	MultipleInternalImplicitBindings: "MultipleInternalImplicitBindings",
	MultipleExternalImplicitBindings: "MultipleExternalImplicitBindings",
	CircularDependency:               "CircularDependency",
	ScopeMismatch:                    "ScopeMismatch",
	DuplicateMultiBindingEntry:       "DuplicateMultiBindingEntry",
	ContextMismatch:                  "ContextMismatch",
	DivergentResolution:              "DivergentResolution",
	UnknownComponent:                 "UnknownComponent",
	DuplicateDeclaration:             "DuplicateDeclaration",
}

// String returns the kind name.
func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

// Error implements the error interface.
func (k ErrorKind) Error() string { return "di: " + k.String() }

// Diagnostic is one structured resolution problem.
//
// Only the fields relevant to Kind are set: Path holds the cycle or request
// chain, Candidates the competing producer IDs, Producer the offending
// producer.
type Diagnostic struct {
	Kind       ErrorKind
	Key        Key
	Type       string
	Component  string
	Producer   string
	Path       []string
	Candidates []string
	Detail     string
}

// Unwrap returns the kind so errors.Is(d, di.NoBindingFound) holds.
func (d Diagnostic) Unwrap() error { return d.Kind }

// Error implements the error interface.
func (d Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString("di: ")
	subject := d.subject()
	switch d.Kind {
	case UnresolvedType:
		sb.WriteString("unresolved type " + subject)
	case NoBindingFound:
		sb.WriteString("no binding found for " + subject)
	case MultipleExplicitBindings:
		sb.WriteString("multiple explicit bindings for " + subject)
	case MultipleInternalImplicitBindings:
		sb.WriteString("multiple internal implicit bindings for " + subject)
	case MultipleExternalImplicitBindings:
		sb.WriteString("multiple external implicit bindings for " + subject)
	case CircularDependency:
		sb.WriteString("circular dependency " + strings.Join(quoteAll(d.Path), " -> "))
	case ScopeMismatch:
		sb.WriteString("scope mismatch for " + subject)
	case DuplicateMultiBindingEntry:
		sb.WriteString("duplicate multibinding entry in " + subject)
	case ContextMismatch:
		sb.WriteString("execution context mismatch in " + subject)
	case DivergentResolution:
		sb.WriteString("divergent resolution of " + subject)
	case UnknownComponent:
		sb.WriteString("unknown component " + strconv.Quote(d.Component))
	case DuplicateDeclaration:
		sb.WriteString("duplicate declaration " + subject)
	default:
		sb.WriteString(d.Kind.String() + " " + subject)
	}
	if d.Component != "" && d.Kind != UnknownComponent {
		sb.WriteString(" in component " + strconv.Quote(d.Component))
	}
	if d.Producer != "" {
		sb.WriteString(" (producer " + strconv.Quote(d.Producer) + ")")
	}
	if len(d.Candidates) > 0 {
		sb.WriteString(": candidates " + strings.Join(quoteAll(d.Candidates), ", "))
	}
	if d.Detail != "" {
		sb.WriteString(": " + d.Detail)
	}
	return sb.String()
}

func (d Diagnostic) subject() string {
	if !d.Key.IsZero() {
		return strconv.Quote(d.Key.String())
	}
	if d.Type != "" {
		return strconv.Quote(d.Type)
	}
	return strconv.Quote(d.Producer)
}

// identity is used to report each distinct problem once.
func (d Diagnostic) identity() string {
	return d.Kind.String() + "\x00" + d.Key.ID() + "\x00" + d.Type + "\x00" + d.Component + "\x00" +
		d.Producer + "\x00" + strings.Join(d.Path, "\x01") + "\x00" + strings.Join(d.Candidates, "\x01") + "\x00" + d.Detail
}

// BuildError carries every diagnostic of a failed build.
type BuildError struct {
	Diagnostics []Diagnostic
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if len(e.Diagnostics) == 1 {
		return e.Diagnostics[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("di: build failed with ")
	sb.WriteString(strconv.Itoa(len(e.Diagnostics)))
	sb.WriteString(" problems")
	for _, d := range e.Diagnostics {
		sb.WriteString("\n  - ")
		sb.WriteString(d.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual diagnostics to errors.Is / errors.As.
func (e *BuildError) Unwrap() []error {
	out := make([]error, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		out[i] = d
	}
	return out
}

// Kinds returns the distinct kinds in first-seen order.
func (e *BuildError) Kinds() []ErrorKind {
	seen := map[ErrorKind]bool{}
	var out []ErrorKind
	for _, d := range e.Diagnostics {
		if !seen[d.Kind] {
			seen[d.Kind] = true
			out = append(out, d.Kind)
		}
	}
	return out
}

// AsDiagnostics flattens err into diagnostics. Non-diagnostic errors yield nil.
func AsDiagnostics(err error) []Diagnostic {
	var be *BuildError
	if errors.As(err, &be) {
		return append([]Diagnostic(nil), be.Diagnostics...)
	}
	var d Diagnostic
	if errors.As(err, &d) {
		return []Diagnostic{d}
	}
	return nil
}

func dedupeDiagnostics(in []Diagnostic) []Diagnostic {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Diagnostic, 0, len(in))
	for _, d := range in {
		id := d.identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, d)
	}
	return out
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strconv.Quote(s)
	}
	return out
}

func sortedIDs(ps []*Producer) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	sort.Strings(out)
	return out
}
