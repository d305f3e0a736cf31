package di

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// UniversalName is the classifier every Universe pre-declares as the top type.
const UniversalName = "Any"

// DefaultAssignCacheSize bounds the assignability memo of a Universe.
const DefaultAssignCacheSize = 4096

// maxTypeDepth bounds alias expansion and supertype walks.
const maxTypeDepth = 32

// ErrUniversePanic is returned if key construction panics internally.
var ErrUniversePanic = errors.New("di: panic during type resolution")

// TypeParam declares a type parameter and its upper bounds.
type TypeParam struct {
	Name   string
	Bounds []TypeExpr
}

// ClassifierDecl declares a named type constructor.
//
// Supertypes and AliasOf may refer to the declaration's own type parameters by
// name. A declaration with AliasOf set is a (possibly generic) type alias and
// never appears in a Key: KeyOf expands it.
type ClassifierDecl struct {
	Name       string
	TypeParams []TypeParam
	Supertypes []TypeExpr
	AliasOf    *TypeExpr
	Universal  bool
}

// Universe is the set of declared classifiers that keys are built against.
//
// Classifiers that were never declared are treated as opaque: any arity, no
// supertypes besides the universal one. Declarations are expected to complete
// before the Universe is shared by a Session; lookups are safe for concurrent
// use afterwards.
type Universe struct {
	decls  map[string]ClassifierDecl
	assign *lru.Cache[string, bool]
}

// UniverseOption configures a Universe.
type UniverseOption func(*Universe)

// WithAssignCacheSize sets the assignability memo size. n <= 0 disables memoization.
func WithAssignCacheSize(n int) UniverseOption {
	return func(u *Universe) {
		if n <= 0 {
			u.assign = nil
			return
		}
		c, err := lru.New[string, bool](n)
		if err == nil {
			u.assign = c
		}
	}
}

// NewUniverse returns a Universe holding only the universal classifier.
func NewUniverse(opts ...UniverseOption) *Universe {
	u := &Universe{decls: map[string]ClassifierDecl{
		UniversalName: {Name: UniversalName, Universal: true},
	}}
	WithAssignCacheSize(DefaultAssignCacheSize)(u)
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Declare adds a classifier declaration.
func (u *Universe) Declare(d ClassifierDecl) error {
	if d.Name == "" || d.Name == PlaceholderName {
		return Diagnostic{Kind: UnresolvedType, Type: d.Name, Detail: "invalid classifier name"}
	}
	if _, exists := u.decls[d.Name]; exists {
		return Diagnostic{Kind: DuplicateDeclaration, Type: d.Name}
	}
	seen := map[string]bool{}
	for _, tp := range d.TypeParams {
		if tp.Name == "" || seen[tp.Name] {
			return Diagnostic{Kind: DuplicateDeclaration, Type: d.Name, Detail: "type parameter " + strconv.Quote(tp.Name)}
		}
		seen[tp.Name] = true
	}
	u.decls[d.Name] = d
	if u.assign != nil {
		u.assign.Purge()
	}
	return nil
}

// MustDeclare declares every d and returns the Universe for chaining.
// It panics on the first failing declaration.
func (u *Universe) MustDeclare(ds ...ClassifierDecl) *Universe {
	for _, d := range ds {
		if err := u.Declare(d); err != nil {
			panic(err)
		}
	}
	return u
}

// Lookup returns the declaration of name, if any.
func (u *Universe) Lookup(name string) (ClassifierDecl, bool) {
	d, ok := u.decls[name]
	return d, ok
}

// Names returns the declared classifier names, sorted.
func (u *Universe) Names() []string {
	out := make([]string, 0, len(u.decls))
	for n := range u.decls {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every supertype and alias target resolves.
func (u *Universe) Validate() []Diagnostic {
	var out []Diagnostic
	for _, name := range u.Names() {
		d := u.decls[name]
		params, err := u.TypeParams(d.TypeParams...)
		if err != nil {
			out = append(out, asDiagnostic(err, name))
			continue
		}
		for _, st := range d.Supertypes {
			if _, err := u.PatternOf(st, params...); err != nil {
				out = append(out, asDiagnostic(err, name))
			}
		}
		if d.AliasOf != nil {
			if _, err := u.PatternOf(*d.AliasOf, params...); err != nil {
				out = append(out, asDiagnostic(err, name))
			}
		}
	}
	return out
}

// KeyOf builds the canonical Key of a concrete declared type.
//
// It fails with an UnresolvedType Diagnostic if any part of e is a
// placeholder, a free type parameter, an arity mismatch against a declared
// classifier, or an alias that does not terminate.
func (u *Universe) KeyOf(e TypeExpr) (Key, error) {
	return u.PatternOf(e)
}

// MustKeyOf is KeyOf that panics on error.
func (u *Universe) MustKeyOf(e TypeExpr) Key {
	k, err := u.KeyOf(e)
	if err != nil {
		panic(err)
	}
	return k
}

// ParseKey parses s and builds its Key.
func (u *Universe) ParseKey(s string) (Key, error) {
	e, err := ParseTypeExpr(s)
	if err != nil {
		return Key{}, err
	}
	return u.KeyOf(e)
}

// MustParseKey is ParseKey that panics on error.
func (u *Universe) MustParseKey(s string) Key {
	k, err := u.ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// TypeParams builds type-parameter nodes for a generic producer. Bounds may
// refer to any of the parameters.
func (u *Universe) TypeParams(tps ...TypeParam) ([]Key, error) {
	if len(tps) == 0 {
		return nil, nil
	}
	bare := make(map[string]Key, len(tps))
	for _, tp := range tps {
		if tp.Name == "" {
			return nil, Diagnostic{Kind: UnresolvedType, Detail: "unnamed type parameter"}
		}
		if _, dup := bare[tp.Name]; dup {
			return nil, Diagnostic{Kind: DuplicateDeclaration, Type: tp.Name, Detail: "type parameter"}
		}
		bare[tp.Name] = typeParamKey(tp.Name, nil)
	}
	out := make([]Key, 0, len(tps))
	for _, tp := range tps {
		bounds := make([]Key, 0, len(tp.Bounds))
		for _, b := range tp.Bounds {
			bk, err := u.keyOf(b, bare, 0)
			if err != nil {
				return nil, err
			}
			bounds = append(bounds, bk)
		}
		out = append(out, typeParamKey(tp.Name, bounds))
	}
	return out, nil
}

// PatternOf builds a Key in which the names of params denote type-parameter
// nodes. Without params it is KeyOf.
func (u *Universe) PatternOf(e TypeExpr, params ...Key) (k Key, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			k = Key{}
			if d, ok := rec.(Diagnostic); ok {
				err = d
				return
			}
			err = fmt.Errorf("%w: %v", ErrUniversePanic, rec)
		}
	}()
	scope := make(map[string]Key, len(params))
	for _, p := range params {
		scope[p.classifier] = p
	}
	return u.keyOf(e, scope, 0)
}

func (u *Universe) keyOf(e TypeExpr, scope map[string]Key, depth int) (Key, error) {
	if depth > maxTypeDepth {
		return Key{}, Diagnostic{Kind: UnresolvedType, Type: e.String(), Detail: "alias expansion does not terminate"}
	}
	if e.Placeholder || e.Name == PlaceholderName {
		return Key{}, Diagnostic{Kind: UnresolvedType, Type: e.String(), Detail: "placeholder type"}
	}
	if e.Name == "" {
		return Key{}, Diagnostic{Kind: UnresolvedType, Detail: "empty type name"}
	}

	if bound, ok := scope[e.Name]; ok {
		if len(e.Args) > 0 {
			return Key{}, Diagnostic{Kind: UnresolvedType, Type: e.String(), Detail: "type parameter with arguments"}
		}
		return decorate(bound, e.Qualifiers, e.Nullable), nil
	}
	if e.TypeParam {
		return Key{}, Diagnostic{Kind: UnresolvedType, Type: e.String(), Detail: "free type parameter " + strconv.Quote(e.Name)}
	}

	args := make([]Key, 0, len(e.Args))
	for _, a := range e.Args {
		ak, err := u.keyOf(a, scope, depth)
		if err != nil {
			return Key{}, err
		}
		args = append(args, ak)
	}

	d, declared := u.decls[e.Name]
	if declared && len(d.TypeParams) != len(args) {
		return Key{}, Diagnostic{
			Kind:   UnresolvedType,
			Type:   e.String(),
			Detail: "expected " + strconv.Itoa(len(d.TypeParams)) + " type arguments, got " + strconv.Itoa(len(args)),
		}
	}
	if declared && d.AliasOf != nil {
		sub := make(map[string]Key, len(args))
		for i, tp := range d.TypeParams {
			sub[tp.Name] = args[i]
		}
		target, err := u.keyOf(*d.AliasOf, sub, depth+1)
		if err != nil {
			var diag Diagnostic
			if errors.As(err, &diag) && diag.Detail == "alias expansion does not terminate" {
				diag.Type = e.String()
				return Key{}, diag
			}
			return Key{}, err
		}
		return decorate(target, e.Qualifiers, e.Nullable), nil
	}
	return decorate(NewKey(e.Name, args...), e.Qualifiers, e.Nullable), nil
}

// Supertypes returns the declared direct supertypes of k with k's type
// arguments substituted. Qualifiers and nullability are not carried over.
func (u *Universe) Supertypes(k Key) []Key {
	if k.param {
		return k.Bounds()
	}
	d, ok := u.decls[k.classifier]
	if !ok || len(d.Supertypes) == 0 || len(d.TypeParams) != len(k.args) {
		return nil
	}
	sub := make(map[string]Key, len(k.args))
	for i, tp := range d.TypeParams {
		sub[tp.Name] = k.args[i]
	}
	out := make([]Key, 0, len(d.Supertypes))
	for _, st := range d.Supertypes {
		sk, err := u.keyOf(st, sub, 0)
		if err != nil {
			continue
		}
		out = append(out, sk)
	}
	return out
}

func (u *Universe) isUniversal(k Key) bool {
	if k.param || len(k.args) > 0 {
		return false
	}
	d, ok := u.decls[k.classifier]
	return ok && d.Universal
}

func decorate(k Key, qs []Qualifier, nullable bool) Key {
	k = k.WithQualifiers(qs...)
	if nullable {
		k = k.AsNullable()
	}
	return k
}

func asDiagnostic(err error, typ string) Diagnostic {
	var d Diagnostic
	if errors.As(err, &d) {
		if d.Type == "" {
			d.Type = typ
		}
		return d
	}
	return Diagnostic{Kind: UnresolvedType, Type: typ, Detail: err.Error()}
}
