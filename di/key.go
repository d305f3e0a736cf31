package di

import (
	"sort"
	"strconv"
	"strings"
)

// Qualifier is a named, optionally parameterized marker that separates two
// otherwise identical types, e.g. @Named("primary").
type Qualifier struct {
	Name string
	Args []string
}

// String renders the qualifier the way it is written in type expressions.
func (q Qualifier) String() string {
	if len(q.Args) == 0 {
		return "@" + q.Name
	}
	return "@" + q.Name + "(" + strings.Join(q.Args, ", ") + ")"
}

// identity renders q with every argument quoted, so arguments containing
// separators cannot collide.
func (q Qualifier) identity() string {
	if len(q.Args) == 0 {
		return "@" + q.Name
	}
	args := make([]string, len(q.Args))
	for i, a := range q.Args {
		args[i] = strconv.Quote(a)
	}
	return "@" + q.Name + "(" + strings.Join(args, ",") + ")"
}

// Key is the canonical identity of a requested or produced type.
//
// A Key is immutable. Equality and hashing go through ID(), which is computed
// once at construction from the classifier, the type arguments, the sorted
// qualifier set and the nullability flag.
//
// Keys holding type-parameter nodes only exist inside generic producer
// patterns (see Universe.PatternOf); requests and concrete producers never
// contain them.
type Key struct {
	classifier string
	args       []Key
	qualifiers []Qualifier
	nullable   bool

	param  bool
	bounds []Key

	id   string
	text string
}

// NewKey builds a Key for classifier applied to args.
//
// It panics on an empty classifier or a zero argument: keys built in code are
// expected to be well formed. Declared types coming from a front end should go
// through Universe.KeyOf, which reports UnresolvedType instead.
func NewKey(classifier string, args ...Key) Key {
	if strings.TrimSpace(classifier) == "" {
		panic(Diagnostic{Kind: UnresolvedType, Detail: "empty classifier"})
	}
	for _, a := range args {
		if a.IsZero() {
			panic(Diagnostic{Kind: UnresolvedType, Type: classifier, Detail: "zero type argument"})
		}
	}
	k := Key{classifier: classifier}
	if len(args) > 0 {
		k.args = append([]Key(nil), args...)
	}
	k.id, k.text = k.render()
	return k
}

// typeParamKey builds a pattern node standing for a type parameter.
func typeParamKey(name string, bounds []Key) Key {
	k := Key{classifier: name, param: true}
	if len(bounds) > 0 {
		k.bounds = append([]Key(nil), bounds...)
	}
	k.id, k.text = k.render()
	return k
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.id == "" }

// ID returns the canonical identity string. Two keys are equal iff their IDs are.
func (k Key) ID() string { return k.id }

// String implements fmt.Stringer. Unlike ID, qualifier arguments are
// rendered as written.
func (k Key) String() string { return k.text }

// Equal reports structural equality.
func (k Key) Equal(o Key) bool { return k.id == o.id }

// Classifier returns the type constructor name.
func (k Key) Classifier() string { return k.classifier }

// Args returns a copy of the ordered type arguments.
func (k Key) Args() []Key { return append([]Key(nil), k.args...) }

// Qualifiers returns a copy of the sorted qualifier set.
func (k Key) Qualifiers() []Qualifier { return append([]Qualifier(nil), k.qualifiers...) }

// IsNullable reports whether the key is marked nullable.
func (k Key) IsNullable() bool { return k.nullable }

// IsTypeParam reports whether k is a type-parameter pattern node.
func (k Key) IsTypeParam() bool { return k.param }

// Bounds returns the upper bounds of a type-parameter node.
func (k Key) Bounds() []Key { return append([]Key(nil), k.bounds...) }

// WithQualifiers returns k with qs added to its qualifier set.
func (k Key) WithQualifiers(qs ...Qualifier) Key {
	if len(qs) == 0 {
		return k
	}
	c := k.clone()
	c.qualifiers = normalizeQualifiers(append(c.qualifiers, qs...))
	c.id, c.text = c.render()
	return c
}

// WithoutQualifiers returns k with qs removed from its qualifier set.
func (k Key) WithoutQualifiers(qs ...Qualifier) Key {
	if len(qs) == 0 || len(k.qualifiers) == 0 {
		return k
	}
	drop := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		drop[q.identity()] = struct{}{}
	}
	c := k.clone()
	c.qualifiers = c.qualifiers[:0:0]
	for _, q := range k.qualifiers {
		if _, ok := drop[q.identity()]; !ok {
			c.qualifiers = append(c.qualifiers, q)
		}
	}
	c.id, c.text = c.render()
	return c
}

// Unqualified returns k without any qualifier.
func (k Key) Unqualified() Key {
	if len(k.qualifiers) == 0 {
		return k
	}
	c := k.clone()
	c.qualifiers = nil
	c.id, c.text = c.render()
	return c
}

// AsNullable returns the nullable form of k.
func (k Key) AsNullable() Key {
	if k.nullable {
		return k
	}
	c := k.clone()
	c.nullable = true
	c.id, c.text = c.render()
	return c
}

// NonNull returns the non-null form of k.
func (k Key) NonNull() Key {
	if !k.nullable {
		return k
	}
	c := k.clone()
	c.nullable = false
	c.id, c.text = c.render()
	return c
}

// HasTypeParams reports whether any node of k is a type-parameter node.
func (k Key) HasTypeParams() bool {
	if k.param {
		return true
	}
	for _, a := range k.args {
		if a.HasTypeParams() {
			return true
		}
	}
	return false
}

// Complexity is the number of type nodes in k.
func (k Key) Complexity() int {
	n := 1
	for _, a := range k.args {
		n += a.Complexity()
	}
	return n
}

func (k Key) classifierSet(into map[string]struct{}) {
	into[k.classifier] = struct{}{}
	for _, a := range k.args {
		a.classifierSet(into)
	}
}

func (k Key) clone() Key {
	c := k
	c.args = append([]Key(nil), k.args...)
	c.qualifiers = append([]Qualifier(nil), k.qualifiers...)
	c.bounds = append([]Key(nil), k.bounds...)
	return c
}

// render returns the identity and display forms of k.
func (k Key) render() (id, text string) {
	var ib, tb strings.Builder
	for _, q := range k.qualifiers {
		ib.WriteString(q.identity())
		ib.WriteByte(' ')
		tb.WriteString(q.String())
		tb.WriteByte(' ')
	}
	head := k.classifier
	if k.param {
		head = "$" + head
	}
	ib.WriteString(head)
	tb.WriteString(head)
	if len(k.args) > 0 {
		ib.WriteByte('<')
		tb.WriteByte('<')
		for i, a := range k.args {
			if i > 0 {
				ib.WriteString(", ")
				tb.WriteString(", ")
			}
			ib.WriteString(a.id)
			tb.WriteString(a.text)
		}
		ib.WriteByte('>')
		tb.WriteByte('>')
	}
	if k.nullable {
		ib.WriteByte('?')
		tb.WriteByte('?')
	}
	return ib.String(), tb.String()
}

func normalizeQualifiers(qs []Qualifier) []Qualifier {
	if len(qs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(qs))
	out := make([]Qualifier, 0, len(qs))
	for _, q := range qs {
		s := q.identity()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, Qualifier{Name: q.Name, Args: append([]string(nil), q.Args...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].identity() < out[j].identity() })
	return out
}

func sameQualifiers(a, b Key) bool {
	if len(a.qualifiers) != len(b.qualifiers) {
		return false
	}
	for i := range a.qualifiers {
		if a.qualifiers[i].identity() != b.qualifiers[i].identity() {
			return false
		}
	}
	return true
}

// hasQualifiers reports whether every qualifier of want is present on k.
func hasQualifiers(k Key, want []Qualifier) bool {
	for _, w := range want {
		found := false
		for _, q := range k.qualifiers {
			if q.identity() == w.identity() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
