package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	qPrimary = Qualifier{Name: "Primary"}
	qNamedA  = Qualifier{Name: "Named", Args: []string{`"a"`}}
	qNamedB  = Qualifier{Name: "Named", Args: []string{`"b"`}}
)

//
// -----------------------------------------------------------------------------
// Construction / identity
// -----------------------------------------------------------------------------

// TestNewKey_StructuralEquality verifies keys built from the same parts are equal.
func TestNewKey_StructuralEquality(t *testing.T) {
	t.Parallel()

	a := NewKey("Map", NewKey("String"), NewKey("List", NewKey("Int")))
	b := NewKey("Map", NewKey("String"), NewKey("List", NewKey("Int")))
	assert.True(t, a.Equal(b))
	assert.Equal(t, "Map<String, List<Int>>", a.String())
	assert.Equal(t, 4, a.Complexity())
}

// TestNewKey_PanicsOnEmptyClassifier verifies keys cannot be built from nothing.
func TestNewKey_PanicsOnEmptyClassifier(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { _ = NewKey(" ") })
	require.Panics(t, func() { _ = NewKey("List", Key{}) })
}

// TestKey_QualifierSet verifies qualifier order and duplicates do not affect identity.
func TestKey_QualifierSet(t *testing.T) {
	t.Parallel()

	base := NewKey("Foo")
	a := base.WithQualifiers(qPrimary, qNamedA)
	b := base.WithQualifiers(qNamedA, qPrimary, qNamedA)
	assert.True(t, a.Equal(b))
	assert.Equal(t, `@Named("a") @Primary Foo`, a.String())

	assert.False(t, base.WithQualifiers(qNamedA).Equal(base.WithQualifiers(qNamedB)))
	assert.True(t, a.WithoutQualifiers(qPrimary).Equal(base.WithQualifiers(qNamedA)))
	assert.True(t, a.Unqualified().Equal(base))
	assert.Len(t, a.Qualifiers(), 2)
}

// TestKey_QualifierArgumentsDoNotCollide verifies an argument containing the
// separator stays distinct from two arguments.
func TestKey_QualifierArgumentsDoNotCollide(t *testing.T) {
	t.Parallel()

	one := NewKey("Foo").WithQualifiers(Qualifier{Name: "Tag", Args: []string{"a, b"}})
	two := NewKey("Foo").WithQualifiers(Qualifier{Name: "Tag", Args: []string{"a", "b"}})
	assert.False(t, one.Equal(two))
	assert.NotEqual(t, one.ID(), two.ID())
	assert.Equal(t, "@Tag(a, b) Foo", one.String())
	assert.Equal(t, "@Tag(a, b) Foo", two.String())

	l1 := NewKey("List", one)
	l2 := NewKey("List", two)
	assert.False(t, l1.Equal(l2))
	assert.Equal(t, "List<@Tag(a, b) Foo>", l1.String())
}

// TestKey_Nullability verifies nullability is part of identity.
func TestKey_Nullability(t *testing.T) {
	t.Parallel()

	k := NewKey("Foo")
	n := k.AsNullable()
	assert.False(t, k.Equal(n))
	assert.True(t, n.IsNullable())
	assert.Equal(t, "Foo?", n.String())
	assert.True(t, n.NonNull().Equal(k))
	assert.True(t, k.NonNull().Equal(k))
}

// TestKey_Accessors verifies accessors return copies.
func TestKey_Accessors(t *testing.T) {
	t.Parallel()

	k := NewKey("List", NewKey("Int"))
	args := k.Args()
	args[0] = NewKey("String")
	assert.Equal(t, "List<Int>", k.String())
	assert.Equal(t, "List", k.Classifier())
	assert.False(t, k.HasTypeParams())
	assert.True(t, Key{}.IsZero())
}

// TestKey_TypeParamNodes verifies type-parameter nodes render with a $ prefix.
func TestKey_TypeParamNodes(t *testing.T) {
	t.Parallel()

	tp := typeParamKey("T", []Key{NewKey("Animal")})
	k := NewKey("List", tp)
	assert.True(t, tp.IsTypeParam())
	assert.True(t, k.HasTypeParams())
	assert.Equal(t, "List<$T>", k.String())
	require.Len(t, tp.Bounds(), 1)
	assert.Equal(t, "Animal", tp.Bounds()[0].String())
}

//
// -----------------------------------------------------------------------------
// Properties
// -----------------------------------------------------------------------------

func genKey(depth int) *rapid.Generator[Key] {
	return rapid.Custom(func(t *rapid.T) Key {
		name := rapid.SampledFrom([]string{"Int", "String", "List", "Map", "pkg.Foo"}).Draw(t, "name")
		n := 0
		if depth > 0 {
			n = rapid.IntRange(0, 2).Draw(t, "arity")
		}
		args := make([]Key, n)
		for i := range args {
			args[i] = genKey(depth-1).Draw(t, "arg")
		}
		k := NewKey(name, args...)
		if rapid.Bool().Draw(t, "qualified") {
			k = k.WithQualifiers(rapid.SampledFrom([]Qualifier{qPrimary, qNamedA, qNamedB}).Draw(t, "qualifier"))
		}
		if rapid.Bool().Draw(t, "nullable") {
			k = k.AsNullable()
		}
		return k
	})
}

// TestKey_RenderParseRoundTrip verifies a key's rendering parses back to an equal key.
func TestKey_RenderParseRoundTrip(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	rapid.Check(t, func(t *rapid.T) {
		k := genKey(3).Draw(t, "key")
		back, err := u.ParseKey(k.String())
		if err != nil {
			t.Fatalf("parse %q: %v", k.String(), err)
		}
		if !back.Equal(k) {
			t.Fatalf("round trip %q -> %q", k.String(), back.String())
		}
	})
}

// TestKey_EqualityAgreesWithID verifies Equal and ID agree and equal keys are assignable.
func TestKey_EqualityAgreesWithID(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	rapid.Check(t, func(t *rapid.T) {
		a := genKey(2).Draw(t, "a")
		b := genKey(2).Draw(t, "b")
		if a.Equal(b) != (a.ID() == b.ID()) {
			t.Fatalf("Equal and ID disagree for %q and %q", a, b)
		}
		if !u.IsAssignable(a, a) {
			t.Fatalf("%q not assignable to itself", a)
		}
		if !u.IsAssignable(a.NonNull(), a.AsNullable()) {
			t.Fatalf("non-null %q not assignable to its nullable form", a)
		}
	})
}
