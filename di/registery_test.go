package di

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

//
// -----------------------------------------------------------------------------
// NewUniverse / Declare
// -----------------------------------------------------------------------------

// TestNewUniverse_HasUniversal verifies the universal classifier is pre-declared.
func TestNewUniverse_HasUniversal(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	d, ok := u.Lookup(UniversalName)
	require.True(t, ok)
	assert.True(t, d.Universal)
	assert.Equal(t, []string{UniversalName}, u.Names())
	require.NotNil(t, u.assign)
}

// TestDeclare_Duplicate verifies redeclaring a classifier fails with DuplicateDeclaration.
func TestDeclare_Duplicate(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	require.NoError(t, u.Declare(ClassifierDecl{Name: "Foo"}))

	err := u.Declare(ClassifierDecl{Name: "Foo"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, DuplicateDeclaration))
	assert.Equal(t, `di: duplicate declaration "Foo"`, err.Error())
}

// TestDeclare_Invalid verifies bad names and repeated type parameters are rejected.
func TestDeclare_Invalid(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	assert.True(t, errors.Is(u.Declare(ClassifierDecl{}), UnresolvedType))
	assert.True(t, errors.Is(u.Declare(ClassifierDecl{Name: PlaceholderName}), UnresolvedType))
	err := u.Declare(ClassifierDecl{Name: "Pair", TypeParams: []TypeParam{{Name: "A"}, {Name: "A"}}})
	assert.True(t, errors.Is(err, DuplicateDeclaration))
}

// TestMustDeclare_ChainsAndPanics verifies MustDeclare returns the universe and panics on failure.
func TestMustDeclare_ChainsAndPanics(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	ret := u.MustDeclare(ClassifierDecl{Name: "A"}, ClassifierDecl{Name: "B"})
	require.Same(t, u, ret)

	require.PanicsWithError(t, `di: duplicate declaration "A"`, func() {
		u.MustDeclare(ClassifierDecl{Name: "A"})
	})
}

//
// -----------------------------------------------------------------------------
// KeyOf
// -----------------------------------------------------------------------------

// TestKeyOf_Unresolved verifies placeholders, free parameters and arity mismatches are rejected.
func TestKeyOf_Unresolved(t *testing.T) {
	t.Parallel()

	u := NewUniverse().MustDeclare(ClassifierDecl{Name: "List", TypeParams: []TypeParam{{Name: "E"}}})

	tests := []string{
		"<error>",
		"List<<error>>",
		"$T",
		"List<$T>",
		"List",
		"List<Int, Int>",
		"Any<Int>",
	}
	for _, in := range tests {
		in := in
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			_, err := u.ParseKey(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, UnresolvedType), "got %v", err)
		})
	}
}

// TestKeyOf_Opaque verifies undeclared classifiers are accepted with any arity.
func TestKeyOf_Opaque(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	k, err := u.ParseKey("Thing<Int, String>?")
	require.NoError(t, err)
	assert.Equal(t, "Thing<Int, String>?", k.String())
}

// TestKeyOf_RecoversFromPanic verifies construction panics surface as errors.
func TestKeyOf_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	k, err := u.KeyOf(TypeExpr{Name: "   "})
	require.Error(t, err)
	assert.True(t, k.IsZero())
	assert.True(t, errors.Is(err, UnresolvedType))
}

// TestKeyOf_AliasExpansion verifies aliases expand to their target before comparison.
func TestKeyOf_AliasExpansion(t *testing.T) {
	t.Parallel()

	u := NewUniverse().MustDeclare(
		ClassifierDecl{Name: "UserName", AliasOf: ptr(MustParseTypeExpr("String"))},
		ClassifierDecl{Name: "PrimaryName", AliasOf: ptr(MustParseTypeExpr("@Primary UserName"))},
		ClassifierDecl{
			Name:       "Dict",
			TypeParams: []TypeParam{{Name: "V"}},
			AliasOf:    ptr(MustParseTypeExpr("Map<String, $V>")),
		},
	)

	assert.True(t, u.MustParseKey("UserName").Equal(u.MustParseKey("String")))
	assert.Equal(t, "String?", u.MustParseKey("UserName?").String())
	assert.Equal(t, `@Named("x") @Primary String`, u.MustParseKey(`@Named("x") PrimaryName`).String())
	assert.Equal(t, "Map<String, List<Int>>", u.MustParseKey("Dict<List<Int>>").String())
	assert.Equal(t, "Map<String, Int?>", u.MustParseKey("Dict<Int?>").String())
	assert.False(t, u.MustParseKey("PrimaryName").Equal(u.MustParseKey("UserName")))
}

// TestKeyOf_AliasCycle verifies a non-terminating alias chain is UnresolvedType.
func TestKeyOf_AliasCycle(t *testing.T) {
	t.Parallel()

	u := NewUniverse().MustDeclare(
		ClassifierDecl{Name: "A", AliasOf: ptr(MustParseTypeExpr("B"))},
		ClassifierDecl{Name: "B", AliasOf: ptr(MustParseTypeExpr("List<A>"))},
	)
	_, err := u.ParseKey("A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, UnresolvedType))
	assert.Contains(t, err.Error(), "alias expansion does not terminate")
}

// TestParseKey_SyntaxError verifies parse failures are returned unchanged.
func TestParseKey_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := NewUniverse().ParseKey("Map<")
	var se TypeSyntaxError
	require.True(t, errors.As(err, &se))
	require.Panics(t, func() { NewUniverse().MustParseKey("Map<") })
}

//
// -----------------------------------------------------------------------------
// Type parameters / patterns / supertypes
// -----------------------------------------------------------------------------

// TestTypeParams_Bounds verifies parameter nodes carry their bounds, including F-bounds.
func TestTypeParams_Bounds(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	ps, err := u.TypeParams(
		TypeParam{Name: "T", Bounds: []TypeExpr{MustParseTypeExpr("Comparable<T>")}},
		TypeParam{Name: "U"},
	)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "$T", ps[0].String())
	require.Len(t, ps[0].Bounds(), 1)
	assert.Equal(t, "Comparable<$T>", ps[0].Bounds()[0].String())

	pat, err := u.PatternOf(MustParseTypeExpr("Map<T, @Primary U?>"), ps...)
	require.NoError(t, err)
	assert.Equal(t, "Map<$T, @Primary $U?>", pat.String())
	assert.True(t, pat.HasTypeParams())

	_, err = u.TypeParams(TypeParam{Name: "X"}, TypeParam{Name: "X"})
	assert.True(t, errors.Is(err, DuplicateDeclaration))
}

// TestSupertypes_Substituted verifies declared supertypes are instantiated with the key's arguments.
func TestSupertypes_Substituted(t *testing.T) {
	t.Parallel()

	u := NewUniverse().MustDeclare(
		ClassifierDecl{Name: "Collection", TypeParams: []TypeParam{{Name: "E"}}},
		ClassifierDecl{
			Name:       "List",
			TypeParams: []TypeParam{{Name: "E"}},
			Supertypes: []TypeExpr{MustParseTypeExpr("Collection<E>"), MustParseTypeExpr("Any")},
		},
	)
	sts := u.Supertypes(u.MustParseKey("@Primary List<Int>?"))
	require.Len(t, sts, 2)
	assert.Equal(t, "Collection<Int>", sts[0].String())
	assert.Equal(t, "Any", sts[1].String())
	assert.Empty(t, u.Supertypes(u.MustParseKey("Int")))
}

// TestValidate_ReportsBrokenDeclarations verifies Validate lists unresolvable supertypes and aliases.
func TestValidate_ReportsBrokenDeclarations(t *testing.T) {
	t.Parallel()

	u := NewUniverse().MustDeclare(
		ClassifierDecl{Name: "Good", Supertypes: []TypeExpr{MustParseTypeExpr("Any")}},
		ClassifierDecl{Name: "Bad", Supertypes: []TypeExpr{MustParseTypeExpr("<error>")}},
		ClassifierDecl{Name: "Loose", AliasOf: ptr(MustParseTypeExpr("List<$Q>"))},
	)
	diags := u.Validate()
	require.Len(t, diags, 2)
	assert.Equal(t, []ErrorKind{UnresolvedType, UnresolvedType}, kindsOf(diags))
	assert.Equal(t, "<error>", diags[0].Type)
	assert.Contains(t, diags[1].Detail, `free type parameter "Q"`)
}
