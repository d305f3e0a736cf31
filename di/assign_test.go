package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func animalUniverse(opts ...UniverseOption) *Universe {
	return NewUniverse(opts...).MustDeclare(
		ClassifierDecl{Name: "Animal"},
		ClassifierDecl{Name: "Dog", Supertypes: []TypeExpr{MustParseTypeExpr("Animal")}},
		ClassifierDecl{Name: "Puppy", Supertypes: []TypeExpr{MustParseTypeExpr("Dog")}},
		ClassifierDecl{Name: "Collection", TypeParams: []TypeParam{{Name: "E"}}},
		ClassifierDecl{
			Name:       "List",
			TypeParams: []TypeParam{{Name: "E"}},
			Supertypes: []TypeExpr{MustParseTypeExpr("Collection<E>")},
		},
	)
}

//
// -----------------------------------------------------------------------------
// IsAssignable
// -----------------------------------------------------------------------------

// TestIsAssignable_Table verifies subtyping, nullability and qualifier rules.
func TestIsAssignable_Table(t *testing.T) {
	t.Parallel()

	u := animalUniverse()
	tests := []struct {
		candidate string
		requested string
		want      bool
	}{
		{"Dog", "Dog", true},
		{"Dog", "Animal", true},
		{"Puppy", "Animal", true},
		{"Animal", "Dog", false},
		{"Dog", "Dog?", true},
		{"Dog?", "Dog", false},
		{"Dog?", "Animal?", true},
		{"Dog?", "Animal", false},
		{"Dog", "Any", true},
		{"Dog?", "Any", false},
		{"Dog?", "Any?", true},
		{"List<Dog>", "Collection<Animal>", true},
		{"List<Animal>", "Collection<Dog>", false},
		{"List<Dog>", "List<Dog?>", true},
		{"List<Dog?>", "List<Dog>", false},
		{"@Primary Dog", "Dog", false},
		{"Dog", "@Primary Dog", false},
		{"@Primary Dog", "@Primary Animal", true},
		{`@Named("a") Dog`, `@Named("b") Dog`, false},
		{"Int", "String", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.candidate+" => "+tt.requested, func(t *testing.T) {
			t.Parallel()

			got := u.IsAssignable(u.MustParseKey(tt.candidate), u.MustParseKey(tt.requested))
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestIsAssignable_TypeParamRequest verifies a parameter node accepts candidates satisfying its bounds.
func TestIsAssignable_TypeParamRequest(t *testing.T) {
	t.Parallel()

	u := animalUniverse()
	ps, err := u.TypeParams(TypeParam{Name: "T", Bounds: []TypeExpr{MustParseTypeExpr("Animal")}})
	require.NoError(t, err)
	tp := ps[0]

	assert.True(t, u.IsAssignable(u.MustParseKey("Dog"), tp))
	assert.False(t, u.IsAssignable(u.MustParseKey("Int"), tp))
	assert.False(t, u.IsAssignable(u.MustParseKey("Dog?"), tp))

	free, err := u.TypeParams(TypeParam{Name: "U"})
	require.NoError(t, err)
	assert.True(t, u.IsAssignable(u.MustParseKey("Int?"), free[0]))
}

// TestIsAssignable_Memoized verifies concrete results land in the LRU and a disabled cache still works.
func TestIsAssignable_Memoized(t *testing.T) {
	t.Parallel()

	u := animalUniverse()
	dog, animal := u.MustParseKey("Dog"), u.MustParseKey("Animal")
	require.True(t, u.IsAssignable(dog, animal))
	v, ok := u.assign.Get("Dog => Animal")
	require.True(t, ok)
	assert.True(t, v)
	assert.True(t, u.IsAssignable(dog, animal))

	off := animalUniverse(WithAssignCacheSize(0))
	assert.Nil(t, off.assign)
	assert.True(t, off.IsAssignable(dog, animal))
}

// TestDeclare_PurgesMemo verifies new declarations invalidate memoized answers.
func TestDeclare_PurgesMemo(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	cat, animal := NewKey("Cat"), NewKey("Animal")
	require.False(t, u.IsAssignable(cat, animal))

	require.NoError(t, u.Declare(ClassifierDecl{Name: "Cat", Supertypes: []TypeExpr{MustParseTypeExpr("Animal")}}))
	assert.True(t, u.IsAssignable(cat, animal))
}

//
// -----------------------------------------------------------------------------
// IsSubtypeOf / unify / substitute
// -----------------------------------------------------------------------------

// TestIsSubtypeOf_IgnoresQualifiers verifies the subtype relation looks through qualifiers.
func TestIsSubtypeOf_IgnoresQualifiers(t *testing.T) {
	t.Parallel()

	u := animalUniverse()
	assert.True(t, u.IsSubtypeOf(u.MustParseKey("@Primary Puppy"), u.MustParseKey("Animal")))
	assert.False(t, u.IsSubtypeOf(u.MustParseKey("Animal"), u.MustParseKey("@Primary Puppy")))
}

// TestUnify_BindsThroughSupertypes verifies a pattern unifies with a request via its supertypes.
func TestUnify_BindsThroughSupertypes(t *testing.T) {
	t.Parallel()

	u := animalUniverse()
	ps, err := u.TypeParams(TypeParam{Name: "T"})
	require.NoError(t, err)
	pat, err := u.PatternOf(MustParseTypeExpr("List<T>"), ps...)
	require.NoError(t, err)

	subst := map[string]Key{}
	require.True(t, u.unify(pat, u.MustParseKey("Collection<Dog>"), subst, 0))
	assert.Equal(t, "Dog", subst["T"].String())

	inst, complete := substitute(pat, subst)
	require.True(t, complete)
	assert.Equal(t, "List<Dog>", inst.String())

	assert.False(t, u.unify(pat, u.MustParseKey("Dog"), map[string]Key{}, 0))
}

// TestUnify_RepeatedParameter verifies a parameter used twice must bind consistently.
func TestUnify_RepeatedParameter(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	ps, err := u.TypeParams(TypeParam{Name: "T"})
	require.NoError(t, err)
	pat, err := u.PatternOf(MustParseTypeExpr("Pair<T, T?>"), ps...)
	require.NoError(t, err)

	assert.True(t, u.unify(pat, u.MustParseKey("Pair<Int, Int?>"), map[string]Key{}, 0))
	assert.False(t, u.unify(pat, u.MustParseKey("Pair<Int, String?>"), map[string]Key{}, 0))
}

// TestSubstitute_Unbound verifies unbound parameters are reported.
func TestSubstitute_Unbound(t *testing.T) {
	t.Parallel()

	u := NewUniverse()
	ps, err := u.TypeParams(TypeParam{Name: "A"}, TypeParam{Name: "B"})
	require.NoError(t, err)
	pat, err := u.PatternOf(MustParseTypeExpr("Map<A, B>"), ps...)
	require.NoError(t, err)

	out, complete := substitute(pat, map[string]Key{"A": NewKey("Int")})
	assert.False(t, complete)
	assert.Equal(t, "Map<Int, $B>", out.String())
}
