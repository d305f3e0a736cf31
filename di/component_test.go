package di

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHierarchy_Ancestry verifies ancestry, roots and scope reachability.
func TestHierarchy_Ancestry(t *testing.T) {
	t.Parallel()

	h := MustHierarchy(
		Component{ID: "app", Scopes: []string{"singleton"}},
		Component{ID: "session", Parent: "app", Scopes: []string{"user"}},
		Component{ID: "request", Parent: "session"},
		Component{ID: "other"},
	)

	assert.Equal(t, []string{"app", "session", "request"}, h.Ancestry("request"))
	assert.Equal(t, "app", h.Root("request"))
	assert.Equal(t, "other", h.Root("other"))
	assert.Equal(t, "", h.Root("missing"))
	assert.Equal(t, []string{"app", "request", "session", "singleton", "user"}, h.ReachableScopes("request"))
	assert.Equal(t, []string{"app", "session", "request", "other"}, h.IDs())

	owner, ok := h.Owner("request", "singleton")
	require.True(t, ok)
	assert.Equal(t, "app", owner)
	owner, ok = h.Owner("request", "session")
	require.True(t, ok)
	assert.Equal(t, "session", owner)
	assert.False(t, h.Reaches("app", "user"))
	assert.False(t, h.Reaches("other", "singleton"))

	c, ok := h.Get("session")
	require.True(t, ok)
	assert.Equal(t, "app", c.Parent)
}

// TestHierarchy_NearestOwner verifies the nearest ancestor providing a scope owns it.
func TestHierarchy_NearestOwner(t *testing.T) {
	t.Parallel()

	h := MustHierarchy(
		Component{ID: "app", Scopes: []string{"cache"}},
		Component{ID: "child", Parent: "app", Scopes: []string{"cache"}},
	)
	owner, ok := h.Owner("child", "cache")
	require.True(t, ok)
	assert.Equal(t, "child", owner)
	owner, _ = h.Owner("app", "cache")
	assert.Equal(t, "app", owner)
}

// TestNewHierarchy_Errors verifies unknown parents, duplicates and parent cycles.
func TestNewHierarchy_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewHierarchy(Component{ID: "a", Parent: "ghost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, UnknownComponent))

	_, err = NewHierarchy(Component{ID: "a"}, Component{ID: "a"})
	assert.True(t, errors.Is(err, DuplicateDeclaration))

	_, err = NewHierarchy(Component{})
	assert.True(t, errors.Is(err, UnknownComponent))

	_, err = NewHierarchy(
		Component{ID: "a", Parent: "c"},
		Component{ID: "b", Parent: "a"},
		Component{ID: "c", Parent: "b"},
	)
	require.Error(t, err)
	var d Diagnostic
	require.True(t, errors.As(err, &d))
	assert.Equal(t, CircularDependency, d.Kind)
	assert.Equal(t, []string{"a", "c", "b", "a"}, d.Path)

	require.Panics(t, func() { MustHierarchy(Component{ID: "x", Parent: "x"}) })
}
