package di

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryProducers(es []AggregateEntry) map[string]string {
	out := map[string]string{}
	for _, e := range es {
		out[e.ID] = e.Producer.ID
	}
	return out
}

func entryOrder(es []AggregateEntry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func (f *fixture) mapEntry(id, entry, comp string, policy OverridePolicy) *Producer {
	p := &Producer{
		ID:        id,
		Key:       f.k("Handler"),
		Policy:    policy,
		Component: comp,
		Contribution: Contribution{
			Kind:      ContributeMapEntry,
			Aggregate: f.k("Map<String, Handler>"),
			EntryKey:  entry,
		},
	}
	f.c.MustRegister(p)
	return p
}

func parentChild() *fixture {
	return newFixture().component("app", "").component("child", "app")
}

//
// -----------------------------------------------------------------------------
// Override order
// -----------------------------------------------------------------------------

// TestAggregate_ChildOverridesParent verifies the child's override wins for the child
// while the parent still sees its own entry.
func TestAggregate_ChildOverridesParent(t *testing.T) {
	t.Parallel()

	f := parentChild()
	f.mapEntry("P1", "k", "app", PolicyFail)
	f.mapEntry("P2", "k", "child", PolicyOverride)
	a := NewAggregator(f.c, f.hierarchy(t))

	kind, es, diags := a.Aggregate(f.k("Map<String, Handler>"), "child")
	require.Empty(t, diags)
	assert.Equal(t, ContributeMapEntry, kind)
	assert.Equal(t, map[string]string{"k": "P2"}, entryProducers(es))

	_, es, diags = a.Aggregate(f.k("Map<String, Handler>"), "app")
	require.Empty(t, diags)
	assert.Equal(t, map[string]string{"k": "P1"}, entryProducers(es))
}

// TestAggregate_FailAndDrop verifies Fail reports the collision and Drop keeps the parent entry.
func TestAggregate_FailAndDrop(t *testing.T) {
	t.Parallel()

	f := parentChild()
	f.mapEntry("P1", "k", "app", PolicyFail)
	f.mapEntry("P2", "k", "child", PolicyFail)
	_, es, diags := NewAggregator(f.c, f.hierarchy(t)).Aggregate(f.k("Map<String, Handler>"), "child")
	assert.Nil(t, es)
	require.Len(t, diags, 1)
	assert.Equal(t, DuplicateMultiBindingEntry, diags[0].Kind)
	assert.Equal(t, []string{"P1", "P2"}, diags[0].Candidates)
	assert.True(t, errors.Is(diags[0], DuplicateMultiBindingEntry))

	g := parentChild()
	g.mapEntry("P1", "k", "app", PolicyFail)
	g.mapEntry("P2", "k", "child", PolicyDrop)
	_, es, diags = NewAggregator(g.c, g.hierarchy(t)).Aggregate(g.k("Map<String, Handler>"), "child")
	require.Empty(t, diags)
	assert.Equal(t, map[string]string{"k": "P1"}, entryProducers(es))
}

// TestAggregate_Order verifies root-level entries come first and overrides keep their position.
func TestAggregate_Order(t *testing.T) {
	t.Parallel()

	f := parentChild()
	f.mapEntry("childB", "b", "child", PolicyFail)
	f.mapEntry("appA", "a", "app", PolicyFail)
	f.mapEntry("rootZ", "z", "", PolicyFail)
	f.mapEntry("appC", "c", "app", PolicyFail)
	f.mapEntry("childA", "a", "child", PolicyOverride)

	_, es, diags := NewAggregator(f.c, f.hierarchy(t)).Aggregate(f.k("Map<String, Handler>"), "child")
	require.Empty(t, diags)
	assert.Equal(t, []string{"z", "a", "c", "b"}, entryOrder(es))
	assert.Equal(t, "childA", es[1].Producer.ID)
	assert.Equal(t, []string{"a", "b", "c", "z"}, EntryIDs(es))
}

// TestAggregate_Sets verifies set elements are identified by producer id unless an entry key is set.
func TestAggregate_Sets(t *testing.T) {
	t.Parallel()

	f := parentChild()
	agg := f.k("Set<Plugin>")
	for _, p := range []*Producer{
		{ID: "auth", Key: f.k("AuthPlugin"), Component: "app"},
		{ID: "log", Key: f.k("LogPlugin"), Component: "child"},
		{ID: "auth2", Key: f.k("AuthPlugin"), Component: "child", Policy: PolicyOverride},
	} {
		p.Contribution = Contribution{Kind: ContributeSetElement, Aggregate: agg}
		f.add(p)
	}
	f.add(&Producer{
		ID: "auth3", Key: f.k("AuthPlugin"), Component: "child", Policy: PolicyOverride,
		Contribution: Contribution{Kind: ContributeSetElement, Aggregate: agg, EntryKey: "auth"},
	})

	kind, es, diags := NewAggregator(f.c, f.hierarchy(t)).Aggregate(agg, "child")
	require.Empty(t, diags)
	assert.Equal(t, ContributeSetElement, kind)
	assert.Equal(t, []string{"auth", "log", "auth2"}, entryOrder(es))
	assert.Equal(t, "auth3", es[0].Producer.ID)
}

// TestAggregate_Errors verifies non-aggregates and unknown components.
func TestAggregate_Errors(t *testing.T) {
	t.Parallel()

	f := parentChild()
	a := NewAggregator(f.c, f.hierarchy(t))
	_, _, diags := a.Aggregate(f.k("Set<Nope>"), "app")
	require.Len(t, diags, 1)
	assert.Equal(t, NoBindingFound, diags[0].Kind)

	require.NoError(t, f.c.DeclareAggregate(f.k("Set<Empty>"), ContributeSetElement))
	_, es, diags := a.Aggregate(f.k("Set<Empty>"), "app")
	assert.Empty(t, diags)
	assert.Empty(t, es)

	_, _, diags = a.Aggregate(f.k("Set<Empty>"), "ghost")
	require.Len(t, diags, 1)
	assert.Equal(t, UnknownComponent, diags[0].Kind)
}
