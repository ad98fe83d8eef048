package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/marker/runtime/schema"
)

// chainedSchema declares a three-level chain where each level's attribute
// overrides the one above it: Concrete.value1 -> Middle.value -> Abstract.value.
const chainedSchema = `{
	"markers": [
		{"name": "Abstract", "attributes": [
			{"name": "value", "type": "string", "default": ""}
		]},
		{"name": "Middle",
		 "attributes": [
			{"name": "value", "type": "string", "default": "", "alias": {"attribute": "value", "marker": "Abstract"}}
		 ],
		 "markers": [{"type": "Abstract", "values": {"value": "declared"}}]},
		{"name": "Concrete",
		 "attributes": [
			{"name": "value1", "type": "string", "default": "", "alias": {"attribute": "value", "marker": "Middle"}}
		 ],
		 "markers": [{"type": "Middle"}]}
	]
}`

func TestMergedView_OverrideFlowsUpTheChain(t *testing.T) {
	registerSchema(t, chainedSchema)

	inst := schema.NewInstance(markerType(t, "Concrete"), map[string]any{"value1": "3"})
	view, err := FromInstance(inst)
	require.NoError(t, err)

	assert.Equal(t, "3", view.GetAttributeValue("Concrete", "value1"))
	assert.Equal(t, "3", view.GetAttributeValue("Middle", "value"))
	assert.Equal(t, "3", view.GetAttributeValue("Abstract", "value"))
}

func TestMergedView_RootAuthorityReadsBoundInstance(t *testing.T) {
	registerSchema(t, chainedSchema)

	// Two views share one cached structural chain, which never holds an
	// instance itself; every read landing on the root must go through the
	// view's own bound root.
	first := schema.NewInstance(markerType(t, "Concrete"), map[string]any{"value1": "3"})
	second := schema.NewInstance(markerType(t, "Concrete"), map[string]any{"value1": "7"})

	v1, err := FromInstance(first)
	require.NoError(t, err)
	v2, err := FromInstance(second)
	require.NoError(t, err)

	assert.Equal(t, "3", v1.GetAttributeValue("Concrete", "value1"))
	assert.Equal(t, "3", v1.GetAttributeValue("Abstract", "value"))
	assert.Equal(t, "7", v2.GetAttributeValue("Concrete", "value1"))
	assert.Equal(t, "7", v2.GetAttributeValue("Middle", "value"))
	assert.Equal(t, "7", v2.GetAttributeValue("Abstract", "value"))
}

func TestMergedView_PresenceQueries(t *testing.T) {
	registerSchema(t, chainedSchema)

	inst := schema.NewInstance(markerType(t, "Concrete"), nil)
	view, err := FromInstance(inst)
	require.NoError(t, err)

	assert.True(t, view.IsPresent("Concrete"))
	assert.True(t, view.IsPresent("Middle"))
	assert.True(t, view.IsPresent("Abstract"))
	assert.False(t, view.IsPresent("Unrelated"))

	assert.False(t, view.IsMetaPresent("Concrete"))
	assert.True(t, view.IsMetaPresent("Middle"))
	assert.True(t, view.IsMetaPresent("Abstract"))

	assert.Same(t, inst, view.Root())
	assert.Equal(t, "Concrete", view.RootType().Name)
	assert.Nil(t, view.GetMeta("Concrete"))
	assert.NotNil(t, view.GetMeta("Middle"))
	assert.Nil(t, view.Get("Unrelated"))
}

func TestMergedView_AbsentLookupsReturnNil(t *testing.T) {
	registerSchema(t, chainedSchema)

	inst := schema.NewInstance(markerType(t, "Concrete"), nil)
	view, err := FromInstance(inst)
	require.NoError(t, err)

	assert.Nil(t, view.GetAttributeValue("Unrelated", "value"))
	assert.Nil(t, view.GetAttributeValue("Concrete", "missing"))
	assert.False(t, view.HasAttribute("Concrete", "missing"))
	assert.True(t, view.HasAttribute("Middle", "value"))
}

func TestSynthesize_PassThroughWhenNothingAliased(t *testing.T) {
	registerSchema(t, `{
		"markers": [
			{"name": "Plain", "attributes": [{"name": "value", "type": "string", "default": ""}]}
		]
	}`)

	inst := schema.NewInstance(markerType(t, "Plain"), map[string]any{"value": "x"})
	view, err := FromInstance(inst)
	require.NoError(t, err)

	synth, ok := view.Synthesize("Plain")
	require.True(t, ok)
	assert.Same(t, inst, synth, "unaliased root synthesizes to the original instance")
	assert.False(t, IsSynthesized(synth))
}

func TestSynthesize_AliasedValuesAndCaching(t *testing.T) {
	registerSchema(t, chainedSchema)

	inst := schema.NewInstance(markerType(t, "Concrete"), map[string]any{"value1": "3"})
	view, err := FromInstance(inst)
	require.NoError(t, err)

	abstract, ok := view.Synthesize("Abstract")
	require.True(t, ok)
	assert.True(t, IsSynthesized(abstract))
	assert.Equal(t, "3", abstract.Value("value"))
	assert.Equal(t, "Abstract", abstract.Type().Name)

	again, ok := view.Synthesize("Abstract")
	require.True(t, ok)
	assert.Same(t, abstract, again, "synthesis is cached per view")

	_, ok = view.Synthesize("Unrelated")
	assert.False(t, ok)
}

func TestSynthesizeAll_DiscoveryOrder(t *testing.T) {
	registerSchema(t, chainedSchema)

	inst := schema.NewInstance(markerType(t, "Concrete"), nil)
	view, err := FromInstance(inst)
	require.NoError(t, err)

	all := view.SynthesizeAll()
	require.Len(t, all, 3)
	assert.Equal(t, "Concrete", all[0].Type().Name)
	assert.Equal(t, "Middle", all[1].Type().Name)
	assert.Equal(t, "Abstract", all[2].Type().Name)
}

func TestMergedView_MetaDeclaredValueWithoutOverride(t *testing.T) {
	registerSchema(t, chainedSchema)

	// Middle as root: its own value is default, so Abstract keeps the value
	// Middle declared on it.
	inst := schema.NewInstance(markerType(t, "Middle"), nil)
	view, err := FromInstance(inst)
	require.NoError(t, err)

	assert.Equal(t, "", view.GetAttributeValue("Middle", "value"))
	assert.Equal(t, "", view.GetAttributeValue("Abstract", "value"),
		"an attribute override applies even when the root holds its default")
}

func TestOf_ExplicitChain(t *testing.T) {
	registerSchema(t, chainedSchema)

	concrete := schema.NewInstance(markerType(t, "Concrete"), map[string]any{"value1": "9"})
	middle := schema.NewInstance(markerType(t, "Middle"), nil)

	view, err := Of(concrete, middle)
	require.NoError(t, err)
	assert.Equal(t, []string{"Concrete", "Middle"}, view.MarkerTypes())
	assert.Equal(t, "9", view.GetAttributeValue("Middle", "value"))
	assert.False(t, view.IsPresent("Abstract"), "explicit chains do not discover meta-markers")
}

func TestOf_DuplicateType(t *testing.T) {
	registerSchema(t, chainedSchema)

	a := schema.NewInstance(markerType(t, "Middle"), nil)
	b := schema.NewInstance(markerType(t, "Middle"), nil)
	_, err := Of(a, b)
	require.Error(t, err)
	code, _ := CodeOf(err)
	assert.Equal(t, ErrDuplicateMarkerType, code)
}

func TestOf_Empty(t *testing.T) {
	registerSchema(t, chainedSchema)

	_, err := Of()
	require.Error(t, err)
	code, _ := CodeOf(err)
	assert.Equal(t, ErrMissingArgument, code)
}

func TestEqual_AcrossBackings(t *testing.T) {
	registerSchema(t, chainedSchema)

	abstract := markerType(t, "Abstract")

	bound := schema.NewInstance(abstract, map[string]any{"value": "3"})
	mapped, err := Map(abstract, map[string]any{"value": "3"})
	require.NoError(t, err)

	concrete := schema.NewInstance(markerType(t, "Concrete"), map[string]any{"value1": "3"})
	view, err := FromInstance(concrete)
	require.NoError(t, err)
	synth, ok := view.Synthesize("Abstract")
	require.True(t, ok)

	assert.True(t, Equal(bound, mapped))
	assert.True(t, Equal(bound, synth))
	assert.True(t, Equal(synth, mapped))

	other := schema.NewInstance(abstract, map[string]any{"value": "4"})
	assert.False(t, Equal(bound, other))

	different := schema.NewInstance(markerType(t, "Middle"), map[string]any{"value": "3"})
	assert.False(t, Equal(bound, different), "different marker types are never equal")

	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(bound, nil))
}

func TestSynthesized_StringRendering(t *testing.T) {
	registerSchema(t, chainedSchema)

	concrete := schema.NewInstance(markerType(t, "Concrete"), map[string]any{"value1": "3"})
	view, err := FromInstance(concrete)
	require.NoError(t, err)

	synth, ok := view.Synthesize("Abstract")
	require.True(t, ok)
	assert.Equal(t, "@Abstract(value=3)", synth.(*synthesizedInstance).String())

	mapped, err := Map(markerType(t, "Abstract"), map[string]any{"value": "3"})
	require.NoError(t, err)
	assert.Equal(t, "@Abstract(value=3)", mapped.(*mapInstance).String())
}
