package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/marker/runtime/schema"
)

func TestFilters(t *testing.T) {
	plain := &schema.MarkerType{Name: "Service"}
	internal := &schema.MarkerType{Name: "internal.Reserved"}

	assert.True(t, None.Matches(plain))
	assert.True(t, None.Matches(internal))
	assert.False(t, All.Matches(plain))

	assert.True(t, Internal.Matches(plain))
	assert.False(t, Internal.Matches(internal))

	custom := ForNamePrefix("internal.", "sys.")
	assert.False(t, custom.Matches(&schema.MarkerType{Name: "sys.Hook"}))
	assert.True(t, custom.Matches(plain))
}

func TestFilterCombinators(t *testing.T) {
	plain := &schema.MarkerType{Name: "Service"}
	internal := &schema.MarkerType{Name: "internal.Reserved"}

	// AllMatch visits only when every filter does.
	assert.True(t, AllMatch(None, Internal).Matches(plain))
	assert.False(t, AllMatch(None, Internal).Matches(internal))
	assert.False(t, AllMatch(All, None).Matches(plain))
	assert.True(t, AllMatch().Matches(plain), "empty conjunction matches everything")

	// AnyMatch visits when at least one filter does.
	assert.True(t, AnyMatch(All, None).Matches(plain))
	assert.True(t, AnyMatch(Internal, None).Matches(internal))
	assert.False(t, AnyMatch(All, Internal).Matches(internal))
	assert.False(t, AnyMatch().Matches(plain), "empty disjunction matches nothing")
}

func TestFilterKeys(t *testing.T) {
	// Equal construction must produce equal keys: keys are cache identities.
	assert.Equal(t, ForNamePrefix("a.", "b.").Key(), ForNamePrefix("a.", "b.").Key())
	assert.NotEqual(t, ForNamePrefix("a.").Key(), ForNamePrefix("b.").Key())
	assert.NotEqual(t, None.Key(), All.Key())
	assert.Equal(t, AnyMatch(None, All).Key(), AnyMatch(None, All).Key())
	assert.NotEqual(t, AnyMatch(None, All).Key(), AllMatch(None, All).Key())
}
