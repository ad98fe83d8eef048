package marker

import (
	"strings"

	"github.com/conduit-lang/marker/runtime/schema"
)

// Filter decides which marker types are visited while discovering a
// meta-marker chain. A type rejected by the filter is skipped along with its
// own meta-markers.
//
// Filters take part in the chain cache key, so implementations must return a
// stable Key: two filters with equal keys are treated as the same filter.
type Filter interface {
	// Matches reports whether the marker type should be visited.
	Matches(t *schema.MarkerType) bool
	// Key returns a stable identity for cache keying.
	Key() string
}

// Predefined filters.
var (
	// None filters nothing; every marker type is visited.
	None Filter = noneFilter{}
	// All filters everything; no marker type is visited.
	All Filter = allFilter{}
	// Internal skips marker types in the engine's own namespace.
	Internal = ForNamePrefix("internal.")
)

type noneFilter struct{}

func (noneFilter) Matches(*schema.MarkerType) bool { return true }
func (noneFilter) Key() string                     { return "none" }

type allFilter struct{}

func (allFilter) Matches(*schema.MarkerType) bool { return false }
func (allFilter) Key() string                     { return "all" }

// ForNamePrefix returns a filter that skips marker types whose name starts
// with any of the given prefixes.
func ForNamePrefix(prefixes ...string) Filter {
	return prefixFilter{prefixes: prefixes}
}

type prefixFilter struct {
	prefixes []string
}

func (f prefixFilter) Matches(t *schema.MarkerType) bool {
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(t.Name, prefix) {
			return false
		}
	}
	return true
}

func (f prefixFilter) Key() string {
	return "prefix(" + strings.Join(f.prefixes, ",") + ")"
}

// AllMatch returns a filter that visits a marker type only when every given
// filter does.
func AllMatch(filters ...Filter) Filter {
	return comboFilter{filters: filters, any: false}
}

// AnyMatch returns a filter that visits a marker type when at least one of
// the given filters does.
func AnyMatch(filters ...Filter) Filter {
	return comboFilter{filters: filters, any: true}
}

type comboFilter struct {
	filters []Filter
	any     bool
}

func (f comboFilter) Matches(t *schema.MarkerType) bool {
	for _, filter := range f.filters {
		ok := filter.Matches(t)
		if f.any && ok {
			return true
		}
		if !f.any && !ok {
			return false
		}
	}
	return !f.any
}

func (f comboFilter) Key() string {
	keys := make([]string, len(f.filters))
	for i, filter := range f.filters {
		keys[i] = filter.Key()
	}
	op := "all"
	if f.any {
		op = "any"
	}
	return op + "(" + strings.Join(keys, ";") + ")"
}
