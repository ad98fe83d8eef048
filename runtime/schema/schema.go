// Package schema holds the declared-element model and the process-wide
// registry that backs the marker resolution engine. The registry plays the
// role of a reflection facade: it answers "what attributes does this marker
// type declare", "what markers sit on this element", and "what are this
// element's ancestors" without the engine ever touching host reflection.
package schema

// ElementKind identifies what sort of declared element an Element wraps.
type ElementKind string

const (
	// KindType is a declared class-like type.
	KindType ElementKind = "type"
	// KindMarker is a marker type acting as an annotated element.
	KindMarker ElementKind = "marker"
	// KindMethod is a method declared on a type.
	KindMethod ElementKind = "method"
	// KindOther is any element without a hierarchy.
	KindOther ElementKind = "other"
)

// Element is a canonical handle to a declared element. The registry creates
// exactly one Element per distinct declared entity, so pointer identity is
// stable and can be used as a cache or visited-set key.
//
// Methods are named "Owner#name". Marker types appear both as a *MarkerType
// and as an Element of KindMarker so they can be traversed like any other
// annotated element.
type Element struct {
	Kind ElementKind
	Name string

	// Type hierarchy, populated for KindType and KindMarker.
	Super      *Element
	Interfaces []*Element

	// Method signature, populated for KindMethod.
	Owner      *Element
	MethodName string
	Params     []string
	Returns    string

	// Markers directly declared on this element. For KindMarker these are
	// the marker type's meta-markers.
	Markers []Instance

	// Marker is non-nil when Kind == KindMarker.
	Marker *MarkerType
}

// MarkerType describes a kind of metadata: its named, typed, optionally
// defaulted attributes, the meta-markers declared on the type itself, and the
// repeatable-container convention it participates in.
type MarkerType struct {
	Name       string
	Attributes []*Attribute
	Markers    []Instance

	// Repeatable names the container marker type whose sole "value"
	// attribute holds an array of this type. Empty if not repeatable.
	Repeatable string
}

// Attribute returns the declared attribute with the given name, or nil.
func (t *MarkerType) Attribute(name string) *Attribute {
	for _, attr := range t.Attributes {
		if attr.Name == name {
			return attr
		}
	}
	return nil
}

// AttributeIndex returns the declaration-order index of the named attribute,
// or -1 if the marker type does not declare it.
func (t *MarkerType) AttributeIndex(name string) int {
	for i, attr := range t.Attributes {
		if attr.Name == name {
			return i
		}
	}
	return -1
}

// Attribute is a single named value slot declared on a marker type.
type Attribute struct {
	Name    string
	Type    string
	Default any
	Alias   *Alias
}

// Alias declares that an attribute's effective value must always agree with
// another attribute, optionally on a different marker type.
//
// Attribute and Value are two slots for the same thing: the target attribute
// name. When both are set, Attribute wins; when neither is set, the aliasing
// attribute's own name is used. This two-slot rule is deliberate and must be
// preserved.
type Alias struct {
	Attribute string
	Value     string
	Marker    string
}

// TargetName resolves the declared target attribute name, falling back to
// the aliasing attribute's own name when both slots are empty.
func (a *Alias) TargetName(own string) string {
	if a.Attribute != "" {
		return a.Attribute
	}
	if a.Value != "" {
		return a.Value
	}
	return own
}

// Instance is a concrete, bound occurrence of a marker type. Value returns
// the held value for an attribute, or the attribute's declared default when
// the instance does not carry one. Implementations other than registry-bound
// instances exist: map-synthesized markers and merged-view synthesized
// markers both satisfy Instance, and callers must not care which they hold.
type Instance interface {
	Type() *MarkerType
	Value(name string) any
}

// boundInstance is a registry-materialized marker occurrence.
type boundInstance struct {
	typ    *MarkerType
	values map[string]any
}

// NewInstance builds a marker instance holding the given attribute values.
// Attributes absent from values fall back to their declared defaults.
func NewInstance(typ *MarkerType, values map[string]any) Instance {
	if values == nil {
		values = map[string]any{}
	}
	return &boundInstance{typ: typ, values: values}
}

func (b *boundInstance) Type() *MarkerType { return b.typ }

func (b *boundInstance) Value(name string) any {
	if v, ok := b.values[name]; ok {
		return v
	}
	if attr := b.typ.Attribute(name); attr != nil {
		return attr.Default
	}
	return nil
}
