package marker

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/conduit-lang/marker/runtime/schema"
)

// MergedView couples one concrete root marker instance with the resolved
// meta-marker chain of its type. Attribute queries against any marker type in
// the chain read through the chain's authority table, so an attribute
// overridden closer to the root shadows the declared value of a meta-marker.
type MergedView struct {
	root  *typeMapping
	chain *chain

	mu          sync.Mutex
	synthesized map[string]schema.Instance
}

// FromInstance builds the merged view of a root instance, discovering (or
// reusing the cached) meta-marker chain for its type under the Internal
// filter.
func FromInstance(root schema.Instance) (*MergedView, error) {
	return FromInstanceFiltered(root, Internal)
}

// FromInstanceFiltered builds the merged view of a root instance with an
// explicit filter controlling which meta-markers take part in the chain.
func FromInstanceFiltered(root schema.Instance, filter Filter) (*MergedView, error) {
	c, err := chainFor(root.Type(), filter)
	if err != nil {
		return nil, err
	}
	bound, err := c.mappings[root.Type().Name].bind(root)
	if err != nil {
		return nil, err
	}
	return &MergedView{
		root:        bound,
		chain:       c,
		synthesized: make(map[string]schema.Instance, len(c.mappings)),
	}, nil
}

// Of merges the given instances in order, the first acting as root. Unlike
// FromInstance, the chain is exactly the supplied sequence rather than the
// discovered meta-marker closure, and is not cached.
func Of(instances ...schema.Instance) (*MergedView, error) {
	if len(instances) == 0 {
		return nil, newError(ErrMissingArgument, "at least one instance is required")
	}
	c := &chain{rootType: instances[0].Type(), mappings: make(map[string]*typeMapping, len(instances))}
	var prev *typeMapping
	for _, inst := range instances {
		name := inst.Type().Name
		if _, dup := c.mappings[name]; dup {
			return nil, newError(ErrDuplicateMarkerType, "duplicate marker type: %s", name)
		}
		node, err := newTypeMapping(prev, inst.Type(), inst)
		if err != nil {
			return nil, err
		}
		c.mappings[name] = node
		c.order = append(c.order, name)
		prev = node
	}
	bound, err := c.mappings[c.rootType.Name].bind(instances[0])
	if err != nil {
		return nil, err
	}
	return &MergedView{
		root:        bound,
		chain:       c,
		synthesized: make(map[string]schema.Instance, len(c.mappings)),
	}, nil
}

// mapping returns the chain node for a marker type, substituting the bound
// root for the cached unbound root node.
func (v *MergedView) mapping(markerType string) (*typeMapping, bool) {
	m, ok := v.chain.mappings[markerType]
	if !ok {
		return nil, false
	}
	if m.isRoot() {
		return v.root, true
	}
	return m, true
}

// Root returns the bound root instance.
func (v *MergedView) Root() schema.Instance {
	return v.root.instance
}

// RootType returns the root marker type of the chain.
func (v *MergedView) RootType() *schema.MarkerType {
	return v.chain.rootType
}

// IsPresent reports whether the marker type occurs anywhere in the chain.
func (v *MergedView) IsPresent(markerType string) bool {
	_, ok := v.mapping(markerType)
	return ok
}

// IsMetaPresent reports whether the marker type occurs in the chain above
// the root.
func (v *MergedView) IsMetaPresent(markerType string) bool {
	m, ok := v.mapping(markerType)
	return ok && !m.isRoot()
}

// Get returns the bound instance for any marker type in the chain, the root
// included, or nil when the type is not part of the chain.
func (v *MergedView) Get(markerType string) schema.Instance {
	m, ok := v.mapping(markerType)
	if !ok {
		return nil
	}
	return m.instance
}

// GetMeta returns the bound meta-marker instance for the type, or nil when
// the type is absent or is the root itself.
func (v *MergedView) GetMeta(markerType string) schema.Instance {
	m, ok := v.mapping(markerType)
	if !ok || m.isRoot() {
		return nil
	}
	return m.instance
}

// HasAttribute reports whether the marker type is in the chain and declares
// the named attribute.
func (v *MergedView) HasAttribute(markerType, attribute string) bool {
	m, ok := v.mapping(markerType)
	return ok && m.hasAttribute(attribute)
}

// GetAttributeValue returns the effective value of an attribute of any
// marker type in the chain, resolving through the authority table. Absent
// marker types or attribute names yield nil, never an error.
func (v *MergedView) GetAttributeValue(markerType, attribute string) any {
	m, ok := v.mapping(markerType)
	if !ok {
		return nil
	}
	ref, found, err := m.attributeMappingByName(attribute)
	if err != nil || !found {
		return nil
	}
	return v.valueOf(ref)
}

// valueOf reads the value behind an authority reference. References landing
// on the root re-resolve against the bound root so that deferred alias-set
// decisions apply, and read the bound root's instance directly: the cached
// structural chain stays unbound, so the re-resolved reference may still be
// owned by the instance-less shared node.
func (v *MergedView) valueOf(ref attrRef) any {
	if !ref.owner.isRoot() {
		return ref.value()
	}
	resolved, err := v.root.attributeMapping(ref.idx)
	if err != nil {
		return nil
	}
	return v.root.instance.Value(resolved.attr.Name)
}

// Synthesize returns an instance of the marker type whose attribute reads go
// through GetAttributeValue. When the type's node has no aliased attributes
// at all, the original bound instance is returned unchanged. The result is
// cached per marker type on this view.
func (v *MergedView) Synthesize(markerType string) (schema.Instance, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cached, ok := v.synthesized[markerType]; ok {
		return cached, cached != nil
	}
	m, ok := v.mapping(markerType)
	if !ok {
		v.synthesized[markerType] = nil
		return nil, false
	}
	var inst schema.Instance
	if m.hasAliasedAttributes() || m.instance == nil {
		inst = &synthesizedInstance{
			view:    v,
			mapping: m,
			values:  make(map[string]any, len(m.attributes)),
		}
	} else {
		inst = m.instance
	}
	v.synthesized[markerType] = inst
	return inst, true
}

// SynthesizeAll synthesizes every marker type in the chain, in discovery
// order.
func (v *MergedView) SynthesizeAll() []schema.Instance {
	out := make([]schema.Instance, 0, len(v.chain.order))
	for _, name := range v.chain.order {
		if inst, ok := v.Synthesize(name); ok {
			out = append(out, inst)
		}
	}
	return out
}

// MarkerTypes returns the marker type names of the chain in discovery order.
func (v *MergedView) MarkerTypes() []string {
	out := make([]string, len(v.chain.order))
	copy(out, v.chain.order)
	return out
}

// synthesizedInstance is the merged view of one marker type in a chain,
// behaving like an ordinary instance. Attribute reads resolve through the
// owning view and are memoized per attribute.
type synthesizedInstance struct {
	view    *MergedView
	mapping *typeMapping

	mu     sync.Mutex
	values map[string]any
}

func (s *synthesizedInstance) Type() *schema.MarkerType {
	return s.mapping.markerType
}

func (s *synthesizedInstance) Value(name string) any {
	s.mu.Lock()
	if v, ok := s.values[name]; ok {
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()
	v := s.view.GetAttributeValue(s.mapping.markerType.Name, name)
	s.mu.Lock()
	s.values[name] = v
	s.mu.Unlock()
	return v
}

func (s *synthesizedInstance) String() string {
	return formatInstance(s)
}

// IsSynthesized reports whether an instance is a merged-view synthesized
// marker rather than a registry-bound or map-backed one.
func IsSynthesized(inst schema.Instance) bool {
	_, ok := inst.(*synthesizedInstance)
	return ok
}

// Equal reports value equality of two marker instances: same marker type and
// equal resolved values for every declared attribute, independent of how
// either instance is backed.
func Equal(a, b schema.Instance) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	for _, attr := range a.Type().Attributes {
		if !valuesEqual(a.Value(attr.Name), b.Value(attr.Name)) {
			return false
		}
	}
	return true
}

// formatInstance renders an instance as @Type(a=1, b=2) with attributes in
// declaration order.
func formatInstance(inst schema.Instance) string {
	parts := make([]string, 0, len(inst.Type().Attributes))
	for _, attr := range inst.Type().Attributes {
		parts = append(parts, fmt.Sprintf("%s=%v", attr.Name, inst.Value(attr.Name)))
	}
	return fmt.Sprintf("@%s(%s)", inst.Type().Name, strings.Join(parts, ", "))
}

// formatValues renders a raw value map in key order, used by map-backed
// instances that may carry a subset of the declared attributes.
func formatValues(typeName string, values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, values[k]))
	}
	return fmt.Sprintf("@%s(%s)", typeName, strings.Join(parts, ", "))
}
