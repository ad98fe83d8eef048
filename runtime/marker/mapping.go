package marker

import (
	"reflect"
	"sort"
	"sync"

	"github.com/conduit-lang/marker/runtime/schema"
)

// notFoundIndex marks an attribute slot with no resolved authority.
const notFoundIndex = -1

// typeMapping is one node in a meta-marker chain. It records, for every
// attribute of one marker type, which attribute (possibly on another marker
// type in the chain) is authoritative for its value.
//
// A node built without an instance is the structural form shared by the
// chain cache; bind produces a per-query copy attached to a concrete
// instance. Everything except mappedIdx/mappedSrc is immutable after the
// chain that owns the node is fully constructed.
type typeMapping struct {
	// level is 0 for the root and source.level+1 otherwise.
	level      int
	source     *typeMapping
	instance   schema.Instance
	markerType *schema.MarkerType
	attributes []*schema.Attribute

	// mappedIdx[i] is the authoritative attribute index for attribute i, or
	// notFoundIndex when attribute i stands for itself. mappedSrc[i] is the
	// node owning that authoritative attribute.
	mappedIdx []int
	mappedSrc []*typeMapping

	// aliasSets[i] groups attribute i with the attributes of this marker
	// type it is mutually aliased with, shared by reference across the group.
	aliasSets []*aliasSet

	// aliasedBy maps a target attribute (on any marker type) to the
	// attributes of this marker type that declare it as their alias.
	aliasedBy map[attrKey][]attrRef
}

// attrKey identifies an attribute by marker type and name.
type attrKey struct {
	markerType string
	attribute  string
}

// attrRef is a resolved (attribute, index, owning node) triple.
type attrRef struct {
	attr  *schema.Attribute
	idx   int
	owner *typeMapping
}

// value reads the referenced attribute from the owning node's bound instance.
func (r attrRef) value() any {
	return r.owner.instance.Value(r.attr.Name)
}

// newTypeMapping builds a chain node for markerType. A nil source makes this
// the root; a nil instance is only legal for the root.
func newTypeMapping(source *typeMapping, markerType *schema.MarkerType, instance schema.Instance) (*typeMapping, error) {
	if instance != nil && instance.Type() != markerType {
		return nil, newError(ErrInstanceTypeMismatch,
			"instance of %s cannot be bound to mapping for %s", instance.Type().Name, markerType.Name)
	}
	for check := source; check != nil; check = check.source {
		if check.markerType == markerType {
			return nil, newError(ErrCircularReference,
				"circular meta-marker reference on %s", markerType.Name)
		}
	}
	m := &typeMapping{
		source:     source,
		instance:   instance,
		markerType: markerType,
		attributes: markerType.Attributes,
	}
	if source != nil {
		m.level = source.level + 1
		if instance == nil {
			return nil, newError(ErrInstanceTypeMismatch,
				"non-root mapping for %s must be bound to an instance", markerType.Name)
		}
	}
	if len(m.attributes) == 0 {
		return m, nil
	}

	aliasedBy, err := resolveAliasedBy(m)
	if err != nil {
		return nil, err
	}
	m.aliasedBy = aliasedBy
	m.aliasSets = make([]*aliasSet, len(m.attributes))
	m.mappedIdx = make([]int, len(m.attributes))
	m.mappedSrc = make([]*typeMapping, len(m.attributes))
	for i := range m.attributes {
		m.mappedIdx[i] = notFoundIndex
		m.mappedSrc[i] = m
	}
	if err := m.resolveAliasedAttributes(); err != nil {
		return nil, err
	}
	return m, nil
}

// resolveAliasedBy validates each declared alias and indexes it by target.
func resolveAliasedBy(m *typeMapping) (map[attrKey][]attrRef, error) {
	aliasedBy := make(map[attrKey][]attrRef)
	for idx, attr := range m.attributes {
		if attr.Alias == nil {
			continue
		}
		targetType := m.markerType
		if attr.Alias.Marker != "" {
			t, ok := schema.MarkerTypeOf(attr.Alias.Marker)
			if !ok {
				return nil, newError(ErrUnknownAliasTarget,
					"attribute %s.%s aliases unknown marker type %s",
					m.markerType.Name, attr.Name, attr.Alias.Marker)
			}
			targetType = t
		}
		targetName := attr.Alias.TargetName(attr.Name)
		targetAttr := targetType.Attribute(targetName)
		if targetAttr == nil {
			return nil, newError(ErrUnknownAliasTarget,
				"attribute %s.%s aliases nonexistent attribute %s.%s",
				m.markerType.Name, attr.Name, targetType.Name, targetName)
		}
		if targetType == m.markerType && targetAttr == attr {
			return nil, newError(ErrSelfAlias,
				"attribute %s.%s cannot be an alias for itself", m.markerType.Name, attr.Name)
		}
		if !schema.IsAssignable(targetAttr.Type, attr.Type) {
			return nil, newError(ErrIncompatibleAlias,
				"attribute %s.%s (%s) is not assignable from alias target %s.%s (%s)",
				m.markerType.Name, attr.Name, attr.Type, targetType.Name, targetName, targetAttr.Type)
		}
		key := attrKey{markerType: targetType.Name, attribute: targetName}
		aliasedBy[key] = append(aliasedBy[key], attrRef{attr: attr, idx: idx, owner: m})
	}
	return aliasedBy, nil
}

// resolveAliasedAttributes walks every attribute's alias closure across the
// whole chain from this node down to the root, groups same-type members into
// alias sets, and picks the authoritative attribute for the closure.
func (m *typeMapping) resolveAliasedAttributes() error {
	for idx, attr := range m.attributes {
		aliases := []attrRef{{attr: attr, idx: idx, owner: m}}
		// Descend toward the root; each node can contribute attributes that
		// alias any member found so far, directly or transitively.
		for node := m; node != nil; node = node.source {
			found := make([]attrRef, 0)
			for _, member := range aliases {
				key := attrKey{markerType: member.owner.markerType.Name, attribute: member.attr.Name}
				found = append(found, node.aliasedBy[key]...)
			}
			aliases = append(aliases, found...)
			node.updateAliasSet(aliases)
		}
		if err := determineActiveAttribute(m.markerType, aliases); err != nil {
			return err
		}
	}
	return nil
}

// updateAliasSet groups the members of the closure that belong to this node
// into a shared alias set. Requires at least one pair, and skips groups whose
// members are already jointly assigned.
func (m *typeMapping) updateAliasSet(aliases []attrRef) {
	indexes := make([]int, 0, len(aliases))
	for _, member := range aliases {
		if member.owner == m {
			indexes = append(indexes, member.idx)
		}
	}
	sort.Ints(indexes)
	if len(indexes) < 2 || m.allAliased(indexes) {
		return
	}
	set := &aliasSet{indexes: indexes}
	for _, idx := range indexes {
		m.aliasSets[idx] = set
	}
}

func (m *typeMapping) allAliased(indexes []int) bool {
	var shared *aliasSet
	for _, idx := range indexes {
		curr := m.aliasSets[idx]
		if curr == nil {
			return false
		}
		if shared == nil {
			shared = curr
			continue
		}
		if shared != curr {
			return false
		}
	}
	return true
}

// determineActiveAttribute picks the authoritative attribute for an alias
// closure: the member closest to the root wins. If the winner's node is bound
// its alias set resolves immediately; an unbound winner must be the root, and
// its alias-set resolution is deferred until an instance is bound.
func determineActiveAttribute(markerType *schema.MarkerType, aliases []attrRef) error {
	if len(aliases) < 2 {
		return nil
	}
	highest := aliases[0]
	for _, member := range aliases[1:] {
		if member.owner.level < highest.owner.level {
			highest = member
		}
	}
	activeSource := highest.owner
	active := highest.idx
	if activeSource.instance != nil {
		if set := activeSource.aliasSets[highest.idx]; set != nil {
			resolved, err := set.resolve(activeSource)
			if err != nil {
				return err
			}
			active = resolved
		}
	} else if !activeSource.isRoot() {
		return newError(ErrUnboundAuthority,
			"cannot resolve attribute %s of %s: authoritative mapping for %s is unbound and not the root",
			highest.attr.Name, markerType.Name, activeSource.markerType.Name)
	}
	for _, member := range aliases {
		member.owner.mappedIdx[member.idx] = active
		member.owner.mappedSrc[member.idx] = activeSource
	}
	return nil
}

// bind returns a copy of this node attached to a concrete instance, sharing
// the immutable attribute and alias tables. Binding an instance to a
// previously unbound node resolves any deferred alias sets now that values
// are readable.
func (m *typeMapping) bind(instance schema.Instance) (*typeMapping, error) {
	if instance != nil && instance.Type() != m.markerType {
		return nil, newError(ErrInstanceTypeMismatch,
			"instance of %s cannot be bound to mapping for %s", instance.Type().Name, m.markerType.Name)
	}
	bound := &typeMapping{
		level:      m.level,
		source:     m.source,
		instance:   instance,
		markerType: m.markerType,
		attributes: m.attributes,
		aliasSets:  m.aliasSets,
		aliasedBy:  m.aliasedBy,
	}
	if len(m.attributes) == 0 {
		return bound, nil
	}
	bound.mappedIdx = make([]int, len(m.mappedIdx))
	copy(bound.mappedIdx, m.mappedIdx)
	bound.mappedSrc = make([]*typeMapping, len(m.mappedSrc))
	copy(bound.mappedSrc, m.mappedSrc)

	if m.instance == nil && instance != nil {
		seen := make(map[*aliasSet]bool)
		for _, set := range m.aliasSets {
			if set == nil || seen[set] {
				continue
			}
			seen[set] = true
			if err := set.resolveAndUpdate(bound); err != nil {
				return nil, err
			}
		}
	}
	return bound, nil
}

// ========== query surface ==========

func (m *typeMapping) isRoot() bool {
	return m.level == 0
}

func (m *typeMapping) hasAttribute(name string) bool {
	return m.attributeIndex(name) != notFoundIndex
}

func (m *typeMapping) attributeIndex(name string) int {
	for i, attr := range m.attributes {
		if attr.Name == name {
			return i
		}
	}
	return notFoundIndex
}

// isAliasedAttribute reports whether the named attribute resolves through an
// authority other than itself.
func (m *typeMapping) isAliasedAttribute(name string) bool {
	idx := m.attributeIndex(name)
	if idx == notFoundIndex {
		return false
	}
	return m.mappedIdx[idx] != notFoundIndex
}

// hasAliasedAttributes reports whether any attribute of this node has a
// resolved authority.
func (m *typeMapping) hasAliasedAttributes() bool {
	for _, idx := range m.mappedIdx {
		if idx != notFoundIndex {
			return true
		}
	}
	return false
}

// attributeMapping returns the (attribute, index, owning node) triple to read
// the attribute at idx from, following the authority chain recursively when
// the authority itself is aliased within another node.
func (m *typeMapping) attributeMapping(idx int) (attrRef, error) {
	if idx < 0 || idx >= len(m.attributes) {
		return attrRef{}, newError(ErrAttributeIndexOutOfRange,
			"attribute index %d out of range for %s with %d attributes",
			idx, m.markerType.Name, len(m.attributes))
	}
	resolved := m.mappedIdx[idx]
	if resolved == notFoundIndex {
		return attrRef{attr: m.attributes[idx], idx: idx, owner: m}, nil
	}
	src := m.mappedSrc[idx]
	if src == nil || src == m {
		return attrRef{attr: m.attributes[resolved], idx: resolved, owner: m}, nil
	}
	return src.attributeMapping(resolved)
}

// attributeMappingByName is attributeMapping keyed by attribute name; absence
// of the name is a lookup miss, not an error.
func (m *typeMapping) attributeMappingByName(name string) (attrRef, bool, error) {
	idx := m.attributeIndex(name)
	if idx == notFoundIndex {
		return attrRef{}, false, nil
	}
	ref, err := m.attributeMapping(idx)
	if err != nil {
		return attrRef{}, false, err
	}
	return ref, true, nil
}

// aliasSet groups mutually-aliased attributes of one marker type. The group
// shares a single authoritative index once resolved against a bound instance.
type aliasSet struct {
	indexes []int
}

// resolve picks the single authoritative attribute among the set against the
// node's bound instance:
//   - all members default: the defaults must agree; the first member wins
//   - exactly one non-default member: it wins
//   - several non-default members: they must agree; the first of them wins
func (s *aliasSet) resolve(m *typeMapping) (int, error) {
	resolved := notFoundIndex
	hasNonDefault := false
	var lastValue any
	for _, idx := range s.indexes {
		attr := m.attributes[idx]
		def := attr.Default
		actual := m.instance.Value(attr.Name)
		isDefault := valuesEqual(def, actual)

		switch {
		case resolved == notFoundIndex:
			resolved = idx
			if isDefault {
				lastValue = def
			} else {
				lastValue = actual
				hasNonDefault = true
			}
		case hasNonDefault:
			if !isDefault && !valuesEqual(lastValue, actual) {
				return notFoundIndex, newError(ErrDivergentAliasValues,
					"aliased attributes %s.%s and %s.%s must hold the same value, got %v and %v",
					m.markerType.Name, m.attributes[resolved].Name, m.markerType.Name, attr.Name, lastValue, actual)
			}
		case !isDefault:
			hasNonDefault = true
			lastValue = actual
			resolved = idx
		default:
			if !valuesEqual(lastValue, def) {
				return notFoundIndex, newError(ErrDivergentAliasValues,
					"aliased attributes %s.%s and %s.%s must share a default value, got %v and %v",
					m.markerType.Name, m.attributes[resolved].Name, m.markerType.Name, attr.Name, lastValue, def)
			}
		}
	}
	if resolved == notFoundIndex {
		return notFoundIndex, newError(ErrDivergentAliasValues,
			"cannot resolve aliased attributes of %s", m.markerType.Name)
	}
	return resolved, nil
}

// resolveAndUpdate rewires every member of the set to the resolved authority.
func (s *aliasSet) resolveAndUpdate(m *typeMapping) error {
	resolved, err := s.resolve(m)
	if err != nil {
		return err
	}
	for _, idx := range s.indexes {
		m.mappedIdx[idx] = resolved
		m.mappedSrc[idx] = m
	}
	return nil
}

// valuesEqual compares attribute values structurally. Marker-typed values
// compare by resolved attribute values rather than identity.
func valuesEqual(a, b any) bool {
	if ia, ok := a.(schema.Instance); ok {
		if ib, ok := b.(schema.Instance); ok {
			return Equal(ia, ib)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// ========== chain discovery ==========

// chain is the fully resolved meta-marker chain of one root marker type under
// one filter. The structure is independent of any bound instance, so one
// chain is shared by every element carrying the root marker.
type chain struct {
	rootType *schema.MarkerType
	mappings map[string]*typeMapping
	order    []string
}

type chainKey struct {
	rootType  string
	filterKey string
}

// chainCache holds resolved chains per (root marker type, filter) pair.
// Builders are pure, so concurrent first-time builds may race; only the
// publish step is atomic and all racers converge on one shared chain.
var chainCache sync.Map // chainKey -> *chain

// chainFor returns the cached chain for the root type under the filter,
// building and publishing it on first use. Failed builds are not cached.
func chainFor(rootType *schema.MarkerType, filter Filter) (*chain, error) {
	if !filter.Matches(rootType) {
		return nil, newError(ErrRootFiltered,
			"root marker type %s is rejected by its own filter", rootType.Name)
	}
	key := chainKey{rootType: rootType.Name, filterKey: filter.Key()}
	if cached, ok := chainCache.Load(key); ok {
		return cached.(*chain), nil
	}
	built, err := buildChain(rootType, filter)
	if err != nil {
		return nil, err
	}
	actual, _ := chainCache.LoadOrStore(key, built)
	return actual.(*chain), nil
}

// buildChain discovers the meta-marker closure of rootType breadth-first and
// resolves every node's attribute authorities. A marker type reachable along
// its own source chain is a declaration error; reconvergence through
// different branches is deduplicated instead.
func buildChain(rootType *schema.MarkerType, filter Filter) (*chain, error) {
	root, err := newTypeMapping(nil, rootType, nil)
	if err != nil {
		return nil, err
	}
	c := &chain{rootType: rootType, mappings: make(map[string]*typeMapping)}
	queue := []*typeMapping{root}
	for len(queue) > 0 {
		source := queue[0]
		queue = queue[1:]
		name := source.markerType.Name
		if !filter.Matches(source.markerType) {
			continue
		}
		if _, seen := c.mappings[name]; seen {
			continue
		}
		c.mappings[name] = source
		c.order = append(c.order, name)
		for _, meta := range source.markerType.Markers {
			metaType := meta.Type()
			for check := source; check != nil; check = check.source {
				if check.markerType == metaType {
					return nil, newError(ErrCircularReference,
						"circular meta-marker reference on %s", metaType.Name)
				}
			}
			if _, seen := c.mappings[metaType.Name]; seen {
				continue
			}
			node, err := newTypeMapping(source, metaType, meta)
			if err != nil {
				return nil, err
			}
			queue = append(queue, node)
		}
	}
	return c, nil
}

// clearChainCache drops every cached chain. In-flight queries keep the chain
// they already hold.
func clearChainCache() {
	chainCache.Range(func(key, _ any) bool {
		chainCache.Delete(key)
		return true
	})
}
