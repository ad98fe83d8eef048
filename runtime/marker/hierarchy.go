package marker

import (
	"github.com/conduit-lang/marker/runtime/schema"
)

// ParentDiscoverer finds the immediate parent elements of one element. Each
// element kind gets its own discoverer; anything without a hierarchy reports
// no parents.
type ParentDiscoverer interface {
	Parents(el *schema.Element) []*schema.Element
}

// DiscovererFor selects the parent discoverer for an element's kind.
func DiscovererFor(el *schema.Element) ParentDiscoverer {
	switch el.Kind {
	case schema.KindMarker:
		return metaMarkerTypesDiscoverer{}
	case schema.KindType:
		return superAndInterfacesDiscoverer{}
	case schema.KindMethod:
		return overridableMethodsDiscoverer{}
	default:
		return noHierarchyDiscoverer{}
	}
}

// noHierarchyDiscoverer reports no parents for kinds without a hierarchy.
type noHierarchyDiscoverer struct{}

func (noHierarchyDiscoverer) Parents(*schema.Element) []*schema.Element { return nil }

// superAndInterfacesDiscoverer yields a type's supertype and declared
// interfaces.
type superAndInterfacesDiscoverer struct{}

func (superAndInterfacesDiscoverer) Parents(el *schema.Element) []*schema.Element {
	return schema.SuperAndInterfaces(el)
}

// metaMarkerTypesDiscoverer yields the marker types declared as meta-markers
// on a marker type, skipping engine-internal ones.
type metaMarkerTypesDiscoverer struct{}

func (metaMarkerTypesDiscoverer) Parents(el *schema.Element) []*schema.Element {
	if el.Marker == nil {
		return nil
	}
	var parents []*schema.Element
	for _, meta := range el.Marker.Markers {
		if !Internal.Matches(meta.Type()) {
			continue
		}
		if metaEl, ok := schema.ElementOf(meta.Type().Name); ok {
			parents = append(parents, metaEl)
		}
	}
	return parents
}

// overridableMethodsDiscoverer yields the ancestor-declared methods a method
// is capable of overriding. An override chain may skip an intermediate type,
// so a branch with no compatible method recurses one level further up on
// that branch only.
type overridableMethodsDiscoverer struct{}

func (overridableMethodsDiscoverer) Parents(el *schema.Element) []*schema.Element {
	if el.Kind != schema.KindMethod || el.Owner == nil {
		return nil
	}
	visited := make(map[*schema.Element]bool)
	queue := schema.SuperAndInterfaces(el.Owner)
	var parents []*schema.Element
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if visited[t] {
			continue
		}
		visited[t] = true

		var compatible []*schema.Element
		for _, m := range schema.DeclaredMethods(t.Name) {
			if schema.IsOverridableFrom(el, m) {
				compatible = append(compatible, m)
			}
		}
		if len(compatible) > 0 {
			parents = append(parents, compatible...)
			continue
		}
		for _, sup := range schema.SuperAndInterfaces(t) {
			if !visited[sup] {
				queue = append(queue, sup)
			}
		}
	}
	return parents
}

// HierarchyIterator walks an element's hierarchy breadth-first, starting at
// the element itself and visiting each distinct element at most once even
// when parent edges reconverge. Every call to ElementView.Hierarchy creates
// a fresh iterator, and a node's parents are only discovered when the node
// itself is visited.
type HierarchyIterator struct {
	queue    []*ElementView
	enqueued map[*schema.Element]bool
}

func newHierarchyIterator(root *ElementView) *HierarchyIterator {
	return &HierarchyIterator{
		queue:    []*ElementView{root},
		enqueued: map[*schema.Element]bool{root.element: true},
	}
}

// Next returns the next element view in breadth-first order, or nil when the
// hierarchy is exhausted.
func (it *HierarchyIterator) Next() *ElementView {
	if len(it.queue) == 0 {
		return nil
	}
	curr := it.queue[0]
	it.queue = it.queue[1:]
	for _, parent := range curr.Parents() {
		if !it.enqueued[parent.element] {
			it.enqueued[parent.element] = true
			it.queue = append(it.queue, parent)
		}
	}
	return curr
}
